// Package stages содержит стандартные стадии обработки ресурсов.
//
// # Обзор
//
// Каждая стадия реализует engine.Stage и создаётся через Builder:
//
//	b, err := stages.DefaultRegistry().Builder("aggregator")
//	if err := b.Configure("active", true); err != nil {
//	    // неизвестное свойство
//	}
//	stage, err := b.Build()
//
// Builder хранит свойства, а Build каждый раз создаёт новый экземпляр:
// одна и та же стадия не может стоять в двух цепочках, так как связи
// next/previous хранятся в ней самой.
//
// # Стадии
//
//   - cache (cache.go) — head стадия, кэширует результат по engine.Key
//   - css-inspector (inspector.go) — переписывает относительные url(...) в CSS
//   - aggregator (aggregator.go) — объединяет JS/CSS в aggregate.js / aggregate.css
//   - gzip (gzip.go) — сжимает текстовые ресурсы
//
// Общее свойство всех стадий: active (bool, по умолчанию true).
//
// # Стадии по умолчанию
//
// defaults.go перечисляет виды стадий по умолчанию (DefaultKind).
// pipeline.Builder.ConfigureDefaults регистрирует их под ID DefaultID(kind);
// регистрация другого builder под тем же ID заменяет стадию по умолчанию.
package stages
