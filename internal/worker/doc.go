// Package worker выгружает результаты workflow в выходные хранилища.
//
// # Обзор
//
// Export обрабатывает workflow через pipeline.Facade и сохраняет каждый
// результат во все выходные хранилища его шаблона под именем
// "<workflow>/<ресурс>". Сжатые ресурсы сохраняются с суффиксом
// кодировки (".gz").
//
// Worker запускает выгрузку всех workflow по интервалу и, если задано
// соединение с RabbitMQ, применяет события инвалидации других узлов.
//
//	w := worker.New(worker.Config{
//	    Facade:   facade,
//	    Interval: 5 * time.Minute, // 0 — только по запросу
//	    Consumer: consumer,        // опционально
//	    Logger:   logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Параллелизм
//
// Ресурсы одного workflow сохраняются параллельно (errgroup с
// ограничением Concurrency). Первая ошибка отменяет выгрузку workflow.
package worker
