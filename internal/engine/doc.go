// Package engine содержит ядро обработки ресурсов.
//
// Включает:
//   - stage.go      — контракт Stage, тип стадии (StageType), связи в цепочке
//   - chain.go      — сборка цепочки из стадий (Compose)
//   - request.go    — запрос обработки (Request), передаваемый по цепочке
//   - key.go        — ключ запроса (Key) для кэширования и дедупликации
//   - dispatch.go   — запуск цепочек по типам ресурсов (RunChains)
//
// Конкретные стадии (агрегация, сжатие, кэш) живут в пакете stages;
// engine только упорядочивает, связывает и вызывает их.
package engine
