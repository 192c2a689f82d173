// Package telemetry обеспечивает наблюдаемость wuic.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики конвейера
//
// Сервер экспортирует метрики на /metrics endpoint.
package telemetry
