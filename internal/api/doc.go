// Package api содержит HTTP API сервера wuic.
//
// Структура:
//   - handler.go          — Handler с DI (facade, exporter, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging с request_id, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects
//   - resource_handler.go — отдача обработанных ресурсов (/wuic/...)
//   - workflow_handler.go — обработчики для /workflows
//   - tag_handler.go      — обработчики для /tags
//
// Ресурсы отдаются по пути {contextPath}/{workflow}/{name}; тот же
// contextPath передаётся в конвейер, поэтому ссылки, переписанные
// CSS инспектором, указывают обратно на этот сервер.
package api
