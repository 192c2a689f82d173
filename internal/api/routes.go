package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Resources
	mux.Handle("GET "+h.contextPath+"/{workflow}/{path...}", chain(http.HandlerFunc(h.ServeResource)))

	// Workflows
	mux.Handle("GET /api/v1/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("GET /api/v1/workflows/{id}", chain(http.HandlerFunc(h.GetWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}/resources", chain(http.HandlerFunc(h.ProcessWorkflow)))
	mux.Handle("POST /api/v1/workflows/{id}/export", chain(http.HandlerFunc(h.ExportWorkflow)))

	// Tags
	mux.Handle("GET /api/v1/tags", chain(http.HandlerFunc(h.ListTags)))
	mux.Handle("POST /api/v1/tags/{tag}/clear", chain(http.HandlerFunc(h.ClearTag)))

	mux.Handle("GET /metrics", promhttp.Handler())
}
