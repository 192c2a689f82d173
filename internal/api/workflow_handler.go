package api

import (
	"net/http"
)

// ListWorkflows возвращает все workflow актуального контекста.
// GET /api/v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	c, err := h.facade.Context(r.Context())
	if HandlePipelineError(w, h.logger, err) {
		return
	}

	ids := c.WorkflowIDs()
	result := make([]WorkflowResponse, 0, len(ids))
	for _, id := range ids {
		wf, err := c.Workflow(r.Context(), id)
		if HandlePipelineError(w, h.logger, err) {
			return
		}
		result = append(result, WorkflowFromPipeline(wf))
	}

	List(w, result, len(result))
}

// GetWorkflow возвращает workflow по ID.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.facade.Workflow(r.Context(), r.PathValue("id"))
	if HandlePipelineError(w, h.logger, err) {
		return
	}

	Success(w, WorkflowFromPipeline(wf))
}

// ProcessWorkflow обрабатывает workflow и возвращает описание результата.
// GET /api/v1/workflows/{id}/resources
func (h *Handler) ProcessWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	resources, err := h.facade.Process(r.Context(), h.contextPath, id)
	if HandlePipelineError(w, h.logger, err) {
		return
	}

	result := make([]ResourceResponse, len(resources))
	for i, res := range resources {
		result[i], err = ResourceFromDomain(r.Context(), h.contextPath, id, res)
		if err != nil {
			InternalError(w, h.logger, err)
			return
		}
	}

	List(w, result, len(result))
}

// ExportWorkflow выгружает workflow в выходные хранилища.
// POST /api/v1/workflows/{id}/export
func (h *Handler) ExportWorkflow(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		Unavailable(w, "export is not configured")
		return
	}

	res, err := h.exporter.Export(r.Context(), r.PathValue("id"))
	if HandlePipelineError(w, h.logger, err) {
		return
	}

	Success(w, res)
}
