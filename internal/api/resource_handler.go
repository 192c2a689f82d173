package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/shaiso/wuic/internal/telemetry"
)

// ServeResource отдаёт обработанный ресурс workflow.
// GET /wuic/{workflow}/{path...}
func (h *Handler) ServeResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workflowID := r.PathValue("workflow")
	name := r.PathValue("path")
	if name == "" {
		BadRequest(w, "resource path is required")
		return
	}

	res, err := h.facade.ProcessPath(ctx, h.contextPath, workflowID, name)
	if HandlePipelineError(w, h.logger, err) {
		return
	}

	version, err := res.Version(ctx)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	etag := `"` + version + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body, err := res.Open(ctx)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", res.Type().MimeType())
	if e, ok := res.(contentEncoder); ok {
		w.Header().Set("Content-Encoding", e.ContentEncoding())
		w.Header().Add("Vary", "Accept-Encoding")
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		telemetry.FromContext(ctx).Warn("failed to write resource",
			"workflow_id", workflowID,
			"path", name,
			"error", err,
		)
	}
}
