package api

import (
	"net/http"
)

// ListTags возвращает активные теги конфигурации.
// GET /api/v1/tags
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags := h.facade.Builder().Tags()
	List(w, tags, len(tags))
}

// ClearTag удаляет всё, что зарегистрировано под тегом, и сообщает
// об этом остальным узлам.
// POST /api/v1/tags/{tag}/clear
func (h *Handler) ClearTag(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")
	h.facade.Builder().ClearTag(tag)

	resp := TagResponse{Tag: tag}
	if h.publisher != nil {
		if err := h.publisher.PublishTagCleared(r.Context(), tag); err != nil {
			h.logger.Warn("failed to publish tag cleared", "tag", tag, "error", err)
		} else {
			resp.Published = true
		}
	}

	Success(w, resp)
}
