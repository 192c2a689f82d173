package api

import (
	"context"
	"path"
	"sort"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/pipeline"
)

// contentEncoder — ресурс со сжатым содержимым (stages.Compressed).
type contentEncoder interface {
	ContentEncoding() string
}

// Workflow DTOs

// WorkflowResponse — ответ с workflow.
type WorkflowResponse struct {
	ID          string   `json:"id"`
	HeapID      string   `json:"heap_id"`
	Composition []string `json:"composition,omitempty"`
	Types       []string `json:"types"`
	Cached      bool     `json:"cached"`
	Stores      int      `json:"stores"`
}

// WorkflowFromPipeline конвертирует pipeline.Workflow в WorkflowResponse.
func WorkflowFromPipeline(wf *pipeline.Workflow) WorkflowResponse {
	resp := WorkflowResponse{
		ID:     wf.ID,
		Types:  make([]string, 0, len(wf.Chains)),
		Cached: wf.Head != nil && wf.Head.Active(),
		Stores: len(wf.Stores),
	}
	if wf.Heap != nil {
		resp.HeapID = wf.Heap.ID()
		for _, c := range wf.Heap.Composition() {
			resp.Composition = append(resp.Composition, c.ID())
		}
	}
	for t := range wf.Chains {
		resp.Types = append(resp.Types, string(t))
	}
	sort.Strings(resp.Types)
	return resp
}

// Resource DTOs

// ResourceResponse — описание обработанного ресурса.
type ResourceResponse struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	MimeType string `json:"mime_type"`
	Version  string `json:"version"`
	Encoding string `json:"encoding,omitempty"`
	URL      string `json:"url"`
}

// ResourceFromDomain конвертирует domain.Resource в ResourceResponse.
// URL строится от contextPath так же, как его отдаёт ServeResource.
func ResourceFromDomain(ctx context.Context, contextPath, workflowID string, r domain.Resource) (ResourceResponse, error) {
	version, err := r.Version(ctx)
	if err != nil {
		return ResourceResponse{}, err
	}

	resp := ResourceResponse{
		Name:     r.Name(),
		Type:     string(r.Type()),
		MimeType: r.Type().MimeType(),
		Version:  version,
		URL:      path.Join(contextPath, workflowID, r.Name()),
	}
	if e, ok := r.(contentEncoder); ok {
		resp.Encoding = e.ContentEncoding()
	}
	return resp, nil
}

// Tag DTOs

// TagResponse — ответ на операции с тегом.
type TagResponse struct {
	Tag       string `json:"tag"`
	Published bool   `json:"published"`
}
