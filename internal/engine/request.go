package engine

import (
	"context"
	"fmt"

	"github.com/shaiso/wuic/internal/domain"
)

// Group — источник ресурсов запроса (heap).
type Group interface {
	ID() string
	Resources(ctx context.Context) ([]domain.Resource, error)
}

// Request — запрос обработки, передаваемый по цепочке стадий.
//
// Request неизменяем: With и AlsoSkip возвращают новый запрос.
// Список ресурсов всегда копируется при создании и при чтении.
type Request struct {
	workflowID  string
	contextPath string
	group       Group
	resources   []domain.Resource
	chains      map[domain.ResourceType]Stage
	skip        []StageType
}

// WorkflowID возвращает ID workflow.
func (r *Request) WorkflowID() string { return r.workflowID }

// ContextPath возвращает путь, под которым публикуются результаты.
func (r *Request) ContextPath() string { return r.contextPath }

// Group возвращает heap запроса.
func (r *Request) Group() Group { return r.group }

// Resources возвращает копию списка ресурсов.
func (r *Request) Resources() []domain.Resource {
	return copyResources(r.resources)
}

// ChainFor возвращает цепочку для типа ресурса (nil, если её нет).
func (r *Request) ChainFor(rt domain.ResourceType) Stage {
	return r.chains[rt]
}

// Chains возвращает копию карты цепочек.
func (r *Request) Chains() map[domain.ResourceType]Stage {
	out := make(map[domain.ResourceType]Stage, len(r.chains))
	for k, v := range r.chains {
		out[k] = v
	}
	return out
}

// ShouldSkip сообщает, нужно ли пропустить стадии типа t.
func (r *Request) ShouldSkip(t StageType) bool {
	return containsStageType(r.skip, t)
}

// Skipped возвращает пропускаемые типы стадий.
func (r *Request) Skipped() []StageType {
	return append([]StageType(nil), r.skip...)
}

// Partitions делит ресурсы на последовательные группы одного типа.
// Порядок ресурсов сохраняется.
func (r *Request) Partitions() [][]domain.Resource {
	var parts [][]domain.Resource
	for _, res := range r.resources {
		n := len(parts)
		if n > 0 && parts[n-1][0].Type() == res.Type() {
			parts[n-1] = append(parts[n-1], res)
			continue
		}
		parts = append(parts, []domain.Resource{res})
	}
	return parts
}

// With возвращает копию запроса с другим списком ресурсов.
func (r *Request) With(resources []domain.Resource) *Request {
	c := *r
	c.resources = copyResources(resources)
	return &c
}

// AlsoSkip возвращает копию запроса с расширенным набором
// пропускаемых типов стадий (best-effort обработка).
func (r *Request) AlsoSkip(types ...StageType) *Request {
	c := *r
	c.skip = append([]StageType(nil), r.skip...)
	for _, t := range types {
		if !containsStageType(c.skip, t) {
			c.skip = append(c.skip, t)
		}
	}
	return &c
}

// Key строит ключ запроса.
func (r *Request) Key() (Key, error) {
	return NewKey(r.workflowID, r.resources)
}

// String реализует fmt.Stringer.
func (r *Request) String() string {
	return fmt.Sprintf("request(workflow=%s, resources=%d)", r.workflowID, len(r.resources))
}

// RequestBuilder строит Request.
type RequestBuilder struct {
	req          Request
	hasResources bool
}

// NewRequestBuilder создаёт builder для workflow и heap.
func NewRequestBuilder(workflowID string, group Group) *RequestBuilder {
	return &RequestBuilder{
		req: Request{workflowID: workflowID, group: group},
	}
}

// ContextPath задаёт путь публикации результатов.
func (b *RequestBuilder) ContextPath(p string) *RequestBuilder {
	b.req.contextPath = p
	return b
}

// Resources задаёт ресурсы явно. Без вызова ресурсы берутся из heap.
func (b *RequestBuilder) Resources(resources []domain.Resource) *RequestBuilder {
	b.req.resources = copyResources(resources)
	b.hasResources = true
	return b
}

// Chains задаёт цепочки по типам ресурсов.
func (b *RequestBuilder) Chains(chains map[domain.ResourceType]Stage) *RequestBuilder {
	b.req.chains = make(map[domain.ResourceType]Stage, len(chains))
	for k, v := range chains {
		b.req.chains[k] = v
	}
	return b
}

// Skip задаёт пропускаемые типы стадий.
func (b *RequestBuilder) Skip(types ...StageType) *RequestBuilder {
	b.req.skip = append([]StageType(nil), types...)
	return b
}

// Build возвращает запрос. Если ресурсы не заданы явно, они
// загружаются из heap; ошибка хранилища возвращается как есть.
func (b *RequestBuilder) Build(ctx context.Context) (*Request, error) {
	req := b.req
	if req.group == nil {
		return nil, fmt.Errorf("%w: workflow %s", ErrNoHeap, req.workflowID)
	}

	if !b.hasResources {
		resources, err := req.group.Resources(ctx)
		if err != nil {
			return nil, fmt.Errorf("resources of heap %s: %w", req.group.ID(), err)
		}
		req.resources = copyResources(resources)
	}

	if req.chains == nil {
		req.chains = map[domain.ResourceType]Stage{}
	}
	return &req, nil
}

func copyResources(in []domain.Resource) []domain.Resource {
	if in == nil {
		return nil
	}
	out := make([]domain.Resource, len(in))
	copy(out, in)
	return out
}
