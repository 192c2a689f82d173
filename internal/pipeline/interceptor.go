package pipeline

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/engine"
)

// Interceptor перехватывает обращения к Context. Хуки вызываются в
// порядке регистрации (теги по порядку создания); каждый получает
// результат предыдущего.
type Interceptor interface {
	// BeforeGetWorkflow может заменить запрошенный ID workflow.
	BeforeGetWorkflow(ctx context.Context, id string) string

	// AfterGetWorkflow может подменить найденный workflow (nil, если
	// workflow не найден).
	AfterGetWorkflow(ctx context.Context, id string, wf *Workflow) *Workflow

	// BeforeProcess может заменить запрос.
	BeforeProcess(ctx context.Context, req *engine.Request) *engine.Request

	// BeforeProcessPath может заменить запрос и имя ресурса.
	BeforeProcessPath(ctx context.Context, req *engine.Request, path string) (*engine.Request, string)

	// AfterProcess может заменить результат.
	AfterProcess(ctx context.Context, req *engine.Request, res []domain.Resource) []domain.Resource

	// AfterProcessPath может заменить найденный ресурс (nil, если не найден).
	AfterProcessPath(ctx context.Context, req *engine.Request, path string, res domain.Resource) domain.Resource
}

// InterceptorAdapter — Interceptor, который ничего не меняет.
// Встраивается в реализации, переопределяющие часть хуков.
type InterceptorAdapter struct{}

func (InterceptorAdapter) BeforeGetWorkflow(_ context.Context, id string) string { return id }

func (InterceptorAdapter) AfterGetWorkflow(_ context.Context, _ string, wf *Workflow) *Workflow {
	return wf
}

func (InterceptorAdapter) BeforeProcess(_ context.Context, req *engine.Request) *engine.Request {
	return req
}

func (InterceptorAdapter) BeforeProcessPath(_ context.Context, req *engine.Request, path string) (*engine.Request, string) {
	return req, path
}

func (InterceptorAdapter) AfterProcess(_ context.Context, _ *engine.Request, res []domain.Resource) []domain.Resource {
	return res
}

func (InterceptorAdapter) AfterProcessPath(_ context.Context, _ *engine.Request, _ string, res domain.Resource) domain.Resource {
	return res
}

// RegexFilter исключает из запроса ресурсы, имя которых соответствует
// одному из шаблонов.
type RegexFilter struct {
	InterceptorAdapter
	patterns []*regexp.Regexp
}

// NewRegexFilter компилирует шаблоны фильтра.
func NewRegexFilter(patterns ...string) (*RegexFilter, error) {
	f := &RegexFilter{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPattern, p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// BeforeProcess убирает отфильтрованные ресурсы.
func (f *RegexFilter) BeforeProcess(_ context.Context, req *engine.Request) *engine.Request {
	return req.With(f.filter(req.Resources()))
}

// BeforeProcessPath убирает отфильтрованные ресурсы.
func (f *RegexFilter) BeforeProcessPath(_ context.Context, req *engine.Request, path string) (*engine.Request, string) {
	return req.With(f.filter(req.Resources())), path
}

func (f *RegexFilter) filter(resources []domain.Resource) []domain.Resource {
	out := resources[:0]
	for _, r := range resources {
		if !f.matches(r.Name()) {
			out = append(out, r)
		}
	}
	return out
}

func (f *RegexFilter) matches(name string) bool {
	for _, re := range f.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// WorkflowAlias переводит псевдонимы в ID workflow.
type WorkflowAlias struct {
	InterceptorAdapter
	aliases map[string]string
}

// NewWorkflowAlias создаёт interceptor псевдонимов (псевдоним → ID).
func NewWorkflowAlias(aliases map[string]string) *WorkflowAlias {
	m := make(map[string]string, len(aliases))
	for k, v := range aliases {
		m[k] = v
	}
	return &WorkflowAlias{aliases: m}
}

// BeforeGetWorkflow заменяет псевдоним на ID.
func (a *WorkflowAlias) BeforeGetWorkflow(_ context.Context, id string) string {
	if target, ok := a.aliases[id]; ok {
		return target
	}
	return id
}
