package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/engine"
	"github.com/shaiso/wuic/internal/telemetry"
)

// Facade — точка входа для вызывающих: держит актуальный Context и
// пересобирает его, когда конфигурация меняется.
//
// Чтение текущего Context не блокируется; пересборка выполняется
// одной горутиной, остальные ждут её результат.
type Facade struct {
	builder *Builder
	current atomic.Pointer[Context]
	mu      sync.Mutex
}

// NewFacade создаёт фасад над builder.
func NewFacade(b *Builder) *Facade {
	return &Facade{builder: b}
}

// Builder возвращает конфигурацию фасада.
func (f *Facade) Builder() *Builder {
	return f.builder
}

// Context возвращает актуальный Context, пересобирая его при необходимости.
func (f *Facade) Context(ctx context.Context) (*Context, error) {
	if c := f.current.Load(); c != nil && c.IsUpToDate() {
		return c, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c := f.current.Load(); c != nil && c.IsUpToDate() {
		return c, nil
	}

	c, err := f.builder.Build()
	if err != nil {
		return nil, err
	}
	f.current.Store(c)

	telemetry.ContextRebuilds.Inc()
	telemetry.FromContext(ctx).Info("execution context rebuilt",
		"version", c.version,
		"workflows", len(c.workflows),
	)
	return c, nil
}

// Process обрабатывает workflow в актуальном Context.
func (f *Facade) Process(ctx context.Context, contextPath, workflowID string, skip ...engine.StageType) ([]domain.Resource, error) {
	c, err := f.Context(ctx)
	if err != nil {
		return nil, err
	}
	return c.Process(ctx, contextPath, workflowID, skip...)
}

// ProcessPath возвращает ресурс workflow из актуального Context.
func (f *Facade) ProcessPath(ctx context.Context, contextPath, workflowID, path string, skip ...engine.StageType) (domain.Resource, error) {
	c, err := f.Context(ctx)
	if err != nil {
		return nil, err
	}
	return c.ProcessPath(ctx, contextPath, workflowID, path, skip...)
}

// WorkflowIDs возвращает ID workflow актуального Context.
func (f *Facade) WorkflowIDs(ctx context.Context) ([]string, error) {
	c, err := f.Context(ctx)
	if err != nil {
		return nil, err
	}
	return c.WorkflowIDs(), nil
}

// Workflow возвращает workflow актуального Context.
func (f *Facade) Workflow(ctx context.Context, id string) (*Workflow, error) {
	c, err := f.Context(ctx)
	if err != nil {
		return nil, err
	}
	return c.Workflow(ctx, id)
}
