package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/engine"
	"github.com/shaiso/wuic/internal/telemetry"
)

// Context — неизменяемый снимок конфигурации, собранный Builder.Build.
//
// Context безопасен для одновременного использования. После любого
// изменения Builder он устаревает (IsUpToDate == false) и больше не
// становится актуальным; его нужно пересобрать.
type Context struct {
	workflows    map[string]*Workflow
	interceptors []Interceptor

	version uint64
	live    *atomic.Uint64
}

// IsUpToDate сообщает, не менялась ли конфигурация после сборки.
func (c *Context) IsUpToDate() bool {
	return c.live.Load() == c.version
}

// WorkflowIDs возвращает ID workflow по алфавиту.
func (c *Context) WorkflowIDs() []string {
	ids := make([]string, 0, len(c.workflows))
	for id := range c.workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Workflow возвращает workflow, пропуская ID и результат через
// interceptors.
func (c *Context) Workflow(ctx context.Context, id string) (*Workflow, error) {
	for _, i := range c.interceptors {
		id = i.BeforeGetWorkflow(ctx, id)
	}

	wf := c.workflows[id]
	for _, i := range c.interceptors {
		wf = i.AfterGetWorkflow(ctx, id, wf)
	}

	if wf == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	return wf, nil
}

// Process обрабатывает все ресурсы workflow. skip — типы стадий,
// которые не выполняются (best-effort обработка).
func (c *Context) Process(ctx context.Context, contextPath, workflowID string, skip ...engine.StageType) ([]domain.Resource, error) {
	wf, err := c.Workflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ctx = withWorkflowLogger(ctx, wf.ID)

	res, err := c.process(ctx, contextPath, wf, skip)
	observe(wf.ID, start, err)
	return res, err
}

func (c *Context) process(ctx context.Context, contextPath string, wf *Workflow, skip []engine.StageType) ([]domain.Resource, error) {
	req, err := newRequest(ctx, contextPath, wf, skip)
	if err != nil {
		return nil, err
	}
	for _, i := range c.interceptors {
		req = i.BeforeProcess(ctx, req)
	}

	var res []domain.Resource
	if head := headFor(wf, req); head != nil {
		res, err = head.Process(ctx, req)
	} else {
		res, err = engine.RunChains(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	for _, i := range c.interceptors {
		res = i.AfterProcess(ctx, req, res)
	}
	return res, nil
}

// ProcessPath обрабатывает workflow и возвращает ресурс с именем path.
// Если такого ресурса нет, возвращается ErrResourceNotFound.
func (c *Context) ProcessPath(ctx context.Context, contextPath, workflowID, path string, skip ...engine.StageType) (domain.Resource, error) {
	wf, err := c.Workflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ctx = withWorkflowLogger(ctx, wf.ID)

	res, err := c.processPath(ctx, contextPath, wf, path, skip)
	observe(wf.ID, start, err)
	return res, err
}

func (c *Context) processPath(ctx context.Context, contextPath string, wf *Workflow, path string, skip []engine.StageType) (domain.Resource, error) {
	req, err := newRequest(ctx, contextPath, wf, skip)
	if err != nil {
		return nil, err
	}
	for _, i := range c.interceptors {
		req, path = i.BeforeProcessPath(ctx, req, path)
	}

	var res domain.Resource
	if head := headFor(wf, req); head != nil {
		res, err = head.ProcessPath(ctx, req, path)
	} else {
		res, err = engine.ProcessPath(ctx, req, path)
	}
	if err != nil {
		return nil, err
	}

	for _, i := range c.interceptors {
		res = i.AfterProcessPath(ctx, req, path, res)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: %s in workflow %s", ErrResourceNotFound, path, wf.ID)
	}
	return res, nil
}

func newRequest(ctx context.Context, contextPath string, wf *Workflow, skip []engine.StageType) (*engine.Request, error) {
	return engine.NewRequestBuilder(wf.ID, wf.Heap).
		ContextPath(contextPath).
		Chains(wf.Chains).
		Skip(skip...).
		Build(ctx)
}

// headFor возвращает head стадию, которой нужно передать запрос,
// или nil, если цепочки запускаются напрямую.
func headFor(wf *Workflow, req *engine.Request) engine.HeadStage {
	if wf.Head == nil || !wf.Head.Active() || req.ShouldSkip(wf.Head.Kind()) {
		return nil
	}
	return wf.Head
}

func withWorkflowLogger(ctx context.Context, workflowID string) context.Context {
	return telemetry.WithLogger(ctx, telemetry.WithWorkflowID(telemetry.FromContext(ctx), workflowID))
}

func observe(workflowID string, start time.Time, err error) {
	telemetry.ProcessTotal.WithLabelValues(workflowID, telemetry.Outcome(err)).Inc()
	telemetry.ProcessDuration.WithLabelValues(workflowID).Observe(time.Since(start).Seconds())
}
