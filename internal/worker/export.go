package worker

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/store"
	"github.com/shaiso/wuic/internal/telemetry"
)

// encoded — ресурс со сжатым содержимым (stages.Compressed).
type encoded interface {
	ContentEncoding() string
}

var encodingSuffix = map[string]string{
	"gzip": ".gz",
}

// ExportResult — итог выгрузки одного workflow.
type ExportResult struct {
	RunID      uuid.UUID     `json:"run_id"`
	WorkflowID string        `json:"workflow_id"`
	Saved      []string      `json:"saved"`
	Stores     int           `json:"stores"`
	Duration   time.Duration `json:"duration"`
}

// Export обрабатывает workflow и сохраняет результаты в его выходные
// хранилища.
func (w *Worker) Export(ctx context.Context, workflowID string) (*ExportResult, error) {
	runID := uuid.New()
	logger := telemetry.WithWorkflowID(w.logger, workflowID).With("run_id", runID)
	ctx = telemetry.WithLogger(ctx, logger)
	start := time.Now()

	res, err := w.export(ctx, runID, workflowID)
	telemetry.ExportsTotal.WithLabelValues(telemetry.Outcome(err)).Inc()
	if err != nil {
		logger.Error("export failed", "error", err)
		return nil, err
	}

	res.Duration = time.Since(start)
	logger.Info("export completed",
		"resources", len(res.Saved),
		"stores", res.Stores,
		"duration", res.Duration,
	)
	return res, nil
}

func (w *Worker) export(ctx context.Context, runID uuid.UUID, workflowID string) (*ExportResult, error) {
	wf, err := w.facade.Workflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if len(wf.Stores) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOutputStore, wf.ID)
	}

	resources, err := w.facade.Process(ctx, "", wf.ID)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", wf.ID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	saved := make([]string, len(resources))
	for i, r := range resources {
		i, r := i, r
		name := exportName(wf.ID, r)
		saved[i] = name

		g.Go(func() error {
			return saveAll(gctx, wf.Stores, name, r)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(saved)
	return &ExportResult{
		RunID:      runID,
		WorkflowID: wf.ID,
		Saved:      saved,
		Stores:     len(wf.Stores),
	}, nil
}

// exportName — имя ресурса в выходном хранилище.
func exportName(workflowID string, r domain.Resource) string {
	name := path.Join(workflowID, r.Name())
	if e, ok := r.(encoded); ok {
		name += encodingSuffix[e.ContentEncoding()]
	}
	return name
}

func saveAll(ctx context.Context, stores []store.Store, name string, r domain.Resource) error {
	data, err := domain.ReadAll(ctx, r)
	if err != nil {
		return fmt.Errorf("read %s: %w", r.Name(), err)
	}
	out := domain.NewNut(name, r.Type(), data)

	for _, s := range stores {
		if err := s.Save(ctx, out); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}

// ExportAll выгружает все workflow, у которых есть выходные хранилища.
// Ошибка одного workflow не останавливает остальные; возвращается
// первая из них.
func (w *Worker) ExportAll(ctx context.Context) ([]*ExportResult, error) {
	ids, err := w.facade.WorkflowIDs(ctx)
	if err != nil {
		return nil, err
	}

	var (
		results  []*ExportResult
		firstErr error
	)
	for _, id := range ids {
		wf, err := w.facade.Workflow(ctx, id)
		if err != nil || len(wf.Stores) == 0 {
			continue
		}
		res, err := w.Export(ctx, id)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, res)
	}
	return results, firstErr
}
