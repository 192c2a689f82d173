package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/pipeline"
	"github.com/shaiso/wuic/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFacade регистрирует dao с двумя скриптами, выходное хранилище out
// и два workflow: site-app (с выгрузкой) и plain-app (без).
func newFacade(t *testing.T, def pipeline.TemplateDef) (*pipeline.Facade, *store.Memory) {
	t.Helper()
	b := pipeline.NewBuilder(pipeline.Config{Logger: discard()}).ConfigureDefaults()

	func() {
		defer b.Session("app")()
		must(t, b.RegisterStore("dao", store.NewMemoryBuilder(), map[string]any{
			"resources": map[string]string{"a.js": "var a;", "b.js": "var b;"},
			"read_only": true,
		}))
		must(t, b.RegisterStore("out", store.NewMemoryBuilder(), nil))
		must(t, b.RegisterHeap("app", "dao", []string{"*.js"}))

		def.Stores = []string{"out"}
		must(t, b.RegisterTemplate("site", def))
		must(t, b.RegisterTemplate("plain", pipeline.TemplateDef{}))
		must(t, b.RegisterWorkflow("site-", true, "app", "site"))
		must(t, b.RegisterWorkflow("plain-", true, "app", "plain"))
	}()

	return pipeline.NewFacade(b), b.Stores()["out"].(*store.Memory)
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWorker_Export(t *testing.T) {
	f, out := newFacade(t, pipeline.TemplateDef{})
	w := New(Config{Facade: f, Logger: discard()})
	ctx := context.Background()

	res, err := w.Export(ctx, "site-app")
	must(t, err)

	want := []string{"site-app/a.js", "site-app/b.js"}
	if diff := cmp.Diff(want, res.Saved); diff != "" {
		t.Errorf("saved mismatch (-want +got):\n%s", diff)
	}

	got, err := out.Fetch(ctx, "site-app/a.js")
	must(t, err)
	data, err := domain.ReadAll(ctx, got[0])
	must(t, err)
	if string(data) != "var a;" {
		t.Errorf("unexpected exported content %q", data)
	}
}

func TestWorker_ExportCompressed(t *testing.T) {
	f, out := newFacade(t, pipeline.TemplateDef{IncludeDefaults: true})
	w := New(Config{Facade: f, Concurrency: 1, Logger: discard()})
	ctx := context.Background()

	res, err := w.Export(ctx, "site-app")
	must(t, err)
	if diff := cmp.Diff([]string{"site-app/aggregate.js.gz"}, res.Saved); diff != "" {
		t.Errorf("saved mismatch (-want +got):\n%s", diff)
	}
	if _, err := out.Fetch(ctx, "site-app/aggregate.js.gz"); err != nil {
		t.Errorf("expected compressed export, got %v", err)
	}
}

func TestWorker_ExportErrors(t *testing.T) {
	f, _ := newFacade(t, pipeline.TemplateDef{})
	w := New(Config{Facade: f, Logger: discard()})
	ctx := context.Background()

	if _, err := w.Export(ctx, "plain-app"); !errors.Is(err, ErrNoOutputStore) {
		t.Errorf("expected ErrNoOutputStore, got %v", err)
	}
	if _, err := w.Export(ctx, "missing"); !errors.Is(err, pipeline.ErrWorkflowNotFound) {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestWorker_ExportAll(t *testing.T) {
	f, _ := newFacade(t, pipeline.TemplateDef{})
	w := New(Config{Facade: f, Logger: discard()})

	results, err := w.ExportAll(context.Background())
	must(t, err)
	if len(results) != 1 || results[0].WorkflowID != "site-app" {
		t.Errorf("expected only site-app to be exported, got %+v", results)
	}
}

func TestWorker_PeriodicExport(t *testing.T) {
	f, out := newFacade(t, pipeline.TemplateDef{})
	w := New(Config{Facade: f, Interval: time.Hour, Logger: discard()})

	must(t, w.Start(context.Background()))

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := out.Fetch(context.Background(), "site-app/b.js"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("periodic export did not run on start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w.Stop()
	if !w.IsStopped() {
		t.Error("worker should report stopped")
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("expected ErrWorkerStopped, got %v", err)
	}
}
