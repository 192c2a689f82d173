package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/wuic/internal/heap"
	"github.com/shaiso/wuic/internal/pipeline"
	"github.com/shaiso/wuic/internal/store"
)

type fakePublisher struct {
	mu    sync.Mutex
	heaps []string
}

func (p *fakePublisher) PublishHeapChanged(_ context.Context, heapID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heaps = append(p.heaps, heapID)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSource(t *testing.T) (*pipeline.Builder, *store.Memory) {
	t.Helper()
	b := pipeline.NewBuilder(pipeline.Config{Logger: discard()})

	defer b.Session("app")()
	err := b.RegisterStore("dao", store.NewMemoryBuilder(), map[string]any{
		"resources": map[string]string{"a.js": "a", "b.js": "b"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.RegisterHeap("heap-a", "dao", []string{"a.js"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.RegisterHeap("heap-b", "dao", []string{"b.js"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b, b.Stores()["dao"].(*store.Memory)
}

func TestScheduler_Tick(t *testing.T) {
	b, dao := newSource(t)
	pub := &fakePublisher{}
	ctx := context.Background()

	s, err := New(Config{Source: b, Publisher: pub, Logger: discard()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Первый опрос только запоминает состояние
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.heaps) != 0 {
		t.Fatalf("first tick should not publish, got %v", pub.heaps)
	}

	h, _ := b.Heap("heap-a")
	gen := h.Generation()

	if err := dao.Put("a.js", []byte("changed")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.Generation() == gen {
		t.Error("heap generation should grow after a detected change")
	}
	if diff := cmp.Diff([]string{"heap-a"}, pub.heaps); diff != "" {
		t.Errorf("published heaps mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduler_TickNotifiesListeners(t *testing.T) {
	b, dao := newSource(t)
	ctx := context.Background()

	s, err := New(Config{Source: b, Logger: discard()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, _ := b.Heap("heap-b")
	var notified int
	h.AddListener(func(*heap.Heap) { notified++ })

	if err := s.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dao.Remove("b.js")
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if notified != 1 {
		t.Errorf("expected 1 notification for removed resource, got %d", notified)
	}
}

func TestScheduler_TickPollsReplacedStore(t *testing.T) {
	b, dao := newSource(t)
	pub := &fakePublisher{}
	ctx := context.Background()

	func() {
		defer b.Session("override")()
		if err := b.RegisterStore("dao", store.NewMemoryBuilder(), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}()

	s, err := New(Config{Source: b, Publisher: pub, Logger: discard()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Heap читают заменённое хранилище, и его изменения всё ещё видны
	if err := dao.Put("b.js", []byte("changed")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"heap-b"}, pub.heaps); diff != "" {
		t.Errorf("published heaps mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoSource) {
		t.Errorf("expected ErrNoSource, got %v", err)
	}

	b, _ := newSource(t)
	if _, err := New(Config{Source: b, Spec: "every day"}); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("expected ErrInvalidSpec, got %v", err)
	}

	s, err := New(Config{Source: b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AddJob("* * *", "broken", nil); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("expected ErrInvalidSpec, got %v", err)
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 3, 1, 10, 1, 0, 0, time.UTC)

	tests := []struct {
		spec string
		want time.Time
	}{
		{"@every 30s", from.Add(30 * time.Second)},
		{"*/5 * * * *", time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)},
		{"30 0 * * * *", time.Date(2024, 3, 1, 11, 0, 30, 0, time.UTC)},
		{"@hourly", time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := NextRun(tt.spec, from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextRun(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	b, _ := newSource(t)
	s, err := New(Config{Source: b, Spec: "@every 1h", Logger: discard()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
