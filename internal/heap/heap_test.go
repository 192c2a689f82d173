package heap

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/store"
)

func newStore(t *testing.T, names ...string) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	for _, n := range names {
		if err := m.Put(n, []byte(n)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return m
}

func TestHeap_Resources(t *testing.T) {
	s := newStore(t, "a.js", "b.js", "c.css")

	h, err := New("heap", s, []string{"b.js", "*.js"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := h.Resources(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// b.js из первого пути, затем a.js (дубль b.js отброшен)
	if diff := cmp.Diff([]string{"b.js", "a.js"}, domain.Names(got)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestHeap_Composition(t *testing.T) {
	s := newStore(t, "a.js", "a.css")

	js, _ := New("js", s, []string{"a.js"})
	css, _ := New("css", s, []string{"a.css"})
	other, _ := New("other", s, []string{"a.js"})

	all, err := New("all", nil, nil, WithComposition(js, css))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !all.Contains(js) || !all.Contains(css) || !all.Contains(all) {
		t.Error("composite should contain its parts and itself")
	}
	// Равенство по идентичности, не по содержимому
	if all.Contains(other) {
		t.Error("composite should not contain a heap with equal content")
	}

	got, err := all.Resources(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a.js", "a.css"}, domain.Names(got)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestHeap_Notify(t *testing.T) {
	s := newStore(t, "a.js")
	ctx := context.Background()

	part, _ := New("part", s, []string{"a.js"})

	var notified []string
	all, _ := New("all", nil, nil,
		WithComposition(part),
		WithListener(func(h *Heap) { notified = append(notified, h.ID()) }),
	)
	_ = all

	s.Poll(ctx)
	s.Put("a.js", []byte("changed"))
	if err := s.Poll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"all"}, notified); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestHeap_Disposable(t *testing.T) {
	s := newStore(t, "a.js")
	ctx := context.Background()

	calls := 0
	New("tmp", s, []string{"a.js"}, Disposable(), WithListener(func(*Heap) { calls++ }))

	s.Poll(ctx)
	s.Put("a.js", []byte("changed"))
	s.Poll(ctx)

	if calls != 0 {
		t.Errorf("disposable heap should not observe store, got %d calls", calls)
	}
}

func TestHeap_Errors(t *testing.T) {
	if _, err := New("empty", nil, nil); !errors.Is(err, ErrNoSource) {
		t.Errorf("expected ErrNoSource, got %v", err)
	}

	s := newStore(t)
	h, _ := New("missing", s, []string{"missing.js"})
	if _, err := h.Resources(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected store.ErrNotFound, got %v", err)
	}
}

func TestHeap_Generation(t *testing.T) {
	s := newStore(t, "a.js")
	part, _ := New("part", s, []string{"a.js"})
	all, _ := New("all", nil, nil, WithComposition(part))

	before := all.Generation()
	part.Notify()
	if part.Generation() != 1 {
		t.Errorf("expected generation 1, got %d", part.Generation())
	}
	if all.Generation() == before {
		t.Error("composite generation should change with its parts")
	}

	// Временный composite не подписан на части, но видит их поколение
	tmp, _ := New("tmp", nil, nil, WithComposition(part), Disposable())
	before = tmp.Generation()
	part.Notify()
	if tmp.Generation() == before {
		t.Error("disposable composite generation should follow its parts")
	}
}

func TestHeap_Close(t *testing.T) {
	s := newStore(t, "a.js")
	ctx := context.Background()

	part, _ := New("part", s, []string{"a.js"})
	all, _ := New("all", nil, nil, WithComposition(part))

	calls := 0
	all.AddListener(func(*Heap) { calls++ })

	replaced, _ := New("part", s, []string{"a.js"})
	part.Close()
	part.Close()
	if n := part.ListenerCount(); n != 1 {
		t.Errorf("closing part must keep its own listeners, got %d", n)
	}
	all.Close()
	if n := part.ListenerCount(); n != 0 {
		t.Errorf("expected composite to unsubscribe from part, got %d listeners", n)
	}
	if !part.IsClosed() || replaced.IsClosed() {
		t.Errorf("unexpected closed state: part=%v replaced=%v", part.IsClosed(), replaced.IsClosed())
	}

	s.Poll(ctx)
	s.Put("a.js", []byte("changed"))
	s.Poll(ctx)

	if calls != 0 {
		t.Errorf("closed heap should not be notified, got %d calls", calls)
	}
	if replaced.Generation() != 1 {
		t.Errorf("live heap generation = %d, want 1", replaced.Generation())
	}
	if part.Generation() != 0 {
		t.Errorf("closed heap generation = %d, want 0", part.Generation())
	}
}
