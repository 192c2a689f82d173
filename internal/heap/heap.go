// Package heap содержит Heap — именованную группу ресурсов.
//
// Heap читает ресурсы из хранилища по списку путей и может включать
// другие heap (composition). Подписчики heap получают уведомление,
// когда хранилище сообщает об изменении одного из путей или когда
// heap удаляется вместе с тегом.
package heap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/store"
)

// ErrNoSource — heap без путей и без composition.
var ErrNoSource = errors.New("heap has neither paths nor composition")

// Listener вызывается при изменении ресурсов heap.
type Listener func(h *Heap)

// Option настраивает Heap.
type Option func(*Heap)

// WithComposition включает ресурсы других heap.
func WithComposition(heaps ...*Heap) Option {
	return func(h *Heap) {
		h.composition = append(h.composition, heaps...)
	}
}

// WithListener добавляет подписчика.
func WithListener(l Listener) Option {
	return func(h *Heap) {
		h.listeners = append(h.listeners, &listener{fn: l})
	}
}

// Disposable помечает heap как временный: он не подписывается
// на изменения хранилища.
func Disposable() Option {
	return func(h *Heap) {
		h.disposable = true
	}
}

// Heap — именованная группа ресурсов.
// Сравнение heap — по идентичности указателя.
type Heap struct {
	id          string
	store       store.Store
	paths       []string
	composition []*Heap
	disposable  bool

	generation atomic.Uint64

	mu        sync.Mutex
	listeners []*listener
	cancels   []func()
	closed    bool
}

type listener struct {
	fn Listener
}

// New создаёт heap. Если heap не временный, он подписывается на
// изменения своих путей в хранилище и на изменения вложенных heap.
func New(id string, s store.Store, paths []string, opts ...Option) (*Heap, error) {
	h := &Heap{
		id:    id,
		store: s,
		paths: append([]string(nil), paths...),
	}
	for _, opt := range opts {
		opt(h)
	}

	if len(h.paths) == 0 && len(h.composition) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, id)
	}
	if len(h.paths) > 0 && s == nil {
		return nil, fmt.Errorf("heap %s: paths given without store", id)
	}

	if h.disposable {
		return h, nil
	}

	for _, p := range h.paths {
		cancel, err := s.Observe(p, func(string) { h.Notify() })
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("observe %s: %w", p, err)
		}
		h.cancels = append(h.cancels, cancel)
	}
	for _, c := range h.composition {
		h.cancels = append(h.cancels, c.AddListener(func(*Heap) { h.Notify() }))
	}
	return h, nil
}

// Close отписывает heap от хранилища и вложенных heap.
// Собственные подписчики heap сохраняются. Повторный вызов безопасен.
func (h *Heap) Close() {
	h.mu.Lock()
	cancels := h.cancels
	h.cancels = nil
	h.closed = true
	h.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// IsClosed сообщает, был ли heap закрыт.
func (h *Heap) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// ID возвращает идентификатор heap.
func (h *Heap) ID() string { return h.id }

// Store возвращает хранилище (nil у чисто составного heap).
func (h *Heap) Store() store.Store { return h.store }

// Paths возвращает копию списка путей.
func (h *Heap) Paths() []string { return append([]string(nil), h.paths...) }

// Composition возвращает вложенные heap.
func (h *Heap) Composition() []*Heap { return append([]*Heap(nil), h.composition...) }

// IsDisposable сообщает, временный ли heap.
func (h *Heap) IsDisposable() bool { return h.disposable }

// Resources возвращает ресурсы heap: сначала собственные пути по
// порядку, затем ресурсы вложенных heap. Ресурс с уже встреченным
// именем пропускается.
func (h *Heap) Resources(ctx context.Context) ([]domain.Resource, error) {
	var out []domain.Resource
	seen := make(map[string]bool)

	add := func(resources []domain.Resource) {
		for _, r := range resources {
			if seen[r.Name()] {
				continue
			}
			seen[r.Name()] = true
			out = append(out, r)
		}
	}

	for _, p := range h.paths {
		resources, err := h.store.Fetch(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", p, err)
		}
		add(resources)
	}

	for _, c := range h.composition {
		resources, err := c.Resources(ctx)
		if err != nil {
			return nil, err
		}
		add(resources)
	}
	return out, nil
}

// Contains сообщает, является ли other этим heap или входит в него
// (на любой глубине).
func (h *Heap) Contains(other *Heap) bool {
	if h == other {
		return true
	}
	for _, c := range h.composition {
		if c.Contains(other) {
			return true
		}
	}
	return false
}

// AddListener добавляет подписчика и возвращает функцию отписки.
func (h *Heap) AddListener(l Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &listener{fn: l}
	h.listeners = append(h.listeners, sub)
	return func() { h.removeListener(sub) }
}

func (h *Heap) removeListener(sub *listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, l := range h.listeners {
		if l == sub {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount возвращает число подписчиков heap.
func (h *Heap) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Generation растёт при каждом уведомлении heap или любого вложенного
// heap. Кэш сравнивает сохранённое поколение с текущим.
func (h *Heap) Generation() uint64 {
	gen := h.generation.Load()
	for _, c := range h.composition {
		gen += c.Generation()
	}
	return gen
}

// Notify увеличивает поколение и уведомляет подписчиков.
func (h *Heap) Notify() {
	h.generation.Add(1)

	h.mu.Lock()
	listeners := append([]*listener(nil), h.listeners...)
	h.mu.Unlock()

	for _, l := range listeners {
		l.fn(h)
	}
}

// String реализует fmt.Stringer.
func (h *Heap) String() string { return "heap(" + h.id + ")" }
