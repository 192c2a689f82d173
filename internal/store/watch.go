package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shaiso/wuic/internal/telemetry"
)

// watch — состояние одного наблюдаемого пути.
type watch struct {
	listeners []*subscription
	last      string
	primed    bool
}

type subscription struct {
	l Listener
}

// watchers реализует Observe и общую часть Poll.
// Встраивается в хранилища.
type watchers struct {
	mu     sync.Mutex
	byPath map[string]*watch
}

// Observe подписывает listener на изменения path.
func (w *watchers) Observe(path string, l Listener) (func(), error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil listener", ErrInvalidConfig)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.byPath == nil {
		w.byPath = make(map[string]*watch)
	}
	wt, ok := w.byPath[path]
	if !ok {
		wt = &watch{}
		w.byPath[path] = wt
	}
	sub := &subscription{l: l}
	wt.listeners = append(wt.listeners, sub)
	return func() { w.unobserve(path, sub) }, nil
}

// unobserve удаляет подписку. Путь без подписчиков больше не опрашивается.
func (w *watchers) unobserve(path string, sub *subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()

	wt, ok := w.byPath[path]
	if !ok {
		return
	}
	for i, s := range wt.listeners {
		if s == sub {
			wt.listeners = append(wt.listeners[:i], wt.listeners[i+1:]...)
			break
		}
	}
	if len(wt.listeners) == 0 {
		delete(w.byPath, path)
	}
}

// observed возвращает число наблюдаемых путей.
func (w *watchers) observed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.byPath)
}

// poll сравнивает контрольные суммы наблюдаемых путей с прошлыми.
// Первый опрос пути только запоминает сумму.
func (w *watchers) poll(ctx context.Context, checksum func(context.Context, string) (string, error)) error {
	w.mu.Lock()
	paths := make([]string, 0, len(w.byPath))
	for p := range w.byPath {
		paths = append(paths, p)
	}
	w.mu.Unlock()

	type change struct {
		path      string
		listeners []*subscription
	}

	var (
		changed []change
		errs    []error
	)

	for _, p := range paths {
		sum, err := checksum(ctx, p)
		if errors.Is(err, ErrNotFound) {
			// Удалённый ресурс — тоже изменение
			sum, err = "", nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("checksum %s: %w", p, err))
			continue
		}

		w.mu.Lock()
		wt, ok := w.byPath[p]
		if !ok {
			// Подписку отменили во время опроса
			w.mu.Unlock()
			continue
		}
		if wt.primed && wt.last != sum {
			changed = append(changed, change{path: p, listeners: append([]*subscription(nil), wt.listeners...)})
		}
		wt.last = sum
		wt.primed = true
		w.mu.Unlock()
	}

	logger := telemetry.FromContext(ctx)
	for _, c := range changed {
		logger.Info("store path changed", "path", c.path)
		for _, sub := range c.listeners {
			sub.l(c.path)
		}
	}

	return errors.Join(errs...)
}
