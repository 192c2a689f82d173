package stages

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр видов стадий.
//
// Позволяет получать Builder по имени вида (для конфигурации из файла).
// Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными стадиями.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, k := range DefaultKinds() {
		r.Register(k.String(), DefaultFactory(k))
	}
	return r
}

// Register регистрирует вид стадии.
// Если вид уже существует, он будет перезаписан.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Builder возвращает новый Builder для вида.
// Возвращает ErrUnknownKind, если вид не найден.
func (r *Registry) Builder(kind string) (Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, exists := r.factories[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return f(), nil
}

// Has проверяет, зарегистрирован ли вид.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[kind]
	return exists
}

// Kinds возвращает список зарегистрированных видов по алфавиту.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
