package store

import (
	"fmt"
	"sort"
	"sync"
)

// Factory создаёт новый Builder для вида хранилища.
type Factory func() Builder

// Registry — реестр видов хранилищ.
//
// Загрузчик конфигурации получает Builder по имени вида.
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

// DefaultRegistry создаёт реестр с хранилищами, которым не нужны
// внешние зависимости: memory, disk, bolt. Postgres и sqlite регистрируются
// отдельно через TableFactory, когда открыта база.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindMemory, NewMemoryBuilder)
	r.Register(KindDisk, NewDiskBuilder)
	r.Register(KindBolt, NewBoltBuilder)
	return r
}

// Register регистрирует вид. Существующий вид перезаписывается.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Builder возвращает новый Builder для вида.
func (r *Registry) Builder(kind string) (Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return f(), nil
}

// Kinds возвращает зарегистрированные виды по алфавиту.
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
