package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/property"
)

// KindMemory — вид хранилища в памяти.
const KindMemory = "memory"

// Memory — хранилище ресурсов в памяти.
// Используется в тестах и как выходное хранилище сервера.
type Memory struct {
	watchers

	mu       sync.RWMutex
	nuts     map[string]*domain.Nut
	readOnly bool
	closed   bool
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{nuts: make(map[string]*domain.Nut)}
}

// Put добавляет или заменяет ресурс. Тип определяется по имени.
func (m *Memory) Put(name string, data []byte) error {
	typ, err := domain.TypeForPath(name)
	if err != nil {
		return err
	}
	return m.put(domain.NewNut(name, typ, data))
}

func (m *Memory) put(n *domain.Nut) error {
	name, err := cleanName(n.Name())
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if name != n.Name() {
		data, _ := n.Bytes(context.Background())
		n = domain.NewNut(name, n.Type(), data)
	}
	m.nuts[name] = n
	return nil
}

// Remove удаляет ресурс.
func (m *Memory) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nuts, name)
}

// Fetch возвращает ресурсы по пути.
func (m *Memory) Fetch(ctx context.Context, path string) ([]domain.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	names, err := filterNames(path, m.names())
	if err != nil {
		return nil, err
	}
	out := make([]domain.Resource, 0, len(names))
	for _, n := range names {
		out = append(out, m.nuts[n])
	}
	return out, nil
}

func (m *Memory) names() []string {
	names := make([]string, 0, len(m.nuts))
	for n := range m.nuts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SupportsSave — false только для хранилища, собранного с read_only.
func (m *Memory) SupportsSave() bool { return !m.readOnly }

// Save сохраняет копию ресурса.
func (m *Memory) Save(ctx context.Context, r domain.Resource) error {
	if m.readOnly {
		return ErrSaveNotSupported
	}
	data, err := domain.ReadAll(ctx, r)
	if err != nil {
		return fmt.Errorf("read %s: %w", r.Name(), err)
	}
	return m.put(domain.NewNut(r.Name(), r.Type(), data))
}

// Shutdown закрывает хранилище.
func (m *Memory) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Checksum возвращает контрольную сумму ресурсов по пути.
func (m *Memory) Checksum(ctx context.Context, path string) (string, error) {
	resources, err := m.Fetch(ctx, path)
	if err != nil {
		return "", err
	}
	return checksumOf(ctx, resources)
}

// Poll проверяет наблюдаемые пути.
func (m *Memory) Poll(ctx context.Context) error {
	return m.poll(ctx, m.Checksum)
}

// MemoryBuilder строит Memory.
//
// Свойства:
//   - resources: map имя → содержимое (строка), начальные ресурсы
//   - read_only: bool, запрет сохранения
type MemoryBuilder struct {
	resources map[string]string
	readOnly  bool
}

// NewMemoryBuilder создаёт builder.
func NewMemoryBuilder() Builder {
	return &MemoryBuilder{resources: make(map[string]string)}
}

// Configure задаёт свойство.
func (b *MemoryBuilder) Configure(key string, value any) error {
	switch key {
	case "resources":
		m, ok := toStringMap(value)
		if !ok {
			return property.Unsupported(key)
		}
		for k, v := range m {
			b.resources[k] = v
		}
	case "read_only":
		v, err := property.Bool(key, value)
		if err != nil {
			return err
		}
		b.readOnly = v
	default:
		return property.Unsupported(key)
	}
	return nil
}

// Build создаёт хранилище.
func (b *MemoryBuilder) Build() (Store, error) {
	m := NewMemory()
	for name, content := range b.resources {
		if err := m.Put(name, []byte(content)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	m.readOnly = b.readOnly
	return m, nil
}

// toStringMap приводит map из YAML/JSON к map[string]string.
func toStringMap(value any) (map[string]string, bool) {
	out := make(map[string]string)
	switch m := value.(type) {
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			s, ok := v.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
	case map[any]any:
		for k, v := range m {
			ks, ok1 := k.(string)
			vs, ok2 := v.(string)
			if !ok1 || !ok2 {
				return nil, false
			}
			out[ks] = vs
		}
	default:
		return nil, false
	}
	return out, true
}
