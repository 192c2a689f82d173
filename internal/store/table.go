package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/property"
	"github.com/shaiso/wuic/internal/repo"
)

// Виды хранилищ в таблице nuts.
const (
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
)

// NutRepository — доступ к таблице ресурсов.
// Реализуется repo.NutRepo (PostgreSQL) и repo.SQLiteNutRepo.
type NutRepository interface {
	Names(ctx context.Context, namespace string) ([]string, error)
	Get(ctx context.Context, namespace, name string) (*repo.NutRecord, error)
	Upsert(ctx context.Context, rec *repo.NutRecord) error
	Versions(ctx context.Context, namespace string) (map[string]string, error)
}

// Table — хранилище ресурсов в таблице nuts. Один репозиторий делят
// несколько хранилищ, каждое видит только свой namespace.
type Table struct {
	watchers

	repo      NutRepository
	namespace string
	closed    atomic.Bool
}

// NewTable создаёт хранилище для namespace.
func NewTable(r NutRepository, namespace string) *Table {
	return &Table{repo: r, namespace: namespace}
}

// Fetch возвращает ресурсы namespace по пути.
// Содержимое загружается при первом чтении.
func (t *Table) Fetch(ctx context.Context, path string) ([]domain.Resource, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}

	all, err := t.repo.Names(ctx, t.namespace)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	names, err := filterNames(path, all)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Resource, 0, len(names))
	for _, name := range names {
		typ, err := domain.TypeForPath(name)
		if err != nil {
			continue
		}
		name := name
		out = append(out, domain.NewLazyNut(name, typ, func(ctx context.Context) ([]byte, error) {
			rec, err := t.repo.Get(ctx, t.namespace, name)
			if errors.Is(err, repo.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			if err != nil {
				return nil, err
			}
			return rec.Content, nil
		}))
	}
	return out, nil
}

// SupportsSave всегда true.
func (t *Table) SupportsSave() bool { return true }

// Save сохраняет ресурс в namespace.
func (t *Table) Save(ctx context.Context, r domain.Resource) error {
	if t.closed.Load() {
		return ErrClosed
	}
	name, err := cleanName(r.Name())
	if err != nil {
		return err
	}
	data, err := domain.ReadAll(ctx, r)
	if err != nil {
		return fmt.Errorf("read %s: %w", r.Name(), err)
	}

	return t.repo.Upsert(ctx, &repo.NutRecord{
		Namespace: t.namespace,
		Name:      name,
		Type:      string(r.Type()),
		Content:   data,
		Version:   domain.Fingerprint(data),
	})
}

// Shutdown останавливает хранилище. Пул соединений принадлежит
// вызывающему коду и не закрывается.
func (t *Table) Shutdown() { t.closed.Store(true) }

// Checksum строится из версий, хранящихся в таблице.
func (t *Table) Checksum(ctx context.Context, path string) (string, error) {
	if t.closed.Load() {
		return "", ErrClosed
	}

	versions, err := t.repo.Versions(ctx, t.namespace)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}

	all := make([]string, 0, len(versions))
	for n := range versions {
		all = append(all, n)
	}
	names, err := filterNames(path, all)
	if err != nil {
		return "", err
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte(':')
		b.WriteString(versions[n])
		b.WriteByte('\n')
	}
	return domain.Fingerprint([]byte(b.String())), nil
}

// Poll проверяет наблюдаемые пути.
func (t *Table) Poll(ctx context.Context) error {
	return t.poll(ctx, t.Checksum)
}

// TableBuilder строит Table.
//
// Свойства:
//   - namespace: string (обязательно)
type TableBuilder struct {
	repo      NutRepository
	namespace string
}

// TableFactory возвращает фабрику builder'ов, разделяющих один репозиторий.
func TableFactory(r NutRepository) Factory {
	return func() Builder {
		return &TableBuilder{repo: r}
	}
}

// Configure задаёт свойство.
func (b *TableBuilder) Configure(key string, value any) error {
	if key != "namespace" {
		return property.Unsupported(key)
	}
	ns, err := property.String(key, value)
	if err != nil {
		return err
	}
	b.namespace = ns
	return nil
}

// Build создаёт хранилище.
func (b *TableBuilder) Build() (Store, error) {
	if b.repo == nil {
		return nil, fmt.Errorf("%w: no database configured", ErrInvalidConfig)
	}
	if b.namespace == "" {
		return nil, fmt.Errorf("%w: namespace is required", ErrInvalidConfig)
	}
	return NewTable(b.repo, b.namespace), nil
}
