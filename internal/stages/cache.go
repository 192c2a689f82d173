package stages

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/engine"
	"github.com/shaiso/wuic/internal/property"
	"github.com/shaiso/wuic/internal/telemetry"
)

// generational — heap, у которого есть поколение (heap.Heap).
type generational interface {
	Generation() uint64
}

// cacheKey — ключ запроса плюс пропускаемые типы стадий и путь
// публикации: best-effort запрос не должен получить полный результат
// и наоборот, а ссылки, переписанные inspector, зависят от пути.
type cacheKey struct {
	key         engine.Key
	skip        string
	contextPath string
}

type cacheEntry struct {
	resources  []domain.Resource
	generation uint64
	expires    time.Time
}

// Cache — head стадия, кэширующая результат обработки в памяти.
//
// Запись считается устаревшей, если истёк ttl или heap запроса
// сменил поколение (хранилище сообщило об изменении). Одновременные
// промахи по одному ключу выполняют обработку один раз (singleflight).
type Cache struct {
	base
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]*cacheEntry
	flight  singleflight.Group
}

// NewCache создаёт активный кэш. ttl = 0 — без истечения.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		base:    base{active: true},
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[cacheKey]*cacheEntry),
	}
}

// Types возвращает все типы.
func (s *Cache) Types() []domain.ResourceType { return domain.AllTypes() }

// Kind возвращает StageCache.
func (s *Cache) Kind() engine.StageType { return engine.StageCache }

// Run кэширует результат оставшейся части цепочки.
func (s *Cache) Run(ctx context.Context, req *engine.Request) ([]domain.Resource, error) {
	return s.cached(ctx, req, func() ([]domain.Resource, error) {
		return engine.Execute(ctx, s.Next(), req)
	})
}

// Process кэширует результат всех цепочек запроса.
func (s *Cache) Process(ctx context.Context, req *engine.Request) ([]domain.Resource, error) {
	if !s.Active() {
		return engine.RunChains(ctx, req)
	}
	return s.cached(ctx, req, func() ([]domain.Resource, error) {
		return engine.RunChains(ctx, req)
	})
}

// ProcessPath возвращает ресурс с именем path из кэшированного результата.
func (s *Cache) ProcessPath(ctx context.Context, req *engine.Request, path string) (domain.Resource, error) {
	resources, err := s.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	return domain.FindByName(resources, path), nil
}

// Invalidate удаляет записи workflow.
func (s *Cache) Invalidate(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if k.key.WorkflowID() == workflowID {
			delete(s.entries, k)
		}
	}
}

// Len возвращает число записей.
func (s *Cache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Cache) cached(ctx context.Context, req *engine.Request, compute func() ([]domain.Resource, error)) ([]domain.Resource, error) {
	key, err := req.Key()
	if err != nil {
		return nil, err
	}
	ck := cacheKey{key: key, skip: skipSignature(req), contextPath: req.ContextPath()}
	gen := generationOf(req)

	if res, ok := s.lookup(ck, gen); ok {
		telemetry.CacheHits.Inc()
		return res, nil
	}
	telemetry.CacheMisses.Inc()

	flightKey := key.String() + "|" + ck.skip + "|" + ck.contextPath
	v, err, _ := s.flight.Do(flightKey, func() (any, error) {
		// Запись могла появиться, пока ждали очереди
		if res, ok := s.lookup(ck, gen); ok {
			return res, nil
		}
		res, err := compute()
		if err != nil {
			return nil, err
		}
		s.store(ck, gen, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	res := v.([]domain.Resource)
	return append([]domain.Resource(nil), res...), nil
}

func (s *Cache) lookup(ck cacheKey, gen uint64) ([]domain.Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[ck]
	if !ok || e.generation != gen {
		return nil, false
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		return nil, false
	}
	return append([]domain.Resource(nil), e.resources...), true
}

func (s *Cache) store(ck cacheKey, gen uint64, res []domain.Resource) {
	e := &cacheEntry{
		resources:  append([]domain.Resource(nil), res...),
		generation: gen,
	}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ck] = e
}

func skipSignature(req *engine.Request) string {
	skipped := req.Skipped()
	if len(skipped) == 0 {
		return ""
	}
	parts := make([]string, 0, len(skipped))
	for _, t := range engine.AllStageTypes() {
		if req.ShouldSkip(t) {
			parts = append(parts, t.String())
		}
	}
	return strings.Join(parts, ",")
}

func generationOf(req *engine.Request) uint64 {
	if g, ok := req.Group().(generational); ok {
		return g.Generation()
	}
	return 0
}

// CacheBuilder строит Cache.
//
// Свойства:
//   - active: bool
//   - ttl: длительность ("10m") или число секунд; 0 — без истечения
type CacheBuilder struct {
	opts options
	ttl  time.Duration
}

// NewCacheBuilder создаёт builder Cache.
func NewCacheBuilder() Builder {
	return &CacheBuilder{opts: defaultOptions()}
}

// Configure задаёт свойство.
func (b *CacheBuilder) Configure(key string, value any) error {
	handled, err := b.opts.configure(key, value)
	if handled {
		return err
	}
	if key != "ttl" {
		return property.Unsupported(key)
	}

	ttl, err := property.Duration(key, value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		return fmt.Errorf("%w: ttl=%s", property.ErrNotSupported, ttl)
	}
	b.ttl = ttl
	return nil
}

// Build создаёт кэш.
func (b *CacheBuilder) Build() (engine.Stage, error) {
	c := NewCache(b.ttl)
	c.active = b.opts.active
	return c, nil
}
