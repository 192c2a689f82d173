package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/shaiso/wuic/internal/pipeline"
	"github.com/shaiso/wuic/internal/stages"
	"github.com/shaiso/wuic/internal/store"
	"github.com/shaiso/wuic/internal/telemetry"
)

// DefaultTag — тег, под которым регистрируется конфигурация файла.
const DefaultTag = "wuic.config"

// Config — конфигурация Loader.
type Config struct {
	Builder *pipeline.Builder
	Path    string

	// Stores и Stages — реестры видов. По умолчанию
	// store.DefaultRegistry и stages.DefaultRegistry.
	Stores *store.Registry
	Stages *stages.Registry

	Tag    string // default: DefaultTag
	Logger *slog.Logger
}

// Loader применяет файл конфигурации к Builder.
type Loader struct {
	builder *pipeline.Builder
	path    string
	stores  *store.Registry
	stages  *stages.Registry
	tag     string
	logger  *slog.Logger

	mu      sync.Mutex
	applied uint64
	loaded  bool
	current *File
}

// New создаёт Loader.
func New(cfg Config) (*Loader, error) {
	if cfg.Builder == nil {
		return nil, ErrNoBuilder
	}

	l := &Loader{
		builder: cfg.Builder,
		path:    cfg.Path,
		stores:  cfg.Stores,
		stages:  cfg.Stages,
		tag:     cfg.Tag,
		logger:  cfg.Logger,
	}
	if l.stores == nil {
		l.stores = store.DefaultRegistry()
	}
	if l.stages == nil {
		l.stages = stages.DefaultRegistry()
	}
	if l.tag == "" {
		l.tag = DefaultTag
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l, nil
}

// Load читает файл и применяет его, даже если он не менялся.
func (l *Loader) Load(ctx context.Context) error {
	return l.load(ctx, true)
}

// Reload применяет файл, только если его содержимое изменилось
// с прошлого применения.
func (l *Loader) Reload(ctx context.Context) error {
	return l.load(ctx, false)
}

func (l *Loader) load(ctx context.Context, force bool) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", l.path, err)
	}

	sum := xxhash.Sum64(data)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !force && l.loaded && sum == l.applied {
		return nil
	}

	f, err := Parse(data)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", l.path, err)
	}
	if err := l.apply(ctx, f); err != nil {
		return err
	}

	l.applied, l.loaded = sum, true
	return nil
}

// Apply заменяет содержимое тега конфигурацией f.
//
// Виды хранилищ и стадий и шаблоны фильтров проверяются до очистки
// тега. Если регистрация всё же не удалась, тег заново заполняется
// последней успешно применённой конфигурацией.
func (l *Loader) Apply(ctx context.Context, f *File) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apply(ctx, f)
}

func (l *Loader) apply(ctx context.Context, f *File) error {
	logger := telemetry.WithTag(l.logger, l.tag)

	if err := l.check(f); err != nil {
		return err
	}

	err := l.register(f)
	if err == nil {
		l.current = f
		logger.Info("configuration loaded",
			"path", l.path,
			"stores", len(f.Stores),
			"stages", len(f.Stages),
			"heaps", len(f.Heaps),
			"templates", len(f.Templates),
			"workflows", len(f.Workflows),
		)
		return nil
	}

	if l.current == nil {
		logger.Error("configuration partially applied", "path", l.path, "error", err)
		return err
	}
	if rerr := l.register(l.current); rerr != nil {
		logger.Error("configuration partially applied, previous configuration could not be restored",
			"path", l.path,
			"error", err,
			"restore_error", rerr,
		)
		return err
	}
	logger.Error("configuration rejected, previous configuration restored", "path", l.path, "error", err)
	return err
}

// check проверяет то, что не требует регистрации: виды хранилищ и
// стадий и регулярные выражения фильтров.
func (l *Loader) check(f *File) error {
	for _, s := range f.Stores {
		if _, err := l.stores.Builder(s.Kind); err != nil {
			return fmt.Errorf("store %s: %w", s.ID, err)
		}
	}
	for _, s := range f.Stages {
		if _, err := l.stages.Builder(s.Kind); err != nil {
			return fmt.Errorf("stage %s: %w", s.ID, err)
		}
	}
	if len(f.Filters) > 0 {
		if _, err := pipeline.NewRegexFilter(f.Filters...); err != nil {
			return fmt.Errorf("filters: %w", err)
		}
	}
	return nil
}

// register очищает тег и регистрирует f в порядке зависимостей:
// хранилища, стадии, heap, шаблоны, workflow, interceptors.
func (l *Loader) register(f *File) error {
	b := l.builder

	defer b.Session(l.tag)()
	b.ClearTag(l.tag)

	for _, s := range f.Stores {
		sb, err := l.stores.Builder(s.Kind)
		if err != nil {
			return fmt.Errorf("store %s: %w", s.ID, err)
		}
		if err := b.RegisterStore(s.ID, sb, s.Properties); err != nil {
			return err
		}
	}

	for _, s := range f.Stages {
		sb, err := l.stages.Builder(s.Kind)
		if err != nil {
			return fmt.Errorf("stage %s: %w", s.ID, err)
		}
		if err := b.RegisterStage(s.ID, sb, s.Properties); err != nil {
			return err
		}
	}

	for _, h := range f.Heaps {
		var opts []pipeline.HeapOption
		if len(h.Composition) > 0 {
			opts = append(opts, pipeline.WithComposition(h.Composition...))
		}
		if h.Disposable {
			opts = append(opts, pipeline.DisposableHeap())
		}
		if err := b.RegisterHeap(h.ID, h.Store, h.Paths, opts...); err != nil {
			return err
		}
	}

	for _, t := range f.Templates {
		err := b.RegisterTemplate(t.ID, pipeline.TemplateDef{
			Stages:          t.Stages,
			Exclude:         t.Exclude,
			IncludeDefaults: t.IncludeDefaults,
			Stores:          t.Stores,
		})
		if err != nil {
			return err
		}
	}

	for _, w := range f.Workflows {
		if err := b.RegisterWorkflow(w.Prefix, w.ForEachHeap, w.HeapPattern, w.Template); err != nil {
			return err
		}
	}

	if len(f.Filters) > 0 {
		filter, err := pipeline.NewRegexFilter(f.Filters...)
		if err != nil {
			return fmt.Errorf("filters: %w", err)
		}
		b.RegisterInterceptor(filter)
	}
	if len(f.Aliases) > 0 {
		b.RegisterInterceptor(pipeline.NewWorkflowAlias(f.Aliases))
	}

	return nil
}
