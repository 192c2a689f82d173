package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/wuic/internal/heap"
	"github.com/shaiso/wuic/internal/store"
	"github.com/shaiso/wuic/internal/telemetry"
)

// Source — зарегистрированные хранилища и heap (pipeline.Builder).
type Source interface {
	Stores() map[string]store.Store
	HeapIDs() []string
	Heap(id string) (*heap.Heap, bool)
}

// Publisher рассылает изменения heap другим узлам (mq.Publisher).
type Publisher interface {
	PublishHeapChanged(ctx context.Context, heapID string) error
}

// Config — конфигурация Scheduler.
type Config struct {
	Source    Source
	Publisher Publisher // опционально
	Spec      string    // default: DefaultSpec
	Logger    *slog.Logger
}

// Scheduler опрашивает хранилища по расписанию.
type Scheduler struct {
	source    Source
	publisher Publisher
	spec      string
	logger    *slog.Logger

	jobs []job
}

type job struct {
	spec string
	name string
	fn   func(ctx context.Context) error
}

// New создаёт Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Source == nil {
		return nil, ErrNoSource
	}
	spec := cfg.Spec
	if spec == "" {
		spec = DefaultSpec
	}
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		source:    cfg.Source,
		publisher: cfg.Publisher,
		spec:      spec,
		logger:    logger,
	}, nil
}

// Spec возвращает расписание опроса.
func (s *Scheduler) Spec() string {
	return s.spec
}

// AddJob добавляет задачу, выполняемую по spec вместе с опросом.
// Вызывается до Run.
func (s *Scheduler) AddJob(spec, name string, fn func(ctx context.Context) error) error {
	if err := ValidateSpec(spec); err != nil {
		return err
	}
	s.jobs = append(s.jobs, job{spec: spec, name: name, fn: fn})
	return nil
}

// retiredStoreLabel — метка метрики опроса для заменённых хранилищ.
const retiredStoreLabel = "retired"

// Tick опрашивает все хранилища один раз.
//
// Ошибка одного хранилища не мешает опросу остальных. Heap, поколение
// которых выросло за опрос, публикуются через Publisher.
func (s *Scheduler) Tick(ctx context.Context) error {
	before := s.generations()

	stores := s.source.Stores()
	ids := make([]string, 0, len(stores))
	for id := range stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	polled := make(map[store.Store]bool, len(ids))
	var failed int
	poll := func(id string, st store.Store) {
		polled[st] = true
		telemetry.StorePolls.WithLabelValues(id).Inc()
		if err := st.Poll(ctx); err != nil {
			failed++
			telemetry.WithStoreID(s.logger, id).Error("store poll failed", "error", err)
		}
	}
	for _, id := range ids {
		poll(id, stores[id])
	}

	// Heap может читать из хранилища, заменённого под тем же ID
	for _, id := range s.source.HeapIDs() {
		h, ok := s.source.Heap(id)
		if !ok || h.Store() == nil || polled[h.Store()] {
			continue
		}
		poll(retiredStoreLabel, h.Store())
	}

	changed := s.changedHeaps(before)
	for _, id := range changed {
		if s.publisher == nil {
			break
		}
		if err := s.publisher.PublishHeapChanged(ctx, id); err != nil {
			// Узлы, не получившие событие, увидят изменение своим опросом
			telemetry.WithHeapID(s.logger, id).Warn("failed to publish heap.changed", "error", err)
		}
	}

	s.logger.Debug("store poll completed",
		"stores", len(polled),
		"failed", failed,
		"heaps_changed", len(changed),
	)
	return nil
}

func (s *Scheduler) generations() map[string]uint64 {
	gens := make(map[string]uint64)
	for _, id := range s.source.HeapIDs() {
		if h, ok := s.source.Heap(id); ok {
			gens[id] = h.Generation()
		}
	}
	return gens
}

// changedHeaps возвращает ID heap, поколение которых изменилось.
// Heap, зарегистрированные во время опроса, не учитываются.
func (s *Scheduler) changedHeaps(before map[string]uint64) []string {
	var changed []string
	for id, gen := range s.generations() {
		if prev, ok := before[id]; ok && prev != gen {
			changed = append(changed, id)
		}
	}
	sort.Strings(changed)
	return changed
}

// Run запускает опрос и задачи и блокируется до отмены ctx.
// Запуски одной задачи не перекрываются.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	all := append([]job{{spec: s.spec, name: "poll", fn: s.Tick}}, s.jobs...)
	for _, j := range all {
		j := j
		_, err := c.AddFunc(j.spec, func() {
			start := time.Now()
			if err := j.fn(ctx); err != nil {
				s.logger.Error("scheduled job failed", "job", j.name, "error", err)
				return
			}
			s.logger.Debug("scheduled job done", "job", j.name, "duration", time.Since(start))
		})
		if err != nil {
			return err
		}
	}

	s.logger.Info("scheduler started", "poll_spec", s.spec, "jobs", len(all))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}
