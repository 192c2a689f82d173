package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/shaiso/wuic/internal/mq"
	"github.com/shaiso/wuic/internal/pipeline"
)

// Worker выгружает workflow по расписанию и по запросу.
type Worker struct {
	facade      *pipeline.Facade
	consumer    *mq.Consumer
	interval    time.Duration
	concurrency int
	logger      *slog.Logger

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stoppedMu  sync.RWMutex
	stopped    bool
}

// Config — конфигурация Worker.
type Config struct {
	Facade *pipeline.Facade

	// Consumer событий инвалидации (опционально).
	Consumer *mq.Consumer

	// Interval — период выгрузки всех workflow (0 — выключено).
	Interval time.Duration

	// Concurrency — сколько ресурсов сохраняется параллельно
	// (default: GOMAXPROCS).
	Concurrency int

	Logger *slog.Logger
}

// New создаёт Worker.
func New(cfg Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		facade:      cfg.Facade,
		consumer:    cfg.Consumer,
		interval:    cfg.Interval,
		concurrency: concurrency,
		logger:      logger.With("component", "worker"),
	}
}

// Start запускает consumer событий и периодическую выгрузку.
func (w *Worker) Start(ctx context.Context) error {
	if w.IsStopped() {
		return ErrWorkerStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("event consumer error", "error", err)
			}
		}()
	}

	if w.interval > 0 {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.exportLoop(ctx)
		}()
	}

	w.logger.Info("worker started",
		"export_interval", w.interval,
		"concurrency", w.concurrency,
		"events", w.consumer != nil,
	)
	return nil
}

// Stop останавливает Worker и ждёт завершения горутин.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// exportLoop выгружает все workflow сразу и затем каждые interval.
func (w *Worker) exportLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.exportAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.exportAll(ctx)
		}
	}
}

func (w *Worker) exportAll(ctx context.Context) {
	results, err := w.ExportAll(ctx)
	if err != nil {
		w.logger.Error("periodic export failed", "error", err)
	}
	w.logger.Debug("periodic export done", "workflows", len(results))
}
