// wuic-server — HTTP сервер конвейера статических ресурсов.
//
// Сервер:
//   - Загружает конфигурацию из WUIC_CONFIG и перечитывает её по расписанию
//   - Отдаёт обработанные ресурсы по /wuic/{workflow}/{path}
//   - Опрашивает хранилища (WUIC_POLL) и инвалидирует кэш при изменениях
//   - Выгружает workflow в выходные хранилища (worker)
//   - При заданном RABBITMQ_URL рассылает и принимает события инвалидации
//
// Переменные окружения: LOG_LEVEL, LOG_FORMAT, WUIC_CONFIG, WUIC_PORT,
// WUIC_POLL, WUIC_EXPORT_INTERVAL, DB_URL, WUIC_SQLITE, RABBITMQ_URL.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/wuic/internal/api"
	"github.com/shaiso/wuic/internal/loader"
	"github.com/shaiso/wuic/internal/mq"
	"github.com/shaiso/wuic/internal/pipeline"
	"github.com/shaiso/wuic/internal/repo"
	"github.com/shaiso/wuic/internal/scheduler"
	"github.com/shaiso/wuic/internal/store"
	"github.com/shaiso/wuic/internal/telemetry"
	"github.com/shaiso/wuic/internal/worker"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting wuic-server")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	builder := pipeline.NewBuilder(pipeline.Config{Logger: logger}).ConfigureDefaults()
	facade := pipeline.NewFacade(builder)

	// Виды хранилищ; postgres и sqlite доступны только с DB_URL и WUIC_SQLITE
	stores := store.DefaultRegistry()
	if dsn := os.Getenv("DB_URL"); dsn != "" {
		pool, err := repo.OpenPostgres(ctx, repo.PostgresConfig{DSN: dsn})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		stores.Register(store.KindPostgres, store.TableFactory(repo.NewNutRepo(pool)))
		logger.Info("database connected")
	}
	if path := os.Getenv("WUIC_SQLITE"); path != "" {
		db, err := repo.OpenSQLite(ctx, path)
		if err != nil {
			logger.Error("failed to open sqlite database", "path", path, "error", err)
			os.Exit(1)
		}
		defer db.Close()

		stores.Register(store.KindSQLite, store.TableFactory(repo.NewSQLiteNutRepo(db)))
		logger.Info("sqlite database opened", "path", path)
	}

	// Файл конфигурации
	var cfgLoader *loader.Loader
	if path := os.Getenv("WUIC_CONFIG"); path != "" {
		var err error
		cfgLoader, err = loader.New(loader.Config{
			Builder: builder,
			Path:    path,
			Stores:  stores,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to create config loader", "error", err)
			os.Exit(1)
		}
		if err := cfgLoader.Load(ctx); err != nil {
			logger.Error("failed to load configuration", "path", path, "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("WUIC_CONFIG is not set, serving default configuration only")
	}

	// RabbitMQ (опционально)
	nodeID := uuid.NewString()
	var (
		publisher *mq.Publisher
		consumer  *mq.Consumer
	)
	if mqURL := os.Getenv("RABBITMQ_URL"); mqURL != "" {
		conn, err := mq.Dial(mqURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, cluster invalidation disabled", "error", err)
		} else {
			defer conn.Close()
			logger.Info("RabbitMQ connected", "node_id", nodeID)

			publisher = mq.NewPublisher(conn, nodeID, logger)
			invalidator := mq.NewInvalidator(nodeID, builder, logger)
			consumer = mq.NewConsumer(conn, mq.ConsumerConfig{
				Handler: invalidator.Handle,
				Logger:  logger,
			})
		}
	}

	// Опрос хранилищ
	schedCfg := scheduler.Config{
		Source: builder,
		Spec:   os.Getenv("WUIC_POLL"),
		Logger: logger,
	}
	if publisher != nil {
		schedCfg.Publisher = publisher
	}
	sched, err := scheduler.New(schedCfg)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	if cfgLoader != nil {
		if err := sched.AddJob(sched.Spec(), "config-reload", cfgLoader.Reload); err != nil {
			logger.Error("failed to schedule config reload", "error", err)
			os.Exit(1)
		}
	}

	// Worker выгрузки
	var exportInterval time.Duration
	if v := os.Getenv("WUIC_EXPORT_INTERVAL"); v != "" {
		exportInterval, err = time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid WUIC_EXPORT_INTERVAL", "value", v, "error", err)
			os.Exit(1)
		}
	}
	w := worker.New(worker.Config{
		Facade:   facade,
		Consumer: consumer,
		Interval: exportInterval,
		Logger:   logger,
	})
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
			cancel()
		}
	}()

	// HTTP
	apiCfg := api.Config{
		Facade:   facade,
		Exporter: w,
		Logger:   logger,
	}
	if publisher != nil {
		apiCfg.Publisher = publisher
	}
	handler := api.NewHandler(apiCfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("WUIC_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	w.Stop()
	<-schedDone

	builder.Shutdown()

	logger.Info("wuic-server stopped")
}
