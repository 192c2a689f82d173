package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/wuic/internal/pipeline"
	"github.com/shaiso/wuic/internal/worker"
)

// DefaultContextPath — префикс URL, под которым отдаются ресурсы.
const DefaultContextPath = "/wuic"

// Exporter выгружает workflow в выходные хранилища (worker.Worker).
type Exporter interface {
	Export(ctx context.Context, workflowID string) (*worker.ExportResult, error)
}

// TagPublisher рассылает узлам кластера сообщение об удалении тега (mq.Publisher).
type TagPublisher interface {
	PublishTagCleared(ctx context.Context, tag string) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	facade      *pipeline.Facade
	exporter    Exporter
	publisher   TagPublisher
	contextPath string
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Facade *pipeline.Facade

	// Exporter — nil, если выгрузка не настроена.
	Exporter Exporter

	// Publisher — nil без RabbitMQ.
	Publisher TagPublisher

	// ContextPath — префикс URL ресурсов (по умолчанию DefaultContextPath).
	ContextPath string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	contextPath := cfg.ContextPath
	if contextPath == "" {
		contextPath = DefaultContextPath
	}

	return &Handler{
		facade:      cfg.Facade,
		exporter:    cfg.Exporter,
		publisher:   cfg.Publisher,
		contextPath: contextPath,
		logger:      logger,
	}
}
