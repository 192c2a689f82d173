package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы обработки для label outcome.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Метрики конвейера. Регистрируются в prometheus.DefaultRegisterer.
var (
	// ProcessTotal — обработанные запросы по workflow и исходу.
	ProcessTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wuic_process_total",
		Help: "Total number of processed workflow requests",
	}, []string{"workflow", "outcome"})

	// ProcessDuration — длительность обработки запроса.
	ProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wuic_process_duration_seconds",
		Help:    "Duration of workflow request processing",
		Buckets: prometheus.DefBuckets,
	}, []string{"workflow"})

	// ContextRebuilds — сколько раз пересобирался устаревший контекст.
	ContextRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wuic_context_rebuilds_total",
		Help: "Total number of execution context rebuilds",
	})

	// CacheHits — попадания в кэш head стадии.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wuic_cache_hits_total",
		Help: "Total number of cache hits",
	})

	// CacheMisses — промахи кэша head стадии.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wuic_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// StorePolls — опросы хранилищ на изменения.
	StorePolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wuic_store_polls_total",
		Help: "Total number of store change polls",
	}, []string{"store"})

	// ExportsTotal — выгрузки workflow в выходные хранилища.
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wuic_exports_total",
		Help: "Total number of workflow exports",
	}, []string{"outcome"})
)

// Outcome возвращает значение label outcome для ошибки.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
