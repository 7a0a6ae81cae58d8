// Package metrics содержит метрики Prometheus сервиса синхронизации
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemoteRequests вызовы API удаленного каталога
	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_remote_requests_total",
		Help: "Количество запросов к API удаленного каталога",
	}, []string{"method", "resource", "status"})

	RemoteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_remote_request_duration_seconds",
		Help:    "Длительность запросов к API удаленного каталога",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "resource"})

	RemoteRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_remote_retries_total",
		Help: "Количество повторов запросов после 429/5xx",
	}, []string{"resource"})

	// SyncOutcomes результаты операций синхронизации по статусам
	SyncOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_outcomes_total",
		Help: "Результаты операций синхронизации",
	}, []string{"op", "status"})

	DiffSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_diff_entries",
		Help:    "Количество расхождений на одну запись",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	LookupResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_lookup_resolutions_total",
		Help: "Разрешения SKU по источнику",
	}, []string{"source"})

	// ImagePasses проходы сверки изображений: unchanged, replaced, skipped
	ImagePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_image_passes_total",
		Help: "Проходы сверки изображений",
	}, []string{"result"})

	ImageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_image_operations_total",
		Help: "Операции над изображениями",
	}, []string{"operation", "status"})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_active_import_runs",
		Help: "Количество незавершенных прогонов импорта",
	})

	// HTTP метрики админского API
	HTTPDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_durations_seconds",
		Help:    "Длительность HTTP запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Общее количество HTTP запросов",
	}, []string{"path", "method", "status"})

	HTTPActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_active_requests",
		Help: "Количество активных HTTP запросов",
	})

	// Метрики воркера
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_messages_processed_total",
		Help: "Общее количество обработанных сообщений",
	}, []string{"topic", "status"})

	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_message_processing_duration_seconds",
		Help:    "Длительность обработки сообщений",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_active_goroutines",
		Help: "Количество активных горутин-обработчиков",
	})

	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_operations_total",
		Help: "Количество операций с кэшем",
	}, []string{"operation", "status"})
)
