package api

import (
	"net/http"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/api/handlers"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/api/middleware"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// RouterConfig зависимости маршрутизатора
type RouterConfig struct {
	Sync               *handlers.SyncHandler
	Admin              *handlers.AdminHandler
	Health             handlers.Pinger
	Logger             interfaces.LoggerPort
	CORSAllowedOrigins []string
	// MetricsPath пустой путь отключает /metrics
	MetricsPath string
	// RateLimit запросов в секунду, 0 - без ограничения
	RateLimit float64
	RateBurst int
	// BodyLimit максимальный размер тела запроса в байтах
	BodyLimit int64
}

// SetupRouter настраивает маршрутизатор
func SetupRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Metrics)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: false,
	}).Handler)
	if cfg.BodyLimit > 0 {
		r.Use(chimiddleware.RequestSize(cfg.BodyLimit))
	}
	if cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	}

	health := handlers.Health(cfg.Health)
	r.Get("/health", health)
	r.Head("/health", health)
	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/products", cfg.Sync.CreateProduct)
		r.Post("/products/update", cfg.Sync.UpdateExisting)
		r.Post("/variants", cfg.Sync.CreateVariant)

		r.Post("/sync", cfg.Sync.Sync)
		r.Post("/sync/batch", cfg.Sync.SyncBatch)
		r.Post("/sync/feed", cfg.Sync.SyncFeed)
		r.Post("/compare", cfg.Sync.Compare)
		r.Get("/fields", cfg.Sync.Fields)

		r.Post("/images/sync-by-sku", cfg.Sync.SyncImagesBySKU)
		r.Post("/images/sync-by-id", cfg.Sync.SyncImagesByID)

		r.Route("/exclusions", func(r chi.Router) {
			r.Get("/", cfg.Admin.ListExclusions)
			r.Post("/", cfg.Admin.Exclude)
			r.Delete("/{sku}", cfg.Admin.Unexclude)
		})

		r.Post("/lookup/rebuild", cfg.Admin.RebuildLookup)

		r.Route("/import-runs", func(r chi.Router) {
			r.Get("/", cfg.Admin.ListRuns)
			r.Get("/{id}", cfg.Admin.GetRun)
		})
	})

	return r
}
