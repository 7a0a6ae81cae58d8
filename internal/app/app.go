// Package app собирает движок синхронизации из конфигурации.
// Используется обоими процессами: cmd/api и cmd/worker
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/config"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/cache"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/lightspeed"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/pim"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/images"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/ports"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/services"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

const lookupCacheTTL = time.Hour

// App собранные зависимости движка
type App struct {
	Config *config.Config
	Logger interfaces.LoggerPort

	Store   ports.Store
	Cache   interfaces.CachePort
	Catalog *lightspeed.Client
	Feed    *pim.FeedClient
	// Bus nil, если Kafka выключена
	Bus interfaces.MessagingPort

	Lookup       *services.LookupService
	Audit        *services.AuditService
	Exclusions   *services.ExclusionService
	Rebuild      *services.RebuildService
	Orchestrator *services.Orchestrator

	closers []func() error
}

// New проверяет конфигурацию и подключает хранилище, кэш, клиента каталога и шину
func New(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: log}

	defaultMapping, err := cfg.LoadMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping: %w", err)
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Catalog, err = lightspeed.NewClient(lightspeed.Config{
		BaseURL:         cfg.Lightspeed.BaseURL,
		APIKey:          cfg.Lightspeed.APIKey,
		APISecret:       cfg.Lightspeed.APISecret,
		DefaultLanguage: cfg.Lightspeed.DefaultLanguage,
		Timeout:         cfg.Lightspeed.Timeout,
		RateLimit:       cfg.Lightspeed.RateLimit,
		RateBurst:       cfg.Lightspeed.RateBurst,
		MaxRetries:      cfg.Lightspeed.MaxRetries,
		RetryBackoff:    cfg.Lightspeed.RetryBackoff,
		MaxRetryBackoff: cfg.Lightspeed.MaxRetryBackoff,
	}, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Feed = pim.NewFeedClient(pim.FeedConfig{
		Timeout:      cfg.PIM.Timeout,
		MaxRedirects: cfg.PIM.MaxRedirects,
		Encoding:     cfg.PIM.Encoding,
	}, log)

	var events ports.EventPublisher
	if cfg.Kafka.Enabled {
		bus, err := messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.Kafka.GroupID, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Bus = bus
		a.closers = append(a.closers, bus.Close)
		events = messaging.NewEventPublisher(bus, cfg.Kafka.EventTopic)
		log.Info("Система обмена сообщениями инициализирована",
			interfaces.LogField{Key: "brokers", Value: cfg.Kafka.Brokers})
	}

	var locker ports.Locker = services.NewKeyedLocker()
	if cfg.Redis.Enabled {
		locker = services.NewCacheLocker(a.Cache, cfg.Sync.LockTTL, log)
	}

	a.Lookup = services.NewLookupService(a.Store, a.Catalog, a.Cache, lookupCacheTTL, log)
	a.Audit = services.NewAuditService(a.Store, log)
	a.Exclusions = services.NewExclusionService(a.Store, log)
	a.Rebuild = services.NewRebuildService(a.Catalog, a.Lookup, a.Store,
		cfg.Lightspeed.PageSize, cfg.Sync.ListDelay, log)

	downloader := pim.NewDownloader(cfg.Images.DownloadTimeout, cfg.Images.MaxRedirects, cfg.Images.MaxBytes)
	a.Orchestrator = services.NewOrchestrator(services.Dependencies{
		Catalog:    a.Catalog,
		Directory:  a.Store,
		Lookup:     a.Lookup,
		Audit:      a.Audit,
		Exclusions: a.Exclusions,
		Images:     images.NewReconciler(a.Catalog, a.Store, downloader, log),
		Locker:     locker,
		Events:     events,
		Logger:     log,
	}, services.Options{
		Mapping:      defaultMapping,
		Languages:    cfg.Lightspeed.Languages,
		BaseLanguage: cfg.Lightspeed.DefaultLanguage,
		ListDelay:    cfg.Sync.ListDelay,
		ItemDelay:    cfg.Sync.ItemDelay,
	})

	log.Info("Движок синхронизации инициализирован",
		interfaces.LogField{Key: "languages", Value: cfg.Lightspeed.Languages},
		interfaces.LogField{Key: "storage", Value: cfg.Storage.Driver},
		interfaces.LogField{Key: "redis", Value: cfg.Redis.Enabled},
		interfaces.LogField{Key: "kafka", Value: cfg.Kafka.Enabled},
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	opts := storage.Options{Driver: a.Config.Storage.Driver, SQLitePath: a.Config.SQLite.Path}
	if opts.Driver == storage.DriverPostgres {
		dsn, err := a.Config.PostgresDSN()
		if err != nil {
			return fmt.Errorf("failed to build postgres connection string: %w", err)
		}
		opts.PostgresDSN = dsn
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	store, err := storage.New(connectCtx, opts, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)
	return nil
}

func (a *App) openCache(ctx context.Context) error {
	r := a.Config.Redis
	if !r.Enabled {
		a.Cache = cache.NewMemoryCache(r.CacheCleanup)
		a.closers = append(a.closers, a.Cache.Close)
		return nil
	}
	c, err := cache.NewRedisCache(ctx, cache.RedisOptions{
		Host:      r.Host,
		Port:      r.Port,
		Password:  r.Password,
		DB:        r.DB,
		KeyPrefix: r.KeyPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.Cache = c
	a.closers = append(a.closers, c.Close)
	a.Logger.Info("Кэш инициализирован", interfaces.LogField{Key: "addr", Value: fmt.Sprintf("%s:%d", r.Host, r.Port)})
	return nil
}

// Close закрывает зависимости в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Error("Ошибка при закрытии зависимости", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
	a.closers = nil
}
