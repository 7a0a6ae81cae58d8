package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/config"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/api"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/api/handlers"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/app"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	if cfg.Tenant != "" {
		log = log.WithField("tenant", cfg.Tenant)
	}
	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
		interfaces.LogField{Key: "storage", Value: cfg.Storage.Driver},
	)

	engine, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации движка синхронизации",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	syncHandler := handlers.NewSyncHandler(handlers.SyncHandlerConfig{
		Engine:         engine.Orchestrator,
		Feed:           engine.Feed,
		Bus:            engine.Bus,
		CommandTopic:   cfg.Kafka.CommandTopic,
		DefaultFeedURL: cfg.Sync.ImportURL,
		Logger:         log,
	})
	adminHandler := handlers.NewAdminHandler(engine.Audit, engine.Exclusions, engine.Rebuild, log)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Endpoint
	}
	router := api.SetupRouter(api.RouterConfig{
		Sync:               syncHandler,
		Admin:              adminHandler,
		Health:             engine.Store,
		Logger:             log,
		CORSAllowedOrigins: cfg.Security.CORSAllowOrigins,
		MetricsPath:        metricsPath,
		RateLimit:          cfg.Server.RateLimit,
		RateBurst:          cfg.Server.RateBurst,
		BodyLimit:          int64(cfg.Server.BodyLimit) << 20,
	})
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
		// отменяет незавершенные пакеты: прогоны закрываются с частичными счетчиками
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		log.Info("HTTP сервер остановлен")

		log.Info("Закрытие соединений с зависимостями...")
		engine.Close()
		close(done)
	}()

	<-done
	log.Info("Сервер корректно завершил работу")
	_ = log.Sync()
}
