package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/config"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/api/handlers"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/app"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/worker"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	if !cfg.Kafka.Enabled {
		log.Fatal("Воркеру нужна шина команд: включите kafka.enabled")
	}

	engine, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации движка синхронизации",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer engine.Close()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
		mux.HandleFunc("/health", handlers.Health(engine.Store))

		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("Запуск HTTP сервера для метрик",
				interfaces.LogField{Key: "addr", Value: metricsServer.Addr})
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Ошибка запуска HTTP сервера для метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	handler := worker.NewHandler(engine.Orchestrator, engine.Feed, engine.Rebuild, cfg.Sync.ImportURL, log)
	unsubscribe, err := engine.Bus.Subscribe(ctx, cfg.Kafka.CommandTopic, handler.Handle)
	if err != nil {
		log.Fatal("Ошибка подписки на команды",
			interfaces.LogField{Key: "topic", Value: cfg.Kafka.CommandTopic},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Воркер запущен и готов к обработке сообщений",
		interfaces.LogField{Key: "topic", Value: cfg.Kafka.CommandTopic})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
	cancel()
	if err := unsubscribe(); err != nil {
		log.Error("Ошибка отмены подписки", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	log.Info("Воркер корректно завершил работу")
}
