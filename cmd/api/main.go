package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/gomarket-sourcing/config"
	"github.com/athebyme/gomarket-sourcing/internal/adapters/logger"
	"github.com/athebyme/gomarket-sourcing/internal/api"
	"github.com/athebyme/gomarket-sourcing/internal/app"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
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
	defer log.Sync()

	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	initCtx, initCancel := context.WithTimeout(ctx, time.Minute)
	deps, err := app.New(initCtx, cfg, log, app.Options{
		ClientID:    cfg.AppName + "-api",
		Registerer:  prometheus.DefaultRegisterer,
		MemoCleanup: 10 * time.Minute,
	})
	initCancel()
	if err != nil {
		log.Fatal("Ошибка инициализации зависимостей", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	authPort, err := app.NewAuth(ctx, cfg)
	if err != nil {
		log.Fatal("Ошибка инициализации аутентификации", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	if authPort == nil {
		log.Warn("Аутентификация API отключена")
	}

	router := api.SetupRouter(api.RouterConfig{
		Searches:           deps.Service,
		Connectors:         deps.Registry,
		Defaults:           cfg.DefaultSearchOptions,
		Logger:             log,
		Auth:               authPort,
		CORSAllowedOrigins: cfg.Security.CORSAllowOrigins,
		RequestTimeout:     cfg.Server.RequestTimeout,
		RateLimit:          cfg.Server.RateLimit,
		RateBurst:          cfg.Server.RateBurst,
		Gatherer:           metricsGatherer(cfg),
		Registerer:         prometheus.DefaultRegisterer,
		Health:             deps.Health,
	})
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        http.MaxBytesHandler(router, int64(cfg.Server.BodyLimit)<<20),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		log.Info("HTTP сервер остановлен")

		log.Info("Закрытие соединений с зависимостями...")
		if err := deps.Close(); err != nil {
			log.Error("Ошибка при закрытии зависимостей", interfaces.LogField{Key: "error", Value: err.Error()})
		}

		close(done)
	}()

	<-done
	log.Info("Сервер корректно завершил работу")
}

// metricsGatherer отдает /metrics в API, если метрики включены
func metricsGatherer(cfg *config.Config) prometheus.Gatherer {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return prometheus.DefaultGatherer
}
