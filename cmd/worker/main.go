package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/athebyme/gomarket-sourcing/config"
	"github.com/athebyme/gomarket-sourcing/internal/adapters/logger"
	"github.com/athebyme/gomarket-sourcing/internal/adapters/messaging"
	"github.com/athebyme/gomarket-sourcing/internal/app"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Метрики для Prometheus
var (
	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_messages_processed_total",
		Help: "Общее количество обработанных сообщений",
	}, []string{"topic", "status"})

	messageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_message_processing_duration_seconds",
		Help:    "Длительность обработки сообщений",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"topic"})

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_active_goroutines",
		Help: "Количество активных горутин-обработчиков",
	})
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

	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	if !cfg.Postgres.Enabled || !cfg.Kafka.Enabled {
		log.Fatal("Воркеру нужны PostgreSQL и Kafka")
	}

	// Запускаем HTTP сервер для метрик если они включены
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("Запуск HTTP сервера для метрик",
				interfaces.LogField{Key: "addr", Value: metricsServer.Addr})

			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("Ошибка запуска HTTP сервера для метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	initCtx, initCancel := context.WithTimeout(ctx, time.Minute)
	deps, err := app.New(initCtx, cfg, log, app.Options{
		ClientID:    cfg.AppName + "-worker",
		Registerer:  prometheus.DefaultRegisterer,
		MemoCleanup: 10 * time.Minute,
	})
	initCancel()
	if err != nil {
		log.Fatal("Ошибка инициализации зависимостей", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Сервис поиска инициализирован")

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	subscribe(ctx, deps.Messaging, cfg.Kafka.RequestsTopic,
		instrument(cfg.Kafka.RequestsTopic, deps.Service.HandleSearchRequest, log), log, &wg)
	subscribe(ctx, deps.Messaging, cfg.Kafka.EventsTopic,
		instrument(cfg.Kafka.EventsTopic, logSearchEvent(log), log), log, &wg)

	// Обработка сигналов завершения
	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
		cancel()
		wg.Wait()

		if metricsServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Error("Ошибка остановки сервера метрик", interfaces.LogField{Key: "error", Value: err.Error()})
			}
			shutdownCancel()
		}

		if err := deps.Close(); err != nil {
			log.Error("Ошибка при закрытии зависимостей", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		close(done)
	}()

	log.Info("Воркер запущен и готов к обработке сообщений")
	<-done
	log.Info("Воркер корректно завершил работу")
}

// instrument оборачивает обработчик метриками и логированием
func instrument(topic string, handler interfaces.MessageHandler, logger interfaces.LoggerPort) interfaces.MessageHandler {
	return func(ctx context.Context, msg *interfaces.Message) error {
		startTime := time.Now()
		activeWorkers.Inc()
		defer activeWorkers.Dec()

		logger.DebugWithContext(ctx, "Получено сообщение",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.LogField{Key: "topic", Value: msg.Topic},
		)

		if err := handler(ctx, msg); err != nil {
			logger.ErrorWithContext(ctx, "Ошибка обработки сообщения",
				interfaces.LogField{Key: "message_id", Value: msg.ID},
				interfaces.LogField{Key: "error", Value: err.Error()})
			messagesProcessed.WithLabelValues(topic, "error").Inc()
			return err
		}

		messageProcessingDuration.WithLabelValues(topic).Observe(time.Since(startTime).Seconds())
		messagesProcessed.WithLabelValues(topic, "success").Inc()
		return nil
	}
}

// logSearchEvent журналирует завершение запусков
func logSearchEvent(logger interfaces.LoggerPort) interfaces.MessageHandler {
	return func(ctx context.Context, msg *interfaces.Message) error {
		ev, err := messaging.DecodeSearchEvent(msg.Value)
		if err != nil {
			logger.WarnWithContext(ctx, "Некорректное событие поиска",
				interfaces.LogField{Key: "message_id", Value: msg.ID},
				interfaces.LogField{Key: "error", Value: err.Error()})
			return nil
		}
		if ev.Type == messaging.SearchRequestedEvent {
			return nil
		}

		logger.InfoWithContext(ctx, "Запуск завершен",
			interfaces.LogField{Key: "event", Value: string(ev.Type)},
			interfaces.LogField{Key: "search_id", Value: ev.SearchID},
			interfaces.LogField{Key: "part_number", Value: ev.PartNumber},
			interfaces.LogField{Key: "status", Value: string(ev.Status)},
			interfaces.LogField{Key: "offers", Value: ev.OfferCount},
		)
		return nil
	}
}

// subscribe подписывается на топик и держит подписку до отмены ctx
func subscribe(ctx context.Context, messagingClient interfaces.MessagingPort, topic string,
	handler interfaces.MessageHandler, logger interfaces.LoggerPort, wg *sync.WaitGroup) {

	wg.Add(1)

	go func() {
		defer wg.Done()

		unsubscribe, err := messagingClient.Subscribe(ctx, topic, handler)
		if err != nil {
			logger.Error("Ошибка подписки на топик",
				interfaces.LogField{Key: "topic", Value: topic},
				interfaces.LogField{Key: "error", Value: err.Error()})
			return
		}
		logger.Info("Подписка оформлена", interfaces.LogField{Key: "topic", Value: topic})

		<-ctx.Done()
		if err := unsubscribe(); err != nil {
			logger.Error("Ошибка отписки от топика",
				interfaces.LogField{Key: "topic", Value: topic},
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()
}
