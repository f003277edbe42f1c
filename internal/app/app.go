// Package app собирает зависимости сервиса из конфигурации
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sourcing/config"
	"github.com/athebyme/gomarket-sourcing/internal/adapters/cache"
	"github.com/athebyme/gomarket-sourcing/internal/adapters/messaging"
	"github.com/athebyme/gomarket-sourcing/internal/adapters/storage"
	"github.com/athebyme/gomarket-sourcing/internal/connectors"
	"github.com/athebyme/gomarket-sourcing/internal/domain/services"
	"github.com/athebyme/gomarket-sourcing/internal/security"
	"github.com/athebyme/gomarket-sourcing/internal/utils"
	"github.com/athebyme/gomarket-sourcing/pkg/auth"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/athebyme/gomarket-sourcing/pkg/tx"
	"github.com/prometheus/client_golang/prometheus"
)

// Options что поднимать помимо коннекторов
type Options struct {
	ClientID   string
	Registerer prometheus.Registerer
	// MemoCleanup интервал очистки in-memory кэшей; 0 отключает фоновую очистку
	MemoCleanup time.Duration
}

// App собранные зависимости; nil-поля означают выключенную подсистему
type App struct {
	Config    *config.Config
	Logger    interfaces.LoggerPort
	Registry  *connectors.Registry
	Service   *services.SearchService
	Storage   storage.Port
	Cache     interfaces.CachePort
	Messaging *messaging.KafkaMessaging

	closers []func() error
}

// New подключается к включенным в конфигурации зависимостям и создает сервис поиска
func New(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort, opts Options) (_ *App, err error) {
	a := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	deps := services.SearchDeps{
		Metrics: services.NewMetrics(opts.Registerer),
		Logger:  log,
	}

	var history connectors.HistorySource
	if cfg.Postgres.Enabled {
		connStr, err := utils.ConnectionParams{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			DBName:          cfg.Postgres.DBName,
			SSLMode:         cfg.Postgres.SSLMode,
			ApplicationName: cfg.AppName,
			Timeout:         cfg.Postgres.Timeout,
			PoolSize:        cfg.Postgres.PoolSize,
		}.DSN()
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации строки подключения базы: %w", err)
		}

		db, err := storage.NewPostgresStorage(ctx, connStr, int32(cfg.Postgres.PoolSize))
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации хранилища: %w", err)
		}
		a.Storage = db
		a.closers = append(a.closers, db.Close)

		if err := db.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ошибка создания схемы: %w", err)
		}
		log.Info("Хранилище инициализировано")

		history = db
		deps.Storage = db
		deps.TxManager = tx.NewTxManager(db.Pool(), log)
	}

	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			Namespace:    cfg.Redis.Namespace,
		})
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации кэша: %w", err)
		}
		a.Cache = redisCache
		log.Info("Кэш Redis инициализирован")
	} else {
		a.Cache = cache.NewMemoryCache(cfg.Search.CacheTTL, opts.MemoCleanup)
		log.Info("Используется кэш в памяти процесса")
	}
	a.closers = append(a.closers, a.Cache.Close)
	deps.Cache = a.Cache

	memo := cache.NewMemoryCache(cfg.Search.MemoTTL, opts.MemoCleanup)
	a.closers = append(a.closers, memo.Close)
	deps.Memo = memo

	if cfg.Kafka.Enabled {
		bus, err := messaging.NewKafkaMessaging(
			cfg.Kafka.Brokers,
			interfaces.ProducerConfig{
				ClientID:     opts.ClientID,
				BatchSize:    cfg.Kafka.BatchSize,
				LingerMs:     cfg.Kafka.LingerMs,
				Compression:  cfg.Kafka.CompressionType,
				RetryBackoff: cfg.Kafka.RetryBackoff,
				MaxRetries:   cfg.Kafka.MaxRetries,
				Idempotent:   cfg.Kafka.EnableIdempotence,
			},
			interfaces.ConsumerConfig{
				GroupID:         cfg.Kafka.GroupID,
				AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
			},
			log,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации системы обмена сообщениями: %w", err)
		}
		a.Messaging = bus
		a.closers = append(a.closers, bus.Close)

		topicsCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = bus.EnsureTopics(topicsCtx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor,
			cfg.Kafka.RequestsTopic, cfg.Kafka.EventsTopic)
		cancel()
		if err != nil {
			log.Warn("Не удалось создать топики Kafka", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		log.Info("Система обмена сообщениями инициализирована")
		deps.Messaging = bus
	}

	registry, err := connectors.Build(cfg.Connectors, history)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации коннекторов: %w", err)
	}
	a.Registry = registry
	deps.Catalog = registry
	log.Info("Коннекторы инициализированы", interfaces.LogField{Key: "enabled", Value: registry.Names()})

	a.Service = services.NewSearchService(deps, services.SearchConfig{
		Concurrency:      cfg.Search.Concurrency,
		ConnectorTimeout: cfg.Search.ConnectorTimeout,
		CacheTTL:         cfg.Search.CacheTTL,
		MemoTTL:          cfg.Search.MemoTTL,
		LockTTL:          cfg.Search.LockTTL,
		RequestsTopic:    cfg.Kafka.RequestsTopic,
		EventsTopic:      cfg.Kafka.EventsTopic,
	})
	return a, nil
}

// NewAuth создает проверку токенов; nil, если аутентификация выключена
func NewAuth(ctx context.Context, cfg *config.Config) (interfaces.AuthPort, error) {
	if !cfg.Security.AuthEnabled {
		return nil, nil
	}
	if cfg.Security.Keycloak.Enabled {
		client, err := auth.NewKeycloakClient(ctx, cfg.Security.Keycloak.GetKeycloakConfig())
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	privatePEM, publicPEM, err := cfg.Security.JWT.ReadKeys()
	if err != nil {
		return nil, err
	}
	manager, err := security.NewJWTManager(privatePEM, publicPEM, cfg.Security.JWT.Expiration, cfg.Security.JWT.Issuer)
	if err != nil {
		return nil, err
	}
	return manager, nil
}

// Health проверяет доступность хранилища
func (a *App) Health(ctx context.Context) error {
	if a.Storage == nil {
		return nil
	}
	return a.Storage.Ping(ctx)
}

// Close закрывает зависимости в порядке, обратном созданию
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
