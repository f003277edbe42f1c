package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sourcing/pkg/errors"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/go-redis/redis/v8"
)

// RedisOptions параметры подключения к Redis
type RedisOptions struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Namespace    string // префикс всех ключей сервиса
}

type RedisCache struct {
	client    *redis.Client
	namespace string
}

func NewRedisCache(ctx context.Context, opts RedisOptions) (interfaces.CachePort, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		MaxRetries:   opts.MaxRetries,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, namespace: opts.Namespace}, nil
}

func (r *RedisCache) buildKey(key string) string {
	return buildKey(r.namespace, key)
}

func buildKey(namespace, key string) string {
	if namespace != "" {
		return fmt.Sprintf("%s:%s", namespace, key)
	}
	return key
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.ErrCacheMiss
		}
		return nil, err
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, r.buildKey(key), value, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.buildKey(key)).Err()
}

func (r *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, r.buildKey(pattern), 100).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("ошибка при удалении ключей кэша: %w", err)
			}
			keys = keys[:0]
		}
	}

	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("ошибка при удалении оставшихся ключей кэша: %w", err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("ошибка при сканировании ключей по шаблону: %w", err)
	}

	return nil
}

// Lock реализует простую блокировку через SET NX
func (r *RedisCache) Lock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.buildKey("lock:"+key), "1", expiration).Result()
}

func (r *RedisCache) Unlock(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, r.buildKey("lock:"+key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.ErrLockNotHeld
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
