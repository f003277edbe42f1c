package cache

import (
	"context"
	"path"
	"time"

	"github.com/athebyme/gomarket-sourcing/pkg/errors"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache кэш в памяти процесса; используется CLI и для мемоизации альтернатив
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache создает кэш с заданным сроком по умолчанию и интервалом очистки
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) interfaces.CachePort {
	return &MemoryCache{store: gocache.New(defaultExpiration, cleanupInterval)}
}

func expirationOrDefault(expiration time.Duration) time.Duration {
	if expiration == 0 {
		return gocache.NoExpiration
	}
	return expiration
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, errors.ErrCacheMiss
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, errors.ErrCacheMiss
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)
	m.store.Set(key, data, expirationOrDefault(expiration))
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

// DeleteByPattern понимает glob-шаблоны в стиле Redis ("search:*")
func (m *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range m.store.Items() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return err
		}
		if matched {
			m.store.Delete(key)
		}
	}
	return nil
}

func (m *MemoryCache) Lock(_ context.Context, key string, expiration time.Duration) (bool, error) {
	err := m.store.Add("lock:"+key, []byte("1"), expirationOrDefault(expiration))
	return err == nil, nil
}

func (m *MemoryCache) Unlock(_ context.Context, key string) error {
	if _, ok := m.store.Get("lock:" + key); !ok {
		return errors.ErrLockNotHeld
	}
	m.store.Delete("lock:" + key)
	return nil
}

func (m *MemoryCache) Close() error {
	m.store.Flush()
	return nil
}
