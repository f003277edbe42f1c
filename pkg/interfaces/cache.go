package interfaces

import (
	"context"
	"time"
)

// CachePort определяет интерфейс для работы с системой кэширования
// Реализация может использовать Redis или кэш в памяти процесса
type CachePort interface {
	// Get получает значение из кэша по ключу
	// Возвращает errors.ErrCacheMiss, если значение не найдено
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кэше с указанным сроком действия
	// Если expiration равно 0, срок действия не устанавливается
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete удаляет значение из кэша по ключу
	Delete(ctx context.Context, key string) error

	// DeleteByPattern удаляет все значения, соответствующие шаблону
	// Например, "search:*" удалит все ключи, начинающиеся с "search:"
	DeleteByPattern(ctx context.Context, pattern string) error

	// Lock пытается получить блокировку с указанным ключом
	// Возвращает true, если блокировка получена успешно
	Lock(ctx context.Context, key string, expiration time.Duration) (bool, error)

	// Unlock освобождает блокировку
	Unlock(ctx context.Context, key string) error

	// Close закрывает соединение с системой кэширования
	Close() error
}
