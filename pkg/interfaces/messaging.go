package interfaces

import (
	"context"
	"time"
)

// Message представляет сообщение в системе
type Message struct {
	ID          string            `json:"id"`           // Уникальный ID сообщения
	Topic       string            `json:"topic"`        // Тема сообщения
	Key         string            `json:"key"`          // Ключ сообщения (опционально)
	Value       []byte            `json:"value"`        // Содержимое сообщения
	Headers     map[string]string `json:"headers"`      // Заголовки сообщения
	PublishedAt time.Time         `json:"published_at"` // Время публикации
}

// MessageHandler определяет функцию обработчика сообщений
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig содержит настройки для подписчика на сообщения
type ConsumerConfig struct {
	GroupID            string        // ID группы потребителей
	AutoCommit         bool          // Автоматически подтверждать полученные сообщения
	AutoCommitInterval time.Duration // Интервал автоматического подтверждения
	PollTimeout        time.Duration // Таймаут для опроса новых сообщений
	AutoOffsetReset    string        // earliest / latest
}

// ProducerConfig содержит настройки для отправителя сообщений
type ProducerConfig struct {
	ClientID     string        // Идентификатор клиента
	BatchSize    int           // Размер пакета сообщений
	LingerMs     int           // Время ожидания заполнения пакета
	Compression  string        // Тип сжатия (none, gzip, snappy, lz4, zstd)
	RetryBackoff time.Duration // Время между повторными попытками
	MaxRetries   int           // Максимальное число повторных попыток
	Idempotent   bool          // Идемпотентная отправка
}

type MessagingPort interface {
	Publish(ctx context.Context, topic string, message []byte) error

	PublishWithKey(ctx context.Context, topic string, key string, message []byte) error

	Subscribe(ctx context.Context, topic string, handler MessageHandler) (func() error, error)

	Close() error
}
