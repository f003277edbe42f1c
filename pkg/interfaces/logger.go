package interfaces

import "context"

// LogLevel определяет уровни логирования
type LogLevel int

const (
	// Уровни логирования от наименее до наиболее важного
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
	PanicLevel
)

// LogField представляет дополнительное поле в логе
type LogField struct {
	Key   string
	Value interface{}
}

// Ключи контекста, которые логгер переносит в записи
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	TraceIDKey   ContextKey = "trace_id"
	SearchIDKey  ContextKey = "search_id"
	PrincipalKey ContextKey = "principal"
)

// LoggerPort определяет интерфейс для системы логирования
type LoggerPort interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	// Fatal логирует сообщение с уровнем Fatal и завершает программу
	Fatal(msg string, args ...interface{})

	// Методы логирования с контекстом

	DebugWithContext(ctx context.Context, msg string, args ...interface{})
	InfoWithContext(ctx context.Context, msg string, args ...interface{})
	WarnWithContext(ctx context.Context, msg string, args ...interface{})
	ErrorWithContext(ctx context.Context, msg string, args ...interface{})

	// WithFields возвращает новый логгер с добавленными полями
	WithFields(fields ...LogField) LoggerPort

	// WithField возвращает новый логгер с добавленным полем
	WithField(key string, value interface{}) LoggerPort

	// SetLevel устанавливает минимальный уровень логирования
	SetLevel(level LogLevel)

	// GetLevel возвращает текущий уровень логирования
	GetLevel() LogLevel

	// Sync синхронизирует записи буфера с хранилищем логов
	Sync() error
}
