package logger

import (
	"context"

	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger адаптер для Zap, реализующий LoggerPort
type ZapLogger struct {
	logger *zap.SugaredLogger
	level  zap.AtomicLevel
}

// NewZapLogger создает новый логгер на основе Zap
func NewZapLogger(level string, isProduction bool) (interfaces.LoggerPort, error) {
	var config zap.Config

	if isProduction {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	// Парсинг уровня логирования
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{logger: logger.Sugar(), level: config.Level}, nil
}

// NewNopLogger возвращает логгер, который ничего не пишет
func NewNopLogger() interfaces.LoggerPort {
	return &ZapLogger{logger: zap.NewNop().Sugar(), level: zap.NewAtomicLevel()}
}

// NewFromCore оборачивает готовое ядро zap (используется в тестах с observer)
func NewFromCore(core zapcore.Core, level zap.AtomicLevel) interfaces.LoggerPort {
	return &ZapLogger{logger: zap.New(core).Sugar(), level: level}
}

// GetLoggerLevel преобразует строковый уровень логирования в LogLevel
func GetLoggerLevel(levelStr string) interfaces.LogLevel {
	switch levelStr {
	case "debug":
		return interfaces.DebugLevel
	case "info":
		return interfaces.InfoLevel
	case "warn":
		return interfaces.WarnLevel
	case "error":
		return interfaces.ErrorLevel
	case "fatal":
		return interfaces.FatalLevel
	case "panic":
		return interfaces.PanicLevel
	default:
		return interfaces.InfoLevel
	}
}

func toZapLevel(level interfaces.LogLevel) zapcore.Level {
	switch level {
	case interfaces.DebugLevel:
		return zapcore.DebugLevel
	case interfaces.WarnLevel:
		return zapcore.WarnLevel
	case interfaces.ErrorLevel:
		return zapcore.ErrorLevel
	case interfaces.FatalLevel:
		return zapcore.FatalLevel
	case interfaces.PanicLevel:
		return zapcore.PanicLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZapLevel(level zapcore.Level) interfaces.LogLevel {
	switch level {
	case zapcore.DebugLevel:
		return interfaces.DebugLevel
	case zapcore.WarnLevel:
		return interfaces.WarnLevel
	case zapcore.ErrorLevel:
		return interfaces.ErrorLevel
	case zapcore.FatalLevel:
		return interfaces.FatalLevel
	case zapcore.PanicLevel, zapcore.DPanicLevel:
		return interfaces.PanicLevel
	default:
		return interfaces.InfoLevel
	}
}

// convertToZapFields преобразует LogField в zap.Field
func convertToZapFields(args ...interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		if field, ok := arg.(interfaces.LogField); ok {
			out[i] = zap.Any(field.Key, field.Value)
			continue
		}
		out[i] = arg
	}
	return out
}

// extractFieldsFromContext извлекает поля из контекста
func extractFieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	for _, key := range []interfaces.ContextKey{interfaces.RequestIDKey, interfaces.TraceIDKey, interfaces.SearchIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}

	if p, ok := ctx.Value(interfaces.PrincipalKey).(*interfaces.Principal); ok && p != nil {
		fields = append(fields, zap.String("user_id", p.UserID))
	}

	return fields
}

func (z *ZapLogger) Debug(msg string, args ...interface{}) {
	z.logger.Debugw(msg, convertToZapFields(args...)...)
}

func (z *ZapLogger) Info(msg string, args ...interface{}) {
	z.logger.Infow(msg, convertToZapFields(args...)...)
}

func (z *ZapLogger) Warn(msg string, args ...interface{}) {
	z.logger.Warnw(msg, convertToZapFields(args...)...)
}

func (z *ZapLogger) Error(msg string, args ...interface{}) {
	z.logger.Errorw(msg, convertToZapFields(args...)...)
}

// Fatal логирует сообщение и завершает процесс (os.Exit внутри zap)
func (z *ZapLogger) Fatal(msg string, args ...interface{}) {
	z.logger.Fatalw(msg, convertToZapFields(args...)...)
}

func (z *ZapLogger) DebugWithContext(ctx context.Context, msg string, args ...interface{}) {
	z.logger.Debugw(msg, append(convertToZapFields(args...), extractFieldsFromContext(ctx)...)...)
}

func (z *ZapLogger) InfoWithContext(ctx context.Context, msg string, args ...interface{}) {
	z.logger.Infow(msg, append(convertToZapFields(args...), extractFieldsFromContext(ctx)...)...)
}

func (z *ZapLogger) WarnWithContext(ctx context.Context, msg string, args ...interface{}) {
	z.logger.Warnw(msg, append(convertToZapFields(args...), extractFieldsFromContext(ctx)...)...)
}

func (z *ZapLogger) ErrorWithContext(ctx context.Context, msg string, args ...interface{}) {
	z.logger.Errorw(msg, append(convertToZapFields(args...), extractFieldsFromContext(ctx)...)...)
}

// WithFields реализация интерфейса LoggerPort
func (z *ZapLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort {
	zapFields := make([]interface{}, 0, len(fields)*2)
	for _, field := range fields {
		zapFields = append(zapFields, field.Key, field.Value)
	}
	return &ZapLogger{logger: z.logger.With(zapFields...), level: z.level}
}

// WithField реализация интерфейса LoggerPort
func (z *ZapLogger) WithField(key string, value interface{}) interfaces.LoggerPort {
	return &ZapLogger{logger: z.logger.With(key, value), level: z.level}
}

// SetLevel меняет уровень у всех логгеров, порожденных от одного корня
func (z *ZapLogger) SetLevel(level interfaces.LogLevel) {
	z.level.SetLevel(toZapLevel(level))
}

// GetLevel реализация интерфейса LoggerPort
func (z *ZapLogger) GetLevel() interfaces.LogLevel {
	return fromZapLevel(z.level.Level())
}

// Sync реализация интерфейса LoggerPort
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}
