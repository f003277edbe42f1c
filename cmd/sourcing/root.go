package main

import (
	"os"

	"github.com/athebyme/gomarket-sourcing/config"
	"github.com/athebyme/gomarket-sourcing/internal/adapters/logger"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sourcing",
		Short: "Поиск предложений по артикулу во всех источниках",
		Long: `sourcing опрашивает маркетплейсы и каталоги дистрибьюторов по артикулу,
находит альтернативные артикулы и выгружает результаты по каждому источнику.

Команда работает без PostgreSQL, Redis и Kafka: кэш хранится в памяти процесса,
история запусков не сохраняется.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "путь к файлу конфигурации")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "уровень логирования (debug, info, warn, error)")

	cmd.AddCommand(
		newSearchCmd(opts),
		newConnectorsCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

// loadConfig читает конфигурацию и отключает внешнюю инфраструктуру
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.Enabled = false
	cfg.Redis.Enabled = false
	cfg.Kafka.Enabled = false
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// newLogger пишет в stderr, чтобы не смешивать журнал с выгрузкой
func newLogger(level string) interfaces.LoggerPort {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.WarnLevel
	}
	atomic := zap.NewAtomicLevelAt(zapLevel)

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), atomic)
	return logger.NewFromCore(core, atomic)
}
