package tx

import (
	"context"
	"fmt"

	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txKeyType ключ транзакции в контексте; приватный тип исключает коллизии
type txKeyType struct{}

var txKey = txKeyType{}

// TxManager управляет жизненным циклом транзакций БД.
type TxManager interface {
	// Do выполняет fn внутри транзакции.
	// Ошибка fn откатывает транзакцию, успешное завершение фиксирует ее.
	// Контекст, передаваемый в fn, содержит транзакцию.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type pgxTxManager struct {
	pool   *pgxpool.Pool
	logger interfaces.LoggerPort
}

// NewTxManager создает новый менеджер транзакций.
func NewTxManager(pool *pgxpool.Pool, logger interfaces.LoggerPort) TxManager {
	return &pgxTxManager{pool: pool, logger: logger}
}

func (m *pgxTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	// вложенный вызов переиспользует уже открытую транзакцию
	if _, ok := GetTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx.Begin failed: %w", err)
	}

	// откат после паники fn или неудачного Commit; после Commit это no-op
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			m.logger.WarnWithContext(ctx, "Не удалось откатить транзакцию",
				interfaces.LogField{Key: "error", Value: rollbackErr.Error()},
				interfaces.LogField{Key: "original_error", Value: err.Error()},
			)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx.Commit failed: %w", err)
	}
	return nil
}

// WithTx кладет транзакцию в контекст
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetTxFromContext извлекает транзакцию из контекста.
func GetTxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

// NopManager выполняет fn без транзакции; для работы без БД и для тестов
type NopManager struct{}

func (NopManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
