package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
	"github.com/athebyme/gomarket-sourcing/pkg/tx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStorage реализация Port для PostgreSQL
type PostgresStorage struct {
	pool *pgxpool.Pool
}

var _ Port = (*PostgresStorage)(nil)

// NewPostgresStorage создает пул соединений по строке подключения
func NewPostgresStorage(ctx context.Context, connectionString string, maxConns int32) (*PostgresStorage, error) {
	cfg, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// NewPostgresStorageWithPool оборачивает уже созданный пул
func NewPostgresStorageWithPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresStorage{pool: pool}, nil
}

// Pool возвращает пул для менеджера транзакций
func (r *PostgresStorage) Pool() *pgxpool.Pool {
	return r.pool
}

// EnsureSchema создает схему sourcing и таблицы, если их нет
func (r *PostgresStorage) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (r *PostgresStorage) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает соединение с БД
func (r *PostgresStorage) Close() error {
	r.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error)
}

// getExecutor возвращает транзакцию из контекста или пул
func (r *PostgresStorage) getExecutor(ctx context.Context) executor {
	if t, ok := tx.GetTxFromContext(ctx); ok {
		return t
	}
	return r.pool
}

// SaveSearch сохраняет запуск поиска
func (r *PostgresStorage) SaveSearch(ctx context.Context, search *models.Search) error {
	options, err := json.Marshal(search.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	alternatives, err := json.Marshal(search.Alternatives)
	if err != nil {
		return fmt.Errorf("failed to marshal alternatives: %w", err)
	}
	discovery, err := json.Marshal(search.Discovery)
	if err != nil {
		return fmt.Errorf("failed to marshal discovery stats: %w", err)
	}
	searchErrors, err := json.Marshal(search.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	offerCount := 0
	if search.Results != nil {
		offerCount = search.Results.Total()
	}

	query := `
		INSERT INTO sourcing.searches (id, part_number, options, status, alternatives, discovery, errors, failure, offer_count, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id)
		DO UPDATE SET
			status = $4,
			alternatives = $5,
			discovery = $6,
			errors = $7,
			failure = $8,
			offer_count = $9,
			finished_at = $11
	`

	_, err = r.getExecutor(ctx).Exec(ctx, query, search.ID, search.Options.PartNumber, options, string(search.Status),
		alternatives, discovery, searchErrors, search.Failure, offerCount, search.CreatedAt, search.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to save search: %w", err)
	}
	return nil
}

// GetSearch получает запуск по ID
func (r *PostgresStorage) GetSearch(ctx context.Context, searchID string) (*models.Search, error) {
	query := `
		SELECT id::text, options, status, alternatives, discovery, errors, failure, created_at, finished_at
		FROM sourcing.searches
		WHERE id = $1
	`

	var (
		search       models.Search
		status       string
		options      []byte
		alternatives []byte
		discovery    []byte
		searchErrors []byte
	)
	err := r.getExecutor(ctx).QueryRow(ctx, query, searchID).Scan(&search.ID, &options, &status,
		&alternatives, &discovery, &searchErrors, &search.Failure, &search.CreatedAt, &search.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Запуск не найден
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return nil, nil // ID не является UUID
		}
		return nil, fmt.Errorf("failed to get search: %w", err)
	}
	search.Status = models.SearchStatus(status)

	if err := json.Unmarshal(options, &search.Options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	if err := json.Unmarshal(alternatives, &search.Alternatives); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alternatives: %w", err)
	}
	if err := json.Unmarshal(discovery, &search.Discovery); err != nil {
		return nil, fmt.Errorf("failed to unmarshal discovery stats: %w", err)
	}
	if err := json.Unmarshal(searchErrors, &search.Errors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal errors: %w", err)
	}
	if search.Errors == nil {
		search.Errors = make(map[models.ConnectorName]string)
	}

	results, err := r.GetOffers(ctx, searchID)
	if err != nil {
		return nil, err
	}
	search.Results = results

	return &search, nil
}

// ListSearches возвращает страницу запусков
func (r *PostgresStorage) ListSearches(ctx context.Context, page, pageSize int) ([]*models.SearchSummary, int, error) {
	executor := r.getExecutor(ctx)

	var total int
	if err := executor.QueryRow(ctx, `SELECT COUNT(*) FROM sourcing.searches`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count searches: %w", err)
	}
	if total == 0 {
		return []*models.SearchSummary{}, 0, nil
	}

	query := `
		SELECT id::text, part_number, status, offer_count, created_at, finished_at
		FROM sourcing.searches
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := executor.Query(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	summaries := make([]*models.SearchSummary, 0, pageSize)
	for rows.Next() {
		var (
			s      models.SearchSummary
			status string
		)
		if err := rows.Scan(&s.ID, &s.PartNumber, &status, &s.OfferCount, &s.CreatedAt, &s.FinishedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan search row: %w", err)
		}
		s.Status = models.SearchStatus(status)
		summaries = append(summaries, &s)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("error while iterating search rows: %w", rows.Err())
	}

	return summaries, total, nil
}

var offerColumns = []string{
	"search_id", "position", "bucket", "part_number", "manufacturer", "description", "condition",
	"price", "currency", "quantity", "seller", "url", "is_alternative", "alternative_of", "depth", "fetched_at",
}

// SaveOffers заменяет предложения запуска; порядок внутри каждого ключа сохраняется в position
func (r *PostgresStorage) SaveOffers(ctx context.Context, searchID string, results *models.Results) error {
	executor := r.getExecutor(ctx)

	if _, err := executor.Exec(ctx, `DELETE FROM sourcing.offers WHERE search_id = $1`, searchID); err != nil {
		return fmt.Errorf("failed to delete offers: %w", err)
	}
	if results == nil || results.Total() == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, results.Total())
	position := 0
	for _, bucket := range results.Keys() {
		for _, o := range results.Get(bucket) {
			rows = append(rows, []interface{}{
				searchID, position, string(bucket), o.PartNumber, o.Manufacturer, o.Description, o.Condition,
				o.Price, o.Currency, o.Quantity, o.Seller, o.URL, o.IsAlternative, o.AlternativeOf, o.Depth, o.FetchedAt,
			})
			position++
		}
	}

	if _, err := executor.CopyFrom(ctx, pgx.Identifier{"sourcing", "offers"}, offerColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("failed to save offers: %w", err)
	}
	return nil
}

// GetOffers восстанавливает агрегатор предложений
func (r *PostgresStorage) GetOffers(ctx context.Context, searchID string) (*models.Results, error) {
	query := `
		SELECT bucket, part_number, manufacturer, description, condition, price::float8, currency, quantity,
			seller, url, is_alternative, alternative_of, depth, fetched_at
		FROM sourcing.offers
		WHERE search_id = $1
		ORDER BY position
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get offers: %w", err)
	}
	defer rows.Close()

	results := models.NewResults()
	for rows.Next() {
		var (
			bucket string
			o      pkgmodels.Offer
		)
		if err := rows.Scan(&bucket, &o.PartNumber, &o.Manufacturer, &o.Description, &o.Condition, &o.Price,
			&o.Currency, &o.Quantity, &o.Seller, &o.URL, &o.IsAlternative, &o.AlternativeOf, &o.Depth, &o.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan offer row: %w", err)
		}
		o.Connector = bucket
		if err := results.Append(models.ConnectorName(bucket), o); err != nil {
			return nil, fmt.Errorf("failed to restore offers: %w", err)
		}
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error while iterating offer rows: %w", rows.Err())
	}
	return results, nil
}

// FindSales возвращает продажи артикула, новые первыми
func (r *PostgresStorage) FindSales(ctx context.Context, partNumber string) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, part_number, manufacturer, customer, quantity, unit_price::float8, currency, document_ref, sold_at
		FROM sourcing.sales
		WHERE upper(part_number) = $1
		ORDER BY sold_at DESC
	`
	return r.findHistory(ctx, query, partNumber)
}

// FindPurchases возвращает закупки артикула, новые первыми
func (r *PostgresStorage) FindPurchases(ctx context.Context, partNumber string) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, part_number, manufacturer, vendor, quantity, unit_price::float8, currency, document_ref, purchased_at
		FROM sourcing.purchases
		WHERE upper(part_number) = $1
		ORDER BY purchased_at DESC
	`
	return r.findHistory(ctx, query, partNumber)
}

func (r *PostgresStorage) findHistory(ctx context.Context, query, partNumber string) ([]*models.HistoryEntry, error) {
	rows, err := r.getExecutor(ctx).Query(ctx, query, strings.ToUpper(strings.TrimSpace(partNumber)))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []*models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.PartNumber, &e.Manufacturer, &e.Counterparty, &e.Quantity,
			&e.UnitPrice, &e.Currency, &e.DocumentRef, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, &e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error while iterating history rows: %w", rows.Err())
	}
	return entries, nil
}
