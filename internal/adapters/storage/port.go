package storage

import (
	"context"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
)

// SearchStorage хранилище запусков поиска и найденных предложений
type SearchStorage interface {
	// SaveSearch сохраняет запуск; существующий запуск с тем же ID обновляется
	SaveSearch(ctx context.Context, search *models.Search) error

	// GetSearch возвращает запуск вместе с предложениями.
	// Возвращает nil, nil если запуск не найден
	GetSearch(ctx context.Context, searchID string) (*models.Search, error)

	// ListSearches возвращает страницу запусков, новые первыми, и общее количество
	ListSearches(ctx context.Context, page, pageSize int) ([]*models.SearchSummary, int, error)

	// SaveOffers заменяет предложения запуска
	SaveOffers(ctx context.Context, searchID string, results *models.Results) error

	// GetOffers восстанавливает агрегатор предложений запуска
	GetOffers(ctx context.Context, searchID string) (*models.Results, error)
}

// HistoryStorage внутренняя история продаж и закупок
type HistoryStorage interface {
	FindSales(ctx context.Context, partNumber string) ([]*models.HistoryEntry, error)
	FindPurchases(ctx context.Context, partNumber string) ([]*models.HistoryEntry, error)
}

// Port полное хранилище сервиса
type Port interface {
	interfaces.StoragePort
	SearchStorage
	HistoryStorage
}
