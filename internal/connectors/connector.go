package connectors

import (
	"context"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
)

// Connector источник предложений по артикулу
type Connector interface {
	// Name возвращает каноническое имя коннектора
	Name() models.ConnectorName

	// Search возвращает предложения по артикулу
	Search(ctx context.Context, partNumber string) ([]pkgmodels.Offer, error)
}

// AlternativesSource коннектор, который умеет находить альтернативные артикулы
type AlternativesSource interface {
	Connector

	// Alternatives возвращает прямые альтернативы артикула
	Alternatives(ctx context.Context, partNumber string) ([]string, error)
}

// HistorySource внутренняя история продаж и закупок
type HistorySource interface {
	FindSales(ctx context.Context, partNumber string) ([]*models.HistoryEntry, error)
	FindPurchases(ctx context.Context, partNumber string) ([]*models.HistoryEntry, error)
}

// Settings настройки одного коннектора
type Settings struct {
	Enabled       bool          `mapstructure:"enabled"`
	BaseURL       string        `mapstructure:"baseURL"`
	APIKey        string        `mapstructure:"apiKey"`
	ClientID      string        `mapstructure:"clientID"`
	ClientSecret  string        `mapstructure:"clientSecret"`
	TokenURL      string        `mapstructure:"tokenURL"`
	Scopes        []string      `mapstructure:"scopes"`
	RatePerSecond float64       `mapstructure:"ratePerSecond"`
	Burst         int           `mapstructure:"burst"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Marketplace   string        `mapstructure:"marketplace"` // регион витрины (amazon, ebay)
	Currency      string        `mapstructure:"currency"`    // валюта по умолчанию, если источник ее не возвращает
	Limit         int           `mapstructure:"limit"`       // максимум предложений в ответе
}

func (s Settings) currency() string {
	if s.Currency == "" {
		return "USD"
	}
	return s.Currency
}

func (s Settings) limit() int {
	if s.Limit <= 0 {
		return 50
	}
	return s.Limit
}
