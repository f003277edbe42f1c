package connectors

import (
	"context"
	"fmt"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
)

type historyKind int

const (
	historySales historyKind = iota
	historyPurchases
)

// HistoryConnector отдает прошлые продажи или закупки артикула как предложения
type HistoryConnector struct {
	kind   historyKind
	source HistorySource
}

func NewSalesConnector(source HistorySource) *HistoryConnector {
	return &HistoryConnector{kind: historySales, source: source}
}

func NewPurchasesConnector(source HistorySource) *HistoryConnector {
	return &HistoryConnector{kind: historyPurchases, source: source}
}

func (c *HistoryConnector) Name() models.ConnectorName {
	if c.kind == historySales {
		return models.ConnectorSales
	}
	return models.ConnectorPurchases
}

func (c *HistoryConnector) Search(ctx context.Context, partNumber string) ([]pkgmodels.Offer, error) {
	var (
		entries []*models.HistoryEntry
		err     error
	)
	if c.kind == historySales {
		entries, err = c.source.FindSales(ctx, partNumber)
	} else {
		entries, err = c.source.FindPurchases(ctx, partNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	offers := make([]pkgmodels.Offer, 0, len(entries))
	for _, e := range entries {
		offer := newOffer(c.Name(), e.PartNumber)
		offer.Manufacturer = e.Manufacturer
		offer.Description = e.DocumentRef
		offer.Price = e.UnitPrice
		offer.Currency = e.Currency
		offer.Quantity = e.Quantity
		offer.Seller = e.Counterparty
		if !e.OccurredAt.IsZero() {
			offer.FetchedAt = e.OccurredAt
		}
		offers = append(offers, offer)
	}
	return offers, nil
}
