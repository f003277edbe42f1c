package connectors

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
)

type epicorPartsResponse struct {
	Value []struct {
		PartNum         string  `json:"PartNum"`
		PartDescription string  `json:"PartDescription"`
		MfgName         string  `json:"MfgName"`
		UnitPrice       float64 `json:"UnitPrice"`
		CurrencyCode    string  `json:"CurrencyCode"`
		OnHandQty       float64 `json:"OnHandQty"`
		Warehouse       string  `json:"WarehouseCode"`
	} `json:"value"`
}

type epicorSubsResponse struct {
	Value []struct {
		SubPart string `json:"SubPart"`
	} `json:"value"`
}

// EpicorConnector читает складские остатки из ERP Epicor через OData
type EpicorConnector struct {
	client   *restClient
	settings Settings
}

func NewEpicorConnector(settings Settings) (*EpicorConnector, error) {
	client, err := newRESTClient(string(models.ConnectorEpicor), settings, "X-API-Key")
	if err != nil {
		return nil, err
	}
	return &EpicorConnector{client: client, settings: settings}, nil
}

func (c *EpicorConnector) Name() models.ConnectorName {
	return models.ConnectorEpicor
}

// odataString экранирует строковый литерал OData
func odataString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (c *EpicorConnector) Search(ctx context.Context, partNumber string) ([]pkgmodels.Offer, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("PartNum eq %s", odataString(partNumber)))
	query.Set("$top", fmt.Sprint(c.settings.limit()))

	var resp epicorPartsResponse
	if err := c.client.getJSON(ctx, "/api/v1/Erp.BO.PartSvc/Parts", query, &resp); err != nil {
		return nil, ignoreNotFound(err)
	}

	offers := make([]pkgmodels.Offer, 0, len(resp.Value))
	for _, p := range resp.Value {
		offer := newOffer(models.ConnectorEpicor, p.PartNum)
		offer.Manufacturer = p.MfgName
		offer.Description = p.PartDescription
		offer.Price = p.UnitPrice
		offer.Currency = p.CurrencyCode
		if offer.Currency == "" {
			offer.Currency = c.settings.currency()
		}
		offer.Quantity = int(p.OnHandQty)
		offer.Seller = p.Warehouse
		offers = append(offers, offer)
	}
	return offers, nil
}

func (c *EpicorConnector) Alternatives(ctx context.Context, partNumber string) ([]string, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("PartNum eq %s", odataString(partNumber)))

	var resp epicorSubsResponse
	if err := c.client.getJSON(ctx, "/api/v1/Erp.BO.PartSvc/PartSubs", query, &resp); err != nil {
		return nil, ignoreNotFound(err)
	}

	parts := make([]string, 0, len(resp.Value))
	for _, s := range resp.Value {
		parts = append(parts, s.SubPart)
	}
	return parts, nil
}
