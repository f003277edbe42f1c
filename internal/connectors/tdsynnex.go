package connectors

import (
	"context"
	"net/url"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
)

type tdsynnexProductsResponse struct {
	Products []struct {
		SKU          string  `json:"sku"`
		MfrPart      string  `json:"mfrPartNumber"`
		Manufacturer string  `json:"manufacturer"`
		Description  string  `json:"description"`
		Price        float64 `json:"price"`
		Currency     string  `json:"currency"`
		Quantity     int     `json:"quantityAvailable"`
		Warehouse    string  `json:"warehouse"`
	} `json:"products"`
}

type tdsynnexSubstitutesResponse struct {
	Substitutes []struct {
		MfrPart string `json:"mfrPartNumber"`
	} `json:"substitutes"`
}

// TDSynnexConnector каталог TD SYNNEX; результаты пишутся под каноническим ключом tdsynnex
type TDSynnexConnector struct {
	client   *restClient
	settings Settings
}

func NewTDSynnexConnector(settings Settings) (*TDSynnexConnector, error) {
	client, err := newRESTClient(string(models.ConnectorTDSynnex), settings, "X-Api-Key")
	if err != nil {
		return nil, err
	}
	return &TDSynnexConnector{client: client, settings: settings}, nil
}

func (c *TDSynnexConnector) Name() models.ConnectorName {
	return models.ConnectorTDSynnex
}

func (c *TDSynnexConnector) Search(ctx context.Context, partNumber string) ([]pkgmodels.Offer, error) {
	query := url.Values{}
	query.Set("mfrPartNumber", partNumber)

	var resp tdsynnexProductsResponse
	if err := c.client.getJSON(ctx, "/v1/products", query, &resp); err != nil {
		return nil, ignoreNotFound(err)
	}

	offers := make([]pkgmodels.Offer, 0, len(resp.Products))
	for _, p := range resp.Products {
		part := p.MfrPart
		if part == "" {
			part = p.SKU
		}
		offer := newOffer(models.ConnectorTDSynnex, part)
		offer.Manufacturer = p.Manufacturer
		offer.Description = p.Description
		offer.Condition = "new"
		offer.Price = p.Price
		offer.Currency = p.Currency
		if offer.Currency == "" {
			offer.Currency = c.settings.currency()
		}
		offer.Quantity = p.Quantity
		offer.Seller = "TD SYNNEX"
		if p.Warehouse != "" {
			offer.Seller += " / " + p.Warehouse
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

func (c *TDSynnexConnector) Alternatives(ctx context.Context, partNumber string) ([]string, error) {
	query := url.Values{}
	query.Set("mfrPartNumber", partNumber)

	var resp tdsynnexSubstitutesResponse
	if err := c.client.getJSON(ctx, "/v1/products/substitutes", query, &resp); err != nil {
		return nil, ignoreNotFound(err)
	}

	parts := make([]string, 0, len(resp.Substitutes))
	for _, s := range resp.Substitutes {
		parts = append(parts, s.MfrPart)
	}
	return parts, nil
}
