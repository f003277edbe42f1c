package connectors

import (
	"context"
	"net/url"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
)

type ingramCatalogResponse struct {
	Catalog []struct {
		IngramPartNumber string `json:"ingramPartNumber"`
		VendorPartNumber string `json:"vendorPartNumber"`
		VendorName       string `json:"vendorName"`
		Description      string `json:"description"`
		Pricing          struct {
			CustomerPrice float64 `json:"customerPrice"`
			CurrencyCode  string  `json:"currencyCode"`
		} `json:"pricing"`
		Availability struct {
			TotalAvailability int `json:"totalAvailability"`
		} `json:"availability"`
	} `json:"catalog"`
}

type ingramAlternatesResponse struct {
	Alternates []struct {
		VendorPartNumber string `json:"vendorPartNumber"`
	} `json:"alternates"`
}

// IngramConnector работает с каталогом Ingram Micro
type IngramConnector struct {
	client   *restClient
	settings Settings
}

func NewIngramConnector(settings Settings) (*IngramConnector, error) {
	client, err := newRESTClient(string(models.ConnectorIngram), settings, "IM-CustomerNumber")
	if err != nil {
		return nil, err
	}
	return &IngramConnector{client: client, settings: settings}, nil
}

func (c *IngramConnector) Name() models.ConnectorName {
	return models.ConnectorIngram
}

func (c *IngramConnector) Search(ctx context.Context, partNumber string) ([]pkgmodels.Offer, error) {
	query := url.Values{}
	query.Set("vendorPartNumber", partNumber)

	var resp ingramCatalogResponse
	if err := c.client.getJSON(ctx, "/resellers/v6/catalog", query, &resp); err != nil {
		return nil, ignoreNotFound(err)
	}

	offers := make([]pkgmodels.Offer, 0, len(resp.Catalog))
	for _, item := range resp.Catalog {
		offer := newOffer(models.ConnectorIngram, item.VendorPartNumber)
		offer.Manufacturer = item.VendorName
		offer.Description = item.Description
		offer.Condition = "new"
		offer.Price = item.Pricing.CustomerPrice
		offer.Currency = item.Pricing.CurrencyCode
		if offer.Currency == "" {
			offer.Currency = c.settings.currency()
		}
		offer.Quantity = item.Availability.TotalAvailability
		offer.Seller = "Ingram Micro"
		offers = append(offers, offer)
	}
	return offers, nil
}

func (c *IngramConnector) Alternatives(ctx context.Context, partNumber string) ([]string, error) {
	var resp ingramAlternatesResponse
	path := "/resellers/v6/catalog/" + url.PathEscape(partNumber) + "/alternates"
	if err := c.client.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, ignoreNotFound(err)
	}

	parts := make([]string, 0, len(resp.Alternates))
	for _, a := range resp.Alternates {
		parts = append(parts, a.VendorPartNumber)
	}
	return parts, nil
}
