package connectors

import (
	"context"
	"net/url"
	"strconv"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
)

type amazonResponse struct {
	Items []struct {
		ASIN       string `json:"asin"`
		Title      string `json:"title"`
		Brand      string `json:"brand"`
		PartNumber string `json:"partNumber"`
		Condition  string `json:"condition"`
		Seller     string `json:"seller"`
		URL        string `json:"url"`
		Price      struct {
			Amount   float64 `json:"amount"`
			Currency string  `json:"currency"`
		} `json:"price"`
		Availability struct {
			Quantity int `json:"quantity"`
		} `json:"availability"`
	} `json:"items"`
}

// AmazonConnector ищет предложения в каталоге Amazon
type AmazonConnector struct {
	client   *restClient
	settings Settings
}

func NewAmazonConnector(settings Settings) (*AmazonConnector, error) {
	client, err := newRESTClient(string(models.ConnectorAmazon), settings, "x-api-key")
	if err != nil {
		return nil, err
	}
	return &AmazonConnector{client: client, settings: settings}, nil
}

func (c *AmazonConnector) Name() models.ConnectorName {
	return models.ConnectorAmazon
}

func (c *AmazonConnector) Search(ctx context.Context, partNumber string) ([]pkgmodels.Offer, error) {
	query := url.Values{}
	query.Set("keywords", partNumber)
	query.Set("pageSize", strconv.Itoa(c.settings.limit()))
	if c.settings.Marketplace != "" {
		query.Set("marketplaceIds", c.settings.Marketplace)
	}

	var resp amazonResponse
	if err := c.client.getJSON(ctx, "/catalog/items", query, &resp); err != nil {
		return nil, ignoreNotFound(err)
	}

	offers := make([]pkgmodels.Offer, 0, len(resp.Items))
	for _, item := range resp.Items {
		part := item.PartNumber
		if part == "" {
			part = item.ASIN
		}
		offer := newOffer(models.ConnectorAmazon, part)
		offer.Manufacturer = item.Brand
		offer.Description = item.Title
		offer.Condition = normalizeCondition(item.Condition)
		offer.Price = item.Price.Amount
		offer.Currency = item.Price.Currency
		if offer.Currency == "" {
			offer.Currency = c.settings.currency()
		}
		offer.Quantity = item.Availability.Quantity
		offer.Seller = item.Seller
		offer.URL = item.URL
		if offer.URL == "" && item.ASIN != "" {
			offer.URL = "https://www.amazon.com/dp/" + url.PathEscape(item.ASIN)
		}
		offers = append(offers, offer)
	}
	return offers, nil
}
