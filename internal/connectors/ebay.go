package connectors

import (
	"context"
	"net/url"
	"strconv"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
)

type ebayResponse struct {
	Total         int `json:"total"`
	ItemSummaries []struct {
		ItemID    string `json:"itemId"`
		Title     string `json:"title"`
		Condition string `json:"condition"`
		ItemURL   string `json:"itemWebUrl"`
		MPN       string `json:"mpn"`
		Brand     string `json:"brand"`
		Price     struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"price"`
		Seller struct {
			Username string `json:"username"`
		} `json:"seller"`
		EstimatedAvailabilities []struct {
			Quantity int `json:"estimatedAvailableQuantity"`
		} `json:"estimatedAvailabilities"`
	} `json:"itemSummaries"`
}

// EbayConnector использует eBay Browse API с OAuth2 client credentials
type EbayConnector struct {
	client   *restClient
	settings Settings
}

func NewEbayConnector(settings Settings) (*EbayConnector, error) {
	client, err := newRESTClient(string(models.ConnectorEbay), settings, "")
	if err != nil {
		return nil, err
	}
	if settings.Marketplace != "" {
		client.headers["X-EBAY-C-MARKETPLACE-ID"] = settings.Marketplace
	}
	return &EbayConnector{client: client, settings: settings}, nil
}

func (c *EbayConnector) Name() models.ConnectorName {
	return models.ConnectorEbay
}

func (c *EbayConnector) Search(ctx context.Context, partNumber string) ([]pkgmodels.Offer, error) {
	query := url.Values{}
	query.Set("q", partNumber)
	query.Set("limit", strconv.Itoa(c.settings.limit()))

	var resp ebayResponse
	if err := c.client.getJSON(ctx, "/buy/browse/v1/item_summary/search", query, &resp); err != nil {
		return nil, ignoreNotFound(err)
	}

	offers := make([]pkgmodels.Offer, 0, len(resp.ItemSummaries))
	for _, item := range resp.ItemSummaries {
		part := item.MPN
		if part == "" {
			part = partNumber
		}
		offer := newOffer(models.ConnectorEbay, part)
		offer.Manufacturer = item.Brand
		offer.Description = item.Title
		offer.Condition = normalizeCondition(item.Condition)
		offer.Price = parsePrice(item.Price.Value)
		offer.Currency = item.Price.Currency
		if offer.Currency == "" {
			offer.Currency = c.settings.currency()
		}
		for _, a := range item.EstimatedAvailabilities {
			offer.Quantity += a.Quantity
		}
		offer.Seller = item.Seller.Username
		offer.URL = item.ItemURL
		offers = append(offers, offer)
	}
	return offers, nil
}
