package connectors

import (
	"context"
	"net/url"
	"strconv"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
)

type brokerbinResponse struct {
	Data []struct {
		Part        string `json:"part"`
		Mfg         string `json:"mfg"`
		Description string `json:"description"`
		Cond        string `json:"cond"`
		Price       string `json:"price"`
		Qty         int    `json:"qty"`
		Company     string `json:"company"`
		Country     string `json:"country"`
	} `json:"data"`
}

// BrokerBinConnector ищет складские остатки брокеров на BrokerBin
type BrokerBinConnector struct {
	client   *restClient
	settings Settings
}

func NewBrokerBinConnector(settings Settings) (*BrokerBinConnector, error) {
	client, err := newRESTClient(string(models.ConnectorBrokerBin), settings, "Authorization")
	if err != nil {
		return nil, err
	}
	return &BrokerBinConnector{client: client, settings: settings}, nil
}

func (c *BrokerBinConnector) Name() models.ConnectorName {
	return models.ConnectorBrokerBin
}

func (c *BrokerBinConnector) Search(ctx context.Context, partNumber string) ([]pkgmodels.Offer, error) {
	query := url.Values{}
	query.Set("query", partNumber)
	query.Set("size", strconv.Itoa(c.settings.limit()))

	var resp brokerbinResponse
	if err := c.client.getJSON(ctx, "/api/v2/search", query, &resp); err != nil {
		return nil, ignoreNotFound(err)
	}

	offers := make([]pkgmodels.Offer, 0, len(resp.Data))
	for _, row := range resp.Data {
		offer := newOffer(models.ConnectorBrokerBin, row.Part)
		offer.Manufacturer = row.Mfg
		offer.Description = row.Description
		offer.Condition = normalizeCondition(row.Cond)
		offer.Price = parsePrice(row.Price)
		offer.Currency = c.settings.currency()
		offer.Quantity = row.Qty
		offer.Seller = row.Company
		offers = append(offers, offer)
	}
	return offers, nil
}
