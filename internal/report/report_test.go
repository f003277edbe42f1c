package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSearch(t *testing.T) *models.Search {
	t.Helper()
	search := models.NewSearch("s-1", models.DefaultSearchOptions("ABC-1"))
	search.Status = models.SearchPartial
	search.CreatedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := search.CreatedAt.Add(2 * time.Second)
	search.FinishedAt = &finished
	search.Errors[models.ConnectorAmazon] = "unexpected response status: 503"
	search.Alternatives = []models.Alternative{{PartNumber: "ABC-2", Parent: "ABC-1", Depth: 1, Source: models.ConnectorIngram}}

	require.NoError(t, search.Results.Append(models.ConnectorEbay, pkgmodels.Offer{
		Connector: "ebay", PartNumber: "ABC-1", Price: 12.5, Currency: "USD", Quantity: 2, Seller: "shop, inc",
	}))
	require.NoError(t, search.Results.Append(models.ConnectorIngram, pkgmodels.Offer{
		Connector: "ingram", PartNumber: "ABC-2", Price: 11, Quantity: 10,
		IsAlternative: true, AlternativeOf: "ABC-1", Depth: 1,
		FetchedAt: finished,
	}))
	return search
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, " YAML ": FormatYAML, "yml": FormatYAML, "toml": FormatTOML, "csv": FormatCSV} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSearch(t), FormatJSON))

	var decoded struct {
		Status  string                       `json:"status"`
		Results map[string][]json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "partial", decoded.Status)
	assert.Len(t, decoded.Results, len(models.AllConnectors()))
	assert.Len(t, decoded.Results["ebay"], 1)
	assert.Empty(t, decoded.Results["synnex"])
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSearch(t), FormatYAML))

	var doc Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "s-1", doc.ID)
	assert.Equal(t, 2, doc.TotalOffers)
	require.Len(t, doc.Results, len(models.AllConnectors()))

	for i, name := range models.AllConnectors() {
		assert.Equal(t, name, doc.Results[i].Connector)
	}
	assert.Equal(t, "unexpected response status: 503", doc.Errors["amazon"])
	assert.Equal(t, []Alternative{{PartNumber: "ABC-2", Parent: "ABC-1", Depth: 1, Source: "ingram"}}, doc.Alternatives)
}

func TestWrite_TOML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSearch(t), FormatTOML))

	var doc Document
	require.NoError(t, toml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "partial", doc.Status)
	assert.True(t, doc.UseAlternatives)
	assert.Equal(t, 1, doc.NestedLevel)
	require.Len(t, doc.Results, len(models.AllConnectors()))

	var ingram Bucket
	for _, b := range doc.Results {
		if b.Connector == models.ConnectorIngram {
			ingram = b
		}
	}
	require.Len(t, ingram.Offers, 1)
	assert.True(t, ingram.Offers[0].IsAlternative)
	assert.Equal(t, "ABC-1", ingram.Offers[0].AlternativeOf)
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSearch(t), FormatCSV))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	// ebay идет раньше ingram в порядке ключей
	assert.Equal(t, "ebay", rows[1][0])
	assert.Equal(t, "shop, inc", rows[1][8])
	assert.Equal(t, "12.5", rows[1][5])
	assert.Equal(t, "", rows[1][13])

	assert.Equal(t, "ingram", rows[2][0])
	assert.Equal(t, "true", rows[2][10])
	assert.Equal(t, "1", rows[2][12])
	assert.Equal(t, "2026-03-01T10:00:02Z", rows[2][13])
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, sampleSearch(t), Format("xml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
