package messaging

import (
	"testing"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchEvent_RoundTrip(t *testing.T) {
	search := models.NewSearch("id-1", models.DefaultSearchOptions("ABC"))
	search.Status = models.SearchCompleted
	require.NoError(t, search.Results.Append(models.ConnectorEbay, pkgmodels.Offer{PartNumber: "ABC"}))

	ev := NewSearchEvent(SearchCompletedEvent, search)
	data, err := ev.Marshal()
	require.NoError(t, err)

	decoded, err := DecodeSearchEvent(data)
	require.NoError(t, err)
	assert.Equal(t, SearchCompletedEvent, decoded.Type)
	assert.Equal(t, "id-1", decoded.SearchID)
	assert.Equal(t, "ABC", decoded.PartNumber)
	assert.Equal(t, models.SearchCompleted, decoded.Status)
	assert.Equal(t, 1, decoded.OfferCount)
}

func TestDecodeSearchEvent_Invalid(t *testing.T) {
	_, err := DecodeSearchEvent([]byte(`{"type":"search_requested"}`))
	assert.Error(t, err)

	_, err = DecodeSearchEvent([]byte(`not json`))
	assert.Error(t, err)
}
