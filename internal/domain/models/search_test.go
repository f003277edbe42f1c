package models

import (
	"testing"

	"github.com/athebyme/gomarket-sourcing/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSearchOptions(t *testing.T) {
	opts := DefaultSearchOptions("LM317T")

	assert.True(t, opts.UseAlternatives)
	assert.Equal(t, 1, opts.NestedLevel)
	assert.Zero(t, opts.MaxAlternatives)
	assert.Empty(t, opts.Connectors)
}

func TestSearchOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    SearchOptions
		wantErr error
	}{
		{name: "empty part", opts: SearchOptions{PartNumber: "  "}, wantErr: utils.ErrEmptyQuery},
		{name: "nested below -1", opts: SearchOptions{PartNumber: "A", NestedLevel: -2}, wantErr: utils.ErrInvalidNestedLevel},
		{name: "unbounded", opts: SearchOptions{PartNumber: "A", NestedLevel: -1}},
		{name: "negative cap", opts: SearchOptions{PartNumber: "A", MaxAlternatives: -1}, wantErr: utils.ErrInvalidMaxAlts},
		{name: "unknown connector", opts: SearchOptions{PartNumber: "A", Connectors: []ConnectorName{"newegg"}}, wantErr: utils.ErrUnknownConnector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSearchOptions_ValidateNormalizesConnectors(t *testing.T) {
	opts := SearchOptions{PartNumber: " LM317T ", Connectors: []ConnectorName{"EBAY", "synnex", "tdsynnex", "techdata"}}

	require.NoError(t, opts.Validate())
	assert.Equal(t, "LM317T", opts.PartNumber)
	assert.Equal(t, []ConnectorName{ConnectorEbay, ConnectorTDSynnex}, opts.Connectors)
}

func TestSearchOptions_CacheKeyIgnoresCaseAndOrder(t *testing.T) {
	a := SearchOptions{PartNumber: "lm317t", NestedLevel: 1, Connectors: []ConnectorName{ConnectorEbay, ConnectorAmazon}}
	b := SearchOptions{PartNumber: "LM317T", NestedLevel: 1, Connectors: []ConnectorName{ConnectorAmazon, ConnectorEbay}}
	c := SearchOptions{PartNumber: "LM317T", NestedLevel: 2, Connectors: []ConnectorName{ConnectorAmazon, ConnectorEbay}}

	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
	assert.Contains(t, a.CacheKey(), "search:")
}

func TestParseConnector(t *testing.T) {
	name, err := ParseConnector(" TDSynnex ")
	require.NoError(t, err)
	assert.Equal(t, ConnectorTDSynnex, name)

	alias, err := ParseConnector("techdata")
	require.NoError(t, err)
	assert.True(t, alias.IsAlias())
	assert.Equal(t, ConnectorTDSynnex, alias.Canonical())

	_, err = ParseConnector("digikey")
	assert.ErrorIs(t, err, utils.ErrUnknownConnector)
}

func TestCanonicalConnectors(t *testing.T) {
	names := CanonicalConnectors()
	assert.Len(t, names, 8)
	for _, n := range names {
		assert.False(t, n.IsAlias())
	}
}
