package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/connectors"
	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("definitely-missing-config")
	require.NoError(t, err)

	assert.Equal(t, "sourcing-service", cfg.AppName)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Search.UseAlternatives)
	assert.Equal(t, 1, cfg.Search.NestedLevel)
	assert.Equal(t, 20*time.Second, cfg.Search.ConnectorTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "search-requests", cfg.Kafka.RequestsTopic)

	ebay, ok := cfg.Connectors["ebay"]
	require.True(t, ok)
	assert.False(t, ebay.Enabled)
	assert.Equal(t, "https://api.ebay.com", ebay.BaseURL)
	assert.Equal(t, "EBAY_US", ebay.Marketplace)
	assert.True(t, cfg.Connectors["sales"].Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
env: production
search:
  useAlternatives: false
  nestedLevel: 3
connectors:
  brokerbin:
    enabled: true
    apiKey: from-file
    ratePerSecond: 2
`)
	t.Setenv("BROKERBIN_API_KEY", "from-env")
	t.Setenv("SERVER_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.False(t, cfg.Search.UseAlternatives)
	assert.Equal(t, 3, cfg.Search.NestedLevel)

	bb := cfg.Connectors["brokerbin"]
	assert.True(t, bb.Enabled)
	assert.Equal(t, "from-env", bb.APIKey)
	assert.Equal(t, 2.0, bb.RatePerSecond)
	assert.Equal(t, "https://search.brokerbin.com", bb.BaseURL)

	opts := cfg.DefaultSearchOptions("ABC-1")
	assert.Equal(t, "ABC-1", opts.PartNumber)
	assert.False(t, opts.UseAlternatives)
	assert.Equal(t, 3, opts.NestedLevel)
}

func TestLoad_UnboundedNestedLevelFromEnv(t *testing.T) {
	t.Setenv("SEARCH_NESTED_LEVEL", "-1")

	cfg, err := Load("definitely-missing-config")
	require.NoError(t, err)
	assert.Equal(t, models.UnlimitedNestedLevel, cfg.Search.NestedLevel)
}

func TestLoad_AliasConnectorAccepted(t *testing.T) {
	path := writeConfig(t, `
connectors:
  synnex:
    enabled: true
    apiKey: legacy
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Connectors["synnex"].APIKey)
}

func TestLoad_AliasConnectorEnablesTDSynnex(t *testing.T) {
	path := writeConfig(t, `
connectors:
  synnex:
    enabled: true
    baseURL: http://td.local
    apiKey: legacy
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	td := cfg.Connectors["tdsynnex"]
	assert.True(t, td.Enabled)
	assert.Equal(t, "http://td.local", td.BaseURL)
	assert.Equal(t, "legacy", td.APIKey)
	assert.Equal(t, 15*time.Second, td.Timeout)

	registry, err := connectors.Build(cfg.Connectors, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.ConnectorName{models.ConnectorTDSynnex}, registry.Names())

	c, err := registry.Get(models.ConnectorSynnex)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectorTDSynnex, c.Name())
}

func TestLoad_CanonicalConnectorWinsOverAlias(t *testing.T) {
	path := writeConfig(t, `
connectors:
  tdsynnex:
    enabled: false
  techdata:
    enabled: true
    apiKey: legacy
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Connectors["tdsynnex"].Enabled)

	registry, err := connectors.Build(cfg.Connectors, nil)
	require.NoError(t, err)
	assert.Empty(t, registry.Names())
}

func TestLoad_FirstAliasWins(t *testing.T) {
	path := writeConfig(t, `
connectors:
  techdata:
    enabled: true
    apiKey: from-techdata
  synnex:
    enabled: true
    apiKey: from-synnex
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-synnex", cfg.Connectors["tdsynnex"].APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:   "unbounded nested level",
			mutate: func(c *Config) { c.Search.NestedLevel = -1 },
		},
		{
			name:    "nested level below -1",
			mutate:  func(c *Config) { c.Search.NestedLevel = -2 },
			wantErr: utils.ErrInvalidNestedLevel,
		},
		{
			name:    "negative max alternatives",
			mutate:  func(c *Config) { c.Search.MaxAlternatives = -5 },
			wantErr: utils.ErrInvalidMaxAlts,
		},
		{
			name: "unknown connector",
			mutate: func(c *Config) {
				c.Connectors = map[string]connectors.Settings{"alibaba": {}}
			},
			wantErr: utils.ErrUnknownConnector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("definitely-missing-config")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_AuthRequiresVerifier(t *testing.T) {
	cfg, err := Load("definitely-missing-config")
	require.NoError(t, err)

	cfg.Security.AuthEnabled = true
	assert.Error(t, cfg.Validate())

	cfg.Security.JWT.PublicKeyPath = "/etc/sourcing/jwt.pub"
	assert.NoError(t, cfg.Validate())
}

func TestKeycloakConfig_GetKeycloakConfig(t *testing.T) {
	k := KeycloakConfig{ServerURL: "http://kc", Realm: "r", ClientID: "c", TokenCacheTTL: time.Minute}
	got := k.GetKeycloakConfig()
	assert.Equal(t, "http://kc", got.ServerURL)
	assert.Equal(t, "r", got.Realm)
	assert.Equal(t, "c", got.ClientID)
	assert.Equal(t, time.Minute, got.TokenCacheTTL)
}

func TestJWTConfig_ReadKeys(t *testing.T) {
	dir := t.TempDir()
	pub := filepath.Join(dir, "jwt.pub")
	require.NoError(t, os.WriteFile(pub, []byte("public"), 0o600))

	j := JWTConfig{PublicKeyPath: pub}
	private, public, err := j.ReadKeys()
	require.NoError(t, err)
	assert.Nil(t, private)
	assert.Equal(t, []byte("public"), public)

	j.PrivateKeyPath = filepath.Join(dir, "missing.pem")
	_, _, err = j.ReadKeys()
	assert.Error(t, err)
}
