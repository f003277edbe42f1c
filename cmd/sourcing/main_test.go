package main

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/csv"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brokerbinServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		part := r.URL.Query().Get("query")
		fmt.Fprintf(w, `{"data":[{"part":%q,"mfg":"HP","cond":"REF","price":"99.90","qty":4,"company":"Broker LLC"}]}`, part)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sourcing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSearchCommand_JSON(t *testing.T) {
	srv := brokerbinServer(t)
	cfgPath := writeConfig(t, fmt.Sprintf(`
logLevel: error
connectors:
  brokerbin:
    enabled: true
    baseURL: %s
    apiKey: test
`, srv.URL))

	out, err := execute(t, "search", "0C19H", "--config", cfgPath, "--alternatives=false")
	require.NoError(t, err)

	var search models.Search
	require.NoError(t, json.Unmarshal([]byte(out), &search))
	assert.Equal(t, models.SearchCompleted, search.Status)
	assert.False(t, search.Options.UseAlternatives)
	assert.Equal(t, models.DefaultNestedLevel, search.Options.NestedLevel)

	offers := search.Results.Get(models.ConnectorBrokerBin)
	require.Len(t, offers, 1)
	assert.Equal(t, "0C19H", offers[0].PartNumber)
	assert.Equal(t, 99.9, offers[0].Price)
	assert.Equal(t, 10, search.Results.Len())
}

func TestSearchCommand_MaxAlternativesFlag(t *testing.T) {
	srv := brokerbinServer(t)
	cfgPath := writeConfig(t, fmt.Sprintf(`
logLevel: error
search:
  maxAlternatives: 7
connectors:
  brokerbin:
    enabled: true
    baseURL: %s
    apiKey: test
`, srv.URL))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"from config", nil, 7},
		{"explicit zero removes cap", []string{"--max-alternatives=0"}, 0},
		{"explicit value", []string{"--max-alternatives=3"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"search", "0C19H", "-c", cfgPath}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err)

			var search models.Search
			require.NoError(t, json.Unmarshal([]byte(out), &search))
			assert.Equal(t, tt.want, search.Options.MaxAlternatives)
		})
	}
}

func TestSearchCommand_CSVToFile(t *testing.T) {
	srv := brokerbinServer(t)
	cfgPath := writeConfig(t, fmt.Sprintf(`
logLevel: error
connectors:
  brokerbin:
    enabled: true
    baseURL: %s
    apiKey: test
`, srv.URL))
	output := filepath.Join(t.TempDir(), "offers.csv")

	_, err := execute(t, "search", "0C19H", "-c", cfgPath, "--format", "csv", "-o", output, "--nested-level=-1")
	require.NoError(t, err)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "brokerbin", rows[1][0])
	assert.Equal(t, "refurbished", rows[1][4])
}

func TestSearchCommand_Errors(t *testing.T) {
	cfgPath := writeConfig(t, "logLevel: error\n")

	_, err := execute(t, "search", "0C19H", "-c", cfgPath, "--format", "xml")
	assert.ErrorContains(t, err, "unknown report format")

	_, err = execute(t, "search", "0C19H", "-c", cfgPath)
	assert.ErrorContains(t, err, "no connectors available")

	_, err = execute(t, "search", "0C19H", "-c", cfgPath, "--connectors", "alibaba")
	assert.ErrorContains(t, err, "unknown connector")

	_, err = execute(t, "search", "0C19H", "-c", cfgPath, "--nested-level=-3")
	assert.ErrorContains(t, err, "nested level")

	_, err = execute(t, "search")
	assert.Error(t, err)
}

func TestConnectorsCommand(t *testing.T) {
	cfgPath := writeConfig(t, `
connectors:
  ebay:
    enabled: true
`)
	out, err := execute(t, "connectors", "-c", cfgPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(models.AllConnectors())+1)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))

	for i, name := range models.AllConnectors() {
		fields := strings.Fields(lines[i+1])
		require.GreaterOrEqual(t, len(fields), 3)
		assert.Equal(t, string(name), fields[0])
		assert.Equal(t, string(name.Canonical()), fields[1])
		assert.Equal(t, name == models.ConnectorEbay, fields[2] == "true", name)
	}
}

func TestTokenCommand(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "jwt.pem")
	require.NoError(t, os.WriteFile(keyPath,
		pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), 0o600))

	cfgPath := writeConfig(t, fmt.Sprintf(`
security:
  jwt:
    privateKeyPath: %s
    issuer: sourcing-test
`, keyPath))

	out, err := execute(t, "token", "-c", cfgPath, "--user", "u-1", "--roles", "buyer,admin")
	require.NoError(t, err)

	verifier, err := security.NewJWTManager(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), nil, time.Hour, "sourcing-test")
	require.NoError(t, err)
	claims, err := verifier.Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, []string{"buyer", "admin"}, claims.Roles)

	_, err = execute(t, "token", "-c", cfgPath)
	assert.Error(t, err, "--user is required")
}
