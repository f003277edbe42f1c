package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/adapters/logger"
	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/security"
	pkgutils "github.com/athebyme/gomarket-sourcing/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearches struct{}

func (stubSearches) Run(ctx context.Context, opts models.SearchOptions) (*models.Search, error) {
	s := models.NewSearch("s-1", opts)
	s.Status = models.SearchCompleted
	return s, nil
}

func (stubSearches) Enqueue(ctx context.Context, opts models.SearchOptions) (*models.Search, error) {
	return models.NewSearch("s-2", opts), nil
}

func (stubSearches) Get(ctx context.Context, id string) (*models.Search, error) {
	return models.NewSearch(id, models.DefaultSearchOptions("A")), nil
}

func (stubSearches) List(ctx context.Context, page, pageSize int) ([]*models.SearchSummary, *pkgutils.Pagination, error) {
	return []*models.SearchSummary{}, pkgutils.NewPagination(page, pageSize), nil
}

type stubConnectors struct{}

func (stubConnectors) Names() []models.ConnectorName {
	return []models.ConnectorName{models.ConnectorEbay}
}

func baseConfig() RouterConfig {
	reg := prometheus.NewRegistry()
	return RouterConfig{
		Searches:           stubSearches{},
		Connectors:         stubConnectors{},
		Logger:             logger.NewNopLogger(),
		CORSAllowedOrigins: []string{"https://buyers.example.com"},
		RequestTimeout:     5 * time.Second,
		Gatherer:           reg,
		Registerer:         reg,
	}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthAndHeaders(t *testing.T) {
	router := SetupRouter(baseConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := serve(router, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouter_HealthUnavailable(t *testing.T) {
	cfg := baseConfig()
	cfg.Health = func(ctx context.Context) error { return errors.New("postgres down") }

	rec := serve(SetupRouter(cfg), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres down")
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := SetupRouter(baseConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/searches", nil)
	req.Header.Set("Origin", "https://buyers.example.com")
	rec := serve(router, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://buyers.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/searches", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = serve(router, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := SetupRouter(baseConfig())

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/connectors", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sourcing_http_requests_total{method="GET",route="/api/v1/connectors",status="200"} 1`)
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	router := SetupRouter(cfg)

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/connectors", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		codes[i] = serve(router, req).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// другой адрес имеет свой лимит
	req := httptest.NewRequest(http.MethodGet, "/api/v1/connectors", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	assert.Equal(t, http.StatusOK, serve(router, req).Code)
}

func newJWT(t *testing.T) *security.JWTManager {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	m, err := security.NewJWTManager(privatePEM, nil, time.Hour, "sourcing")
	require.NoError(t, err)
	return m
}

func TestRouter_Auth(t *testing.T) {
	jwtManager := newJWT(t)
	cfg := baseConfig()
	cfg.Auth = jwtManager
	router := SetupRouter(cfg)

	buyer, err := jwtManager.Generate("u-1", "buyer", []string{security.RoleBuyer})
	require.NoError(t, err)
	viewer, err := jwtManager.Generate("u-2", "viewer", []string{"viewer"})
	require.NoError(t, err)

	post := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/searches", strings.NewReader(`{"part_number":"ABC"}`))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return serve(router, req).Code
	}

	assert.Equal(t, http.StatusUnauthorized, post(""))
	assert.Equal(t, http.StatusUnauthorized, post("garbage"))
	assert.Equal(t, http.StatusForbidden, post(viewer))
	assert.Equal(t, http.StatusOK, post(buyer))

	// чтение доступно любому аутентифицированному клиенту
	req := httptest.NewRequest(http.MethodGet, "/api/v1/searches/s-9", nil)
	req.Header.Set("Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusOK, serve(router, req).Code)

	// health не требует токена
	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}
