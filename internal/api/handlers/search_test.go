package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/athebyme/gomarket-sourcing/internal/adapters/logger"
	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/utils"
	pkgutils "github.com/athebyme/gomarket-sourcing/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	lastOpts models.SearchOptions
	async    bool
	err      error
	stored   map[string]*models.Search
}

func (f *fakeRunner) Run(ctx context.Context, opts models.SearchOptions) (*models.Search, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := models.NewSearch("s-1", opts)
	s.Status = models.SearchCompleted
	return s, nil
}

func (f *fakeRunner) Enqueue(ctx context.Context, opts models.SearchOptions) (*models.Search, error) {
	f.async = true
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return models.NewSearch("s-queued", opts), nil
}

func (f *fakeRunner) Get(ctx context.Context, id string) (*models.Search, error) {
	if s, ok := f.stored[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", utils.ErrSearchNotFound, id)
}

func (f *fakeRunner) List(ctx context.Context, page, pageSize int) ([]*models.SearchSummary, *pkgutils.Pagination, error) {
	p := pkgutils.NewPagination(page, pageSize)
	p.SetTotal(1)
	return []*models.SearchSummary{{ID: "s-1", PartNumber: "ABC", Status: models.SearchCompleted}}, p, nil
}

type fakeLister []models.ConnectorName

func (f fakeLister) Names() []models.ConnectorName { return f }

func newTestRouter(runner *fakeRunner) http.Handler {
	h := NewSearchHandler(runner, fakeLister{models.ConnectorEbay, models.ConnectorTDSynnex}, nil, logger.NewNopLogger())
	r := chi.NewRouter()
	r.Post("/searches", h.CreateSearch)
	r.Get("/searches", h.ListSearches)
	r.Get("/searches/{id}", h.GetSearch)
	r.Get("/connectors", h.ListConnectors)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestCreateSearch_AppliesDefaults(t *testing.T) {
	runner := &fakeRunner{}
	rec, body := do(t, newTestRouter(runner), http.MethodPost, "/searches", `{"part_number":"ABC-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.True(t, runner.lastOpts.UseAlternatives)
	assert.Equal(t, models.DefaultNestedLevel, runner.lastOpts.NestedLevel)
	assert.False(t, runner.async)

	data := body["data"].(map[string]interface{})
	results := data["results"].(map[string]interface{})
	assert.Len(t, results, len(models.AllConnectors()))
}

func TestCreateSearch_Overrides(t *testing.T) {
	runner := &fakeRunner{}
	rec, _ := do(t, newTestRouter(runner), http.MethodPost, "/searches",
		`{"part_number":"ABC-1","use_alternatives":false,"nested_level":-1,"max_alternatives":7,"connectors":["synnex","ebay"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, runner.lastOpts.UseAlternatives)
	assert.Equal(t, -1, runner.lastOpts.NestedLevel)
	assert.Equal(t, 7, runner.lastOpts.MaxAlternatives)
	assert.Equal(t, []models.ConnectorName{"synnex", "ebay"}, runner.lastOpts.Connectors)
}

func TestCreateSearch_Async(t *testing.T) {
	runner := &fakeRunner{}
	rec, body := do(t, newTestRouter(runner), http.MethodPost, "/searches?async=true", `{"part_number":"ABC-1"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, runner.async)
	assert.Equal(t, "/api/v1/searches/s-queued", rec.Header().Get("Location"))
	data := body["data"].(map[string]interface{})
	assert.Equal(t, string(models.SearchPending), data["status"])
}

func TestCreateSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "malformed body", body: `{`, status: http.StatusBadRequest},
		{name: "empty part", body: `{"part_number":"  "}`, status: http.StatusBadRequest},
		{name: "bad nested level", body: `{"part_number":"A","nested_level":-2}`, status: http.StatusBadRequest},
		{name: "unknown connector", body: `{"part_number":"A","connectors":["alibaba"]}`, status: http.StatusBadRequest},
		{name: "disabled connector", body: `{"part_number":"A"}`, err: fmt.Errorf("%w: amazon", utils.ErrConnectorDisabled), status: http.StatusUnprocessableEntity},
		{name: "no storage", body: `{"part_number":"A"}`, err: utils.ErrStorageNotAvailable, status: http.StatusServiceUnavailable},
		{name: "unexpected", body: `{"part_number":"A"}`, err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, newTestRouter(&fakeRunner{err: tt.err}), http.MethodPost, "/searches", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, float64(tt.status), body["code"])
		})
	}
}

func TestGetSearch(t *testing.T) {
	stored := models.NewSearch("s-7", models.DefaultSearchOptions("XYZ"))
	runner := &fakeRunner{stored: map[string]*models.Search{"s-7": stored}}
	router := newTestRouter(runner)

	rec, body := do(t, router, http.MethodGet, "/searches/s-7", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s-7", body["data"].(map[string]interface{})["id"])

	rec, _ = do(t, router, http.MethodGet, "/searches/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSearches(t *testing.T) {
	rec, body := do(t, newTestRouter(&fakeRunner{}), http.MethodGet, "/searches?page=1&page_size=5", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	pagination := body["meta"].(map[string]interface{})["pagination"].(map[string]interface{})
	assert.Equal(t, float64(5), pagination["page_size"])
	assert.Equal(t, float64(1), pagination["total_items"])
	assert.Len(t, body["data"], 1)
}

func TestListConnectors(t *testing.T) {
	rec, body := do(t, newTestRouter(&fakeRunner{}), http.MethodGet, "/connectors", "")
	require.Equal(t, http.StatusOK, rec.Code)

	items := body["data"].([]interface{})
	require.Len(t, items, len(models.AllConnectors()))

	enabled := map[string]bool{}
	for _, item := range items {
		m := item.(map[string]interface{})
		enabled[m["name"].(string)] = m["enabled"].(bool)
	}
	assert.True(t, enabled["ebay"])
	assert.True(t, enabled["tdsynnex"])
	assert.True(t, enabled["synnex"], "alias follows its canonical connector")
	assert.False(t, enabled["amazon"])
}
