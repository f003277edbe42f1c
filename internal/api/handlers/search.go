package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/utils"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	pkgutils "github.com/athebyme/gomarket-sourcing/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// SearchRunner операции поиска, доступные через API
type SearchRunner interface {
	Run(ctx context.Context, opts models.SearchOptions) (*models.Search, error)
	Enqueue(ctx context.Context, opts models.SearchOptions) (*models.Search, error)
	Get(ctx context.Context, searchID string) (*models.Search, error)
	List(ctx context.Context, page, pageSize int) ([]*models.SearchSummary, *pkgutils.Pagination, error)
}

// ConnectorLister имена включенных коннекторов
type ConnectorLister interface {
	Names() []models.ConnectorName
}

// SearchHandler обработчик запросов поиска
type SearchHandler struct {
	searches   SearchRunner
	connectors ConnectorLister
	defaults   func(partNumber string) models.SearchOptions
	logger     interfaces.LoggerPort
}

// NewSearchHandler создает обработчик; defaults == nil означает models.DefaultSearchOptions
func NewSearchHandler(searches SearchRunner, connectors ConnectorLister, defaults func(string) models.SearchOptions, logger interfaces.LoggerPort) *SearchHandler {
	if defaults == nil {
		defaults = models.DefaultSearchOptions
	}
	return &SearchHandler{
		searches:   searches,
		connectors: connectors,
		defaults:   defaults,
		logger:     logger,
	}
}

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// searchRequest тело POST /searches; отсутствующие поля берутся из настроек по умолчанию
type searchRequest struct {
	PartNumber      string   `json:"part_number"`
	UseAlternatives *bool    `json:"use_alternatives,omitempty"`
	NestedLevel     *int     `json:"nested_level,omitempty"`
	MaxAlternatives *int     `json:"max_alternatives,omitempty"`
	Connectors      []string `json:"connectors,omitempty"`
	NoCache         bool     `json:"no_cache,omitempty"`
}

func (h *SearchHandler) options(req searchRequest) models.SearchOptions {
	opts := h.defaults(req.PartNumber)
	if req.UseAlternatives != nil {
		opts.UseAlternatives = *req.UseAlternatives
	}
	if req.NestedLevel != nil {
		opts.NestedLevel = *req.NestedLevel
	}
	if req.MaxAlternatives != nil {
		opts.MaxAlternatives = *req.MaxAlternatives
	}
	opts.NoCache = req.NoCache
	opts.Connectors = make([]models.ConnectorName, len(req.Connectors))
	for i, c := range req.Connectors {
		opts.Connectors[i] = models.ConnectorName(c)
	}
	return opts
}

// CreateSearch запускает поиск; с ?async=true ставит его в очередь и отвечает 202
func (h *SearchHandler) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "bad_request", "Некорректное тело запроса")
		return
	}
	opts := h.options(req)

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		search, err := h.searches.Enqueue(r.Context(), opts)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		w.Header().Set("Location", "/api/v1/searches/"+search.ID)
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response{Success: true, Data: search})
		return
	}

	search, err := h.searches.Run(r.Context(), opts)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: search})
}

// GetSearch возвращает запуск по ID
func (h *SearchHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "id")
	if searchID == "" {
		h.fail(w, r, http.StatusBadRequest, "bad_request", "ID запуска не указан")
		return
	}

	search, err := h.searches.Get(r.Context(), searchID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: search})
}

// ListSearches возвращает страницу запусков
func (h *SearchHandler) ListSearches(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	items, pagination, err := h.searches.List(r.Context(), page, pageSize)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    items,
		Meta: map[string]interface{}{
			"pagination": pagination,
		},
	})
}

type connectorInfo struct {
	Name      models.ConnectorName `json:"name"`
	Canonical models.ConnectorName `json:"canonical"`
	Enabled   bool                 `json:"enabled"`
}

// ListConnectors возвращает все ключи результатов и признак включения
func (h *SearchHandler) ListConnectors(w http.ResponseWriter, r *http.Request) {
	enabled := make(map[models.ConnectorName]bool)
	for _, name := range h.connectors.Names() {
		enabled[name.Canonical()] = true
	}

	all := models.AllConnectors()
	out := make([]connectorInfo, len(all))
	for i, name := range all {
		out[i] = connectorInfo{
			Name:      name,
			Canonical: name.Canonical(),
			Enabled:   enabled[name.Canonical()],
		}
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: out})
}

func (h *SearchHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, utils.ErrEmptyQuery),
		errors.Is(err, utils.ErrInvalidNestedLevel),
		errors.Is(err, utils.ErrInvalidMaxAlts),
		errors.Is(err, utils.ErrUnknownConnector):
		h.fail(w, r, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, utils.ErrConnectorDisabled), errors.Is(err, utils.ErrNoConnectors):
		h.fail(w, r, http.StatusUnprocessableEntity, "unprocessable", err.Error())
	case errors.Is(err, utils.ErrSearchNotFound):
		h.fail(w, r, http.StatusNotFound, "not_found", "Запуск не найден")
	case errors.Is(err, utils.ErrStorageNotAvailable), errors.Is(err, utils.ErrQueueNotAvailable):
		h.fail(w, r, http.StatusServiceUnavailable, "unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.fail(w, r, http.StatusGatewayTimeout, "timeout", "Превышено время выполнения запроса")
	default:
		h.logger.ErrorWithContext(r.Context(), "Ошибка обработки запроса",
			interfaces.LogField{Key: "error", Value: err.Error()},
			interfaces.LogField{Key: "path", Value: r.URL.Path})
		h.fail(w, r, http.StatusInternalServerError, "internal_error", "Внутренняя ошибка сервера")
	}
}

func (h *SearchHandler) fail(w http.ResponseWriter, r *http.Request, code int, kind, message string) {
	render.Status(r, code)
	render.JSON(w, r, errorResponse{
		Error:   kind,
		Code:    code,
		Message: message,
	})
}
