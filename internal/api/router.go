package api

import (
	"context"
	"net/http"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/api/handlers"
	"github.com/athebyme/gomarket-sourcing/internal/api/middleware"
	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/security"
	"github.com/athebyme/gomarket-sourcing/pkg/auth"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig зависимости и настройки маршрутизатора
type RouterConfig struct {
	Searches   handlers.SearchRunner
	Connectors handlers.ConnectorLister
	Defaults   func(partNumber string) models.SearchOptions
	Logger     interfaces.LoggerPort

	// Auth == nil отключает проверку токенов
	Auth interfaces.AuthPort

	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	RateLimit          float64
	RateBurst          int

	// Gatherer источник /metrics; nil отключает эндпоинт
	Gatherer   prometheus.Gatherer
	Registerer prometheus.Registerer

	// Health проверка зависимостей для /health
	Health func(ctx context.Context) error
}

// SetupRouter настраивает маршрутизатор
func SetupRouter(cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Tracing)
	r.Use(middleware.SecurityHeaders)
	if cfg.Gatherer != nil {
		r.Use(middleware.NewHTTPMetrics(cfg.Registerer).Handler)
	}

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "ok"})
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	searchHandler := handlers.NewSearchHandler(cfg.Searches, cfg.Connectors, cfg.Defaults, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))

		canSearch := func(next http.Handler) http.Handler { return next }
		if cfg.Auth != nil {
			r.Use(auth.AuthMiddleware(cfg.Auth, cfg.Logger))
			canSearch = auth.RequireAnyRole(cfg.Auth, security.RoleAdmin, security.RoleBuyer)
		}
		// после аутентификации лимит считается по пользователю
		r.Use(middleware.RateLimiter(cfg.RateLimit, cfg.RateBurst))

		r.Get("/connectors", searchHandler.ListConnectors)

		r.Route("/searches", func(r chi.Router) {
			r.Get("/", searchHandler.ListSearches)
			r.With(canSearch).Post("/", searchHandler.CreateSearch)
			r.Get("/{id}", searchHandler.GetSearch)
		})
	})

	return r
}
