package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// RequestID добавляет уникальный идентификатор запроса
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), interfaces.RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger логирует входящие запросы и время их выполнения
func Logger(logger interfaces.LoggerPort) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := NewResponseWriter(w)

			logger.DebugWithContext(r.Context(), "Входящий запрос",
				interfaces.LogField{Key: "method", Value: r.Method},
				interfaces.LogField{Key: "path", Value: r.URL.Path},
				interfaces.LogField{Key: "remote_addr", Value: r.RemoteAddr},
				interfaces.LogField{Key: "user_agent", Value: r.UserAgent()},
			)

			next.ServeHTTP(ww, r)

			logger.InfoWithContext(r.Context(), "Исходящий ответ",
				interfaces.LogField{Key: "method", Value: r.Method},
				interfaces.LogField{Key: "path", Value: r.URL.Path},
				interfaces.LogField{Key: "status", Value: ww.Status()},
				interfaces.LogField{Key: "duration", Value: time.Since(start).String()},
			)
		})
	}
}

// ResponseWriter обертка для отслеживания статус-кода
type ResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// NewResponseWriter создает новую обертку ResponseWriter
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader записывает статус-код
func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Status возвращает статус-код
func (rw *ResponseWriter) Status() int {
	return rw.statusCode
}

// Recoverer обрабатывает панику в запросах
func Recoverer(logger interfaces.LoggerPort) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.ErrorWithContext(r.Context(), "Паника при обработке запроса",
						interfaces.LogField{Key: "error", Value: rvr},
						interfaces.LogField{Key: "path", Value: r.URL.Path},
						interfaces.LogField{Key: "method", Value: r.Method},
					)

					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Timeout ограничивает время обработки запроса через контекст.
// Обработчик должен сам вернуть ответ после отмены контекста.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORS добавляет заголовки для Cross-Origin Resource Sharing
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if allowedOrigin == "*" || origin == allowedOrigin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID, X-Trace-ID")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			// Обрабатываем предварительные запросы OPTIONS
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Tracing добавляет trace_id в контекст и ответ
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), interfaces.TraceIDKey, traceID)
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SecurityHeaders выставляет стандартные защитные заголовки
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'")
		next.ServeHTTP(w, r)
	})
}

const (
	limiterTTL     = 10 * time.Minute
	limiterCleanup = time.Minute
)

// RateLimiter ограничивает частоту запросов с одного адреса (token bucket).
// perSecond <= 0 отключает ограничение.
func RateLimiter(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return newClientLimiter(perSecond, burst, limiterTTL, limiterCleanup).Handler
}

// clientLimiter хранит лимитеры клиентов; неактивные удаляются через ttl
type clientLimiter struct {
	perSecond rate.Limit
	burst     int
	limiters  *cache.Cache
}

func newClientLimiter(perSecond float64, burst int, ttl, cleanup time.Duration) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		limiters:  cache.New(ttl, cleanup),
	}
}

func (l *clientLimiter) get(key string) *rate.Limiter {
	if v, ok := l.limiters.Get(key); ok {
		limiter := v.(*rate.Limiter)
		// продлеваем срок жизни активного клиента
		l.limiters.SetDefault(key, limiter)
		return limiter
	}

	limiter := rate.NewLimiter(l.perSecond, l.burst)
	if err := l.limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
		// конкурентный запрос уже создал лимитер
		if v, ok := l.limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

func (l *clientLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(clientKey(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if p, ok := r.Context().Value(interfaces.PrincipalKey).(*interfaces.Principal); ok && p != nil {
		return "user:" + p.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + strings.TrimSpace(r.RemoteAddr)
	}
	return "ip:" + host
}

// HTTPMetrics метрики HTTP-запросов по шаблону маршрута
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics регистрирует метрики; reg == nil означает регистратор по умолчанию
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &HTTPMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sourcing_http_requests_total",
			Help: "Количество HTTP-запросов",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sourcing_http_request_duration_seconds",
			Help:    "Время обработки HTTP-запросов",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler промежуточное ПО для сбора метрик
func (m *HTTPMetrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := NewResponseWriter(w)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
