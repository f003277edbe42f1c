package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
)

// PrincipalFromContext возвращает клиента, добавленного AuthMiddleware
func PrincipalFromContext(ctx context.Context) (*interfaces.Principal, bool) {
	p, ok := ctx.Value(interfaces.PrincipalKey).(*interfaces.Principal)
	return p, ok && p != nil
}

// WithPrincipal кладет клиента в контекст
func WithPrincipal(ctx context.Context, p *interfaces.Principal) context.Context {
	return context.WithValue(ctx, interfaces.PrincipalKey, p)
}

// AuthMiddleware промежуточное ПО для проверки bearer-токенов
func AuthMiddleware(authPort interfaces.AuthPort, logger interfaces.LoggerPort) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
				return
			}

			principal, err := authPort.ValidateToken(r.Context(), parts[1])
			if err != nil {
				logger.WarnWithContext(r.Context(), "Invalid JWT token",
					interfaces.LogField{Key: "error", Value: err.Error()})
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole проверяет наличие определенной роли
func RequireRole(authPort interfaces.AuthPort, role string) func(http.Handler) http.Handler {
	return RequireAnyRole(authPort, role)
}

// RequireAnyRole проверяет наличие хотя бы одной роли из списка
func RequireAnyRole(authPort interfaces.AuthPort, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !authPort.HasAnyRole(principal, roles...) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
