package interfaces

import (
	"context"
)

// Principal описывает аутентифицированного клиента API
type Principal struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// AuthPort определяет интерфейс для работы с аутентификацией
// Реализуется клиентом Keycloak и локальным JWT-менеджером
type AuthPort interface {
	// ValidateToken проверяет токен и возвращает данные клиента
	ValidateToken(ctx context.Context, token string) (*Principal, error)

	// HasRole проверяет наличие роли у клиента
	HasRole(principal *Principal, role string) bool

	// HasAnyRole проверяет наличие хотя бы одной роли из списка
	HasAnyRole(principal *Principal, roles ...string) bool
}
