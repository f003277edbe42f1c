package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sourcing/pkg/errors"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/patrickmn/go-cache"
)

// KeycloakConfig конфигурация для Keycloak
type KeycloakConfig struct {
	ServerURL string
	Realm     string
	ClientID  string
	// TokenCacheTTL верхняя граница хранения проверенного токена
	TokenCacheTTL time.Duration
}

// KeycloakClaims claims из access-токена Keycloak
type KeycloakClaims struct {
	UserID      string `json:"sub"`
	Username    string `json:"preferred_username"`
	Email       string `json:"email"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	ResourceAccess map[string]struct {
		Roles []string `json:"roles"`
	} `json:"resource_access"`
}

// tokenVerifier проверка подписи и срока токена
type tokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// KeycloakClient проверяет bearer-токены через OIDC-провайдер Keycloak
type KeycloakClient struct {
	verifier   tokenVerifier
	tokenCache *cache.Cache
	cacheTTL   time.Duration
	clientID   string
}

// NewKeycloakClient создает новый клиент Keycloak
func NewKeycloakClient(ctx context.Context, cfg KeycloakConfig) (*KeycloakClient, error) {
	providerURL := fmt.Sprintf("%s/realms/%s", cfg.ServerURL, cfg.Realm)

	provider, err := oidc.NewProvider(ctx, providerURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания OIDC провайдера: %w", err)
	}

	// access-токены Keycloak выдаются с aud=account, поэтому audience не проверяется
	verifier := provider.Verifier(&oidc.Config{
		ClientID:          cfg.ClientID,
		SkipClientIDCheck: true,
	})

	return newKeycloakClient(verifier, cfg), nil
}

func newKeycloakClient(verifier tokenVerifier, cfg KeycloakConfig) *KeycloakClient {
	ttl := cfg.TokenCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &KeycloakClient{
		verifier:   verifier,
		tokenCache: cache.New(ttl, 2*ttl),
		cacheTTL:   ttl,
		clientID:   cfg.ClientID,
	}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateToken проверяет токен и возвращает данные клиента
func (k *KeycloakClient) ValidateToken(ctx context.Context, tokenString string) (*interfaces.Principal, error) {
	if tokenString == "" {
		return nil, errors.ErrMissingToken
	}

	key := tokenKey(tokenString)
	if cached, found := k.tokenCache.Get(key); found {
		return cached.(*interfaces.Principal), nil
	}

	idToken, err := k.verifier.Verify(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	var claims KeycloakClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("ошибка извлечения claims: %w", err)
	}

	principal := k.principal(&claims)

	expiresIn := time.Until(idToken.Expiry)
	if expiresIn > k.cacheTTL {
		expiresIn = k.cacheTTL
	}
	if expiresIn > 0 {
		k.tokenCache.Set(key, principal, expiresIn)
	}

	return principal, nil
}

// principal объединяет роли realm и роли клиента
func (k *KeycloakClient) principal(claims *KeycloakClaims) *interfaces.Principal {
	roles := append([]string{}, claims.RealmAccess.Roles...)
	if clientRoles, exists := claims.ResourceAccess[k.clientID]; exists {
		roles = append(roles, clientRoles.Roles...)
	}
	return &interfaces.Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Roles:    roles,
	}
}

// HasRole проверяет наличие роли у пользователя
func (k *KeycloakClient) HasRole(principal *interfaces.Principal, role string) bool {
	return hasRole(principal, role)
}

// HasAnyRole проверяет наличие хотя бы одной роли из списка
func (k *KeycloakClient) HasAnyRole(principal *interfaces.Principal, roles ...string) bool {
	for _, role := range roles {
		if hasRole(principal, role) {
			return true
		}
	}
	return false
}

func hasRole(principal *interfaces.Principal, role string) bool {
	if principal == nil {
		return false
	}
	for _, r := range principal.Roles {
		if r == role {
			return true
		}
	}
	return false
}
