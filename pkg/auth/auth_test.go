package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/adapters/logger"
	pkgerrors "github.com/athebyme/gomarket-sourcing/pkg/errors"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://keycloak.test/realms/sourcing"

func newTestKeycloak(t *testing.T) (*KeycloakClient, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	verifier := oidc.NewVerifier(testIssuer, keySet, &oidc.Config{SkipClientIDCheck: true})
	return newKeycloakClient(verifier, KeycloakConfig{ClientID: "sourcing-api"}), key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestKeycloakClient_ValidateToken(t *testing.T) {
	kc, key := newTestKeycloak(t)

	token := signToken(t, key, jwt.MapClaims{
		"iss":                testIssuer,
		"sub":                "user-1",
		"exp":                time.Now().Add(time.Hour).Unix(),
		"preferred_username": "alice",
		"realm_access":       map[string]interface{}{"roles": []string{"buyer"}},
		"resource_access": map[string]interface{}{
			"sourcing-api": map[string]interface{}{"roles": []string{"exporter"}},
			"other":        map[string]interface{}{"roles": []string{"ignored"}},
		},
	})

	principal, err := kc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, "alice", principal.Username)
	assert.ElementsMatch(t, []string{"buyer", "exporter"}, principal.Roles)

	assert.True(t, kc.HasRole(principal, "exporter"))
	assert.False(t, kc.HasRole(principal, "ignored"))
	assert.True(t, kc.HasAnyRole(principal, "admin", "buyer"))
	assert.False(t, kc.HasAnyRole(principal, "admin"))

	cached, err := kc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Same(t, principal, cached)
}

func TestKeycloakClient_RejectsBadTokens(t *testing.T) {
	kc, key := newTestKeycloak(t)

	_, err := kc.ValidateToken(context.Background(), "")
	assert.ErrorIs(t, err, pkgerrors.ErrMissingToken)

	expired := signToken(t, key, jwt.MapClaims{"iss": testIssuer, "sub": "u", "exp": time.Now().Add(-time.Hour).Unix()})
	_, err = kc.ValidateToken(context.Background(), expired)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidToken)

	wrongIssuer := signToken(t, key, jwt.MapClaims{"iss": "https://evil.test", "sub": "u", "exp": time.Now().Add(time.Hour).Unix()})
	_, err = kc.ValidateToken(context.Background(), wrongIssuer)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidToken)
}

type fakeAuth struct {
	principal *interfaces.Principal
	err       error
}

func (f *fakeAuth) ValidateToken(ctx context.Context, token string) (*interfaces.Principal, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return f.principal, f.err
}

func (f *fakeAuth) HasRole(p *interfaces.Principal, role string) bool {
	return hasRole(p, role)
}

func (f *fakeAuth) HasAnyRole(p *interfaces.Principal, roles ...string) bool {
	for _, r := range roles {
		if hasRole(p, r) {
			return true
		}
	}
	return false
}

func TestAuthMiddleware(t *testing.T) {
	authPort := &fakeAuth{principal: &interfaces.Principal{UserID: "u-1", Roles: []string{"buyer"}}}

	var seen *interfaces.Principal
	handler := AuthMiddleware(authPort, logger.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	require.NotNil(t, seen)
	assert.Equal(t, "u-1", seen.UserID)
}

func TestRequireRole(t *testing.T) {
	authPort := &fakeAuth{}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	rec := httptest.NewRecorder()
	RequireRole(authPort, "buyer")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &interfaces.Principal{Roles: []string{"viewer"}}))
	rec = httptest.NewRecorder()
	RequireRole(authPort, "buyer")(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	RequireAnyRole(authPort, "buyer", "viewer")(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
