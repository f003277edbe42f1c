package security

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/athebyme/gomarket-sourcing/pkg/errors"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// RoleAdmin имеет все роли
	RoleAdmin = "admin"
	// RoleBuyer может запускать поиск
	RoleBuyer = "buyer"
)

// JWTManager выпускает и проверяет RS256 токены без внешнего провайдера
type JWTManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiration time.Duration
	issuer     string
}

type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"preferred_username,omitempty"`
	Roles    []string `json:"roles"`
}

// NewJWTManager создает менеджер; без privateKeyPEM он только проверяет токены
func NewJWTManager(privateKeyPEM, publicKeyPEM []byte, expiration time.Duration, issuer string) (*JWTManager, error) {
	m := &JWTManager{expiration: expiration, issuer: issuer}

	if len(privateKeyPEM) > 0 {
		privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		m.privateKey = privateKey
		m.publicKey = &privateKey.PublicKey
	}

	if len(publicKeyPEM) > 0 {
		publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		m.publicKey = publicKey
	}

	if m.publicKey == nil {
		return nil, errors.New("public key is required")
	}
	return m, nil
}

// Generate выпускает токен для клиента
func (m *JWTManager) Generate(userID, username string, roles []string) (string, error) {
	if m.privateKey == nil {
		return "", errors.New("private key is not configured")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   userID,
		},
		Username: username,
		Roles:    roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(m.privateKey)
}

// Validate проверяет подпись, срок и издателя токена
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.ErrExpiredToken
		}
		return nil, pkgerrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, pkgerrors.ErrInvalidToken
	}

	return claims, nil
}

// ValidateToken реализация AuthPort
func (m *JWTManager) ValidateToken(_ context.Context, token string) (*interfaces.Principal, error) {
	if token == "" {
		return nil, pkgerrors.ErrMissingToken
	}
	claims, err := m.Validate(token)
	if err != nil {
		return nil, err
	}
	return &interfaces.Principal{
		UserID:   claims.Subject,
		Username: claims.Username,
		Roles:    claims.Roles,
	}, nil
}

func (m *JWTManager) HasRole(principal *interfaces.Principal, role string) bool {
	if principal == nil {
		return false
	}
	for _, r := range principal.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

func (m *JWTManager) HasAnyRole(principal *interfaces.Principal, roles ...string) bool {
	for _, role := range roles {
		if m.HasRole(principal, role) {
			return true
		}
	}
	return false
}
