package config

import (
	"fmt"
	"os"
	"time"

	"github.com/athebyme/gomarket-sourcing/pkg/auth"
)

// KeycloakConfig настройки проверки токенов через Keycloak
type KeycloakConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	ServerURL     string        `mapstructure:"serverURL"`
	Realm         string        `mapstructure:"realm"`
	ClientID      string        `mapstructure:"clientID"`
	TokenCacheTTL time.Duration `mapstructure:"tokenCacheTTL"`
}

// GetKeycloakConfig возвращает конфигурацию для auth.KeycloakClient
func (k *KeycloakConfig) GetKeycloakConfig() auth.KeycloakConfig {
	return auth.KeycloakConfig{
		ServerURL:     k.ServerURL,
		Realm:         k.Realm,
		ClientID:      k.ClientID,
		TokenCacheTTL: k.TokenCacheTTL,
	}
}

// JWTConfig локальные RSA-ключи, когда Keycloak не используется
type JWTConfig struct {
	PublicKeyPath  string        `mapstructure:"publicKeyPath"`
	PrivateKeyPath string        `mapstructure:"privateKeyPath"`
	Issuer         string        `mapstructure:"issuer"`
	Expiration     time.Duration `mapstructure:"expiration"`
}

// ReadKeys читает PEM-файлы; отсутствующий путь дает пустой ключ
func (j *JWTConfig) ReadKeys() (privatePEM, publicPEM []byte, err error) {
	if j.PrivateKeyPath != "" {
		if privatePEM, err = os.ReadFile(j.PrivateKeyPath); err != nil {
			return nil, nil, fmt.Errorf("failed to read private key: %w", err)
		}
	}
	if j.PublicKeyPath != "" {
		if publicPEM, err = os.ReadFile(j.PublicKeyPath); err != nil {
			return nil, nil, fmt.Errorf("failed to read public key: %w", err)
		}
	}
	return privatePEM, publicPEM, nil
}
