package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() ConnectionParams {
	return ConnectionParams{
		Host:     "db",
		Port:     5432,
		User:     "sourcing",
		Password: "secret",
		DBName:   "sourcing",
		SSLMode:  "disable",
		PoolSize: 10,
	}
}

func TestConnectionParams_DSN(t *testing.T) {
	p := validParams()
	p.Timeout = 5 * time.Second
	p.ApplicationName = "sourcing-api"

	dsn, err := p.DSN()
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=sourcing password=secret dbname=sourcing sslmode=disable application_name=sourcing-api connect_timeout=5", dsn)

	p = validParams()
	dsn, err = p.DSN()
	require.NoError(t, err)
	assert.NotContains(t, dsn, "connect_timeout")
	assert.NotContains(t, dsn, "application_name")
}

func TestConnectionParams_ConnectTimeoutRoundsUp(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		want    string
	}{
		{500 * time.Millisecond, "connect_timeout=1"},
		{time.Nanosecond, "connect_timeout=1"},
		{2 * time.Second, "connect_timeout=2"},
		{2500 * time.Millisecond, "connect_timeout=3"},
	}

	for _, tt := range tests {
		t.Run(tt.timeout.String(), func(t *testing.T) {
			p := validParams()
			p.Timeout = tt.timeout
			dsn, err := p.DSN()
			require.NoError(t, err)
			assert.Contains(t, dsn, tt.want)
		})
	}
}

func TestConnectionParams_DSNQuoting(t *testing.T) {
	p := validParams()
	p.Password = `p a's\s`

	dsn, err := p.DSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, `password='p a\'s\\s'`)
}

func TestConnectionParams_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *ConnectionParams)
		want   error
	}{
		{"empty host", func(p *ConnectionParams) { p.Host = "" }, ErrStorageEmptyHostName},
		{"bad port", func(p *ConnectionParams) { p.Port = 70000 }, ErrStorageInvalidPortNumber},
		{"empty user", func(p *ConnectionParams) { p.User = "" }, ErrStorageEmptyUsername},
		{"empty password", func(p *ConnectionParams) { p.Password = "" }, ErrStorageEmptyPassword},
		{"empty database", func(p *ConnectionParams) { p.DBName = "" }, ErrStorageInvalidDatabaseName},
		{"empty sslmode", func(p *ConnectionParams) { p.SSLMode = "" }, ErrStorageInvalidSslMode},
		{"negative timeout", func(p *ConnectionParams) { p.Timeout = -time.Second }, ErrStorageInvalidTimeout},
		{"negative pool", func(p *ConnectionParams) { p.PoolSize = -1 }, ErrStorageInvalidPoolSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.modify(&p)
			_, err := p.DSN()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
