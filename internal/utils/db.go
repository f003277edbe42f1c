package utils

import (
	"strconv"
	"strings"
	"time"
)

// ConnectionParams параметры подключения к Postgres
type ConnectionParams struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	ApplicationName string
	Timeout         time.Duration
	PoolSize        int
}

// Validate проверяет параметры подключения
func (p ConnectionParams) Validate() error {
	switch {
	case p.Host == "":
		return ErrStorageEmptyHostName
	case p.Port < 0 || p.Port > 65535:
		return ErrStorageInvalidPortNumber
	case p.User == "":
		return ErrStorageEmptyUsername
	case p.Password == "":
		return ErrStorageEmptyPassword
	case p.DBName == "":
		return ErrStorageInvalidDatabaseName
	case p.SSLMode == "":
		return ErrStorageInvalidSslMode
	case p.Timeout < 0:
		return ErrStorageInvalidTimeout
	case p.PoolSize < 0:
		return ErrStorageInvalidPoolSize
	}
	return nil
}

// DSN собирает строку подключения в формате key=value для pgx.
// Значения с пробелами и кавычками экранируются по правилам libpq.
func (p ConnectionParams) DSN() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	write := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(quoteDSNValue(value))
	}

	write("host", p.Host)
	write("port", strconv.Itoa(p.Port))
	write("user", p.User)
	write("password", p.Password)
	write("dbname", p.DBName)
	write("sslmode", p.SSLMode)
	if p.ApplicationName != "" {
		write("application_name", p.ApplicationName)
	}
	if p.Timeout > 0 {
		// libpq принимает целые секунды, 0 означает бесконечное ожидание
		seconds := (p.Timeout + time.Second - 1) / time.Second
		write("connect_timeout", strconv.FormatInt(int64(seconds), 10))
	}

	return b.String(), nil
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
