package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/connectors"
	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/utils"
	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		RequestTimeout  time.Duration
		BodyLimit       int     // максимальный размер запроса в МБ
		RateLimit       float64 // запросов в секунду на клиента, 0 - без ограничения
		RateBurst       int
	}

	Postgres struct {
		Enabled  bool
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Enabled      bool
		Host         string
		Port         int
		Password     string
		DB           int
		PoolSize     int           // размер пула соединений
		MinIdleConns int           // минимальное количество неактивных соединений
		DialTimeout  time.Duration // таймаут соединения
		ReadTimeout  time.Duration // таймаут чтения
		WriteTimeout time.Duration // таймаут записи
		MaxRetries   int           // максимальное количество повторных попыток
		Namespace    string        // префикс ключей
	}

	Kafka struct {
		Enabled           bool          `mapstructure:"enabled"`
		Brokers           []string      `mapstructure:"brokers"`
		GroupID           string        `mapstructure:"groupID"`
		RequestsTopic     string        `mapstructure:"requestsTopic"`
		EventsTopic       string        `mapstructure:"eventsTopic"`
		AutoOffsetReset   string        `mapstructure:"autoOffsetReset"`
		MaxRetries        int           `mapstructure:"maxRetries"`
		RetryBackoff      time.Duration `mapstructure:"retryBackoff"`
		BatchSize         int           `mapstructure:"batchSize"`
		LingerMs          int           `mapstructure:"lingerMs"`
		EnableIdempotence bool          `mapstructure:"enableIdempotence"`
		CompressionType   string        `mapstructure:"compressionType"`
		Partitions        int           `mapstructure:"partitions"`
		ReplicationFactor int           `mapstructure:"replicationFactor"`
	}

	Metrics struct {
		Enabled  bool
		Endpoint string
		Port     int `mapstructure:"port"`
	}

	Security struct {
		AuthEnabled      bool
		CORSAllowOrigins []string
		Keycloak         KeycloakConfig `mapstructure:"keycloak"`
		JWT              JWTConfig      `mapstructure:"jwt"`
	}

	Search struct {
		UseAlternatives  bool          `mapstructure:"useAlternatives"`
		NestedLevel      int           `mapstructure:"nestedLevel"`
		MaxAlternatives  int           `mapstructure:"maxAlternatives"`
		Concurrency      int           `mapstructure:"concurrency"`
		ConnectorTimeout time.Duration `mapstructure:"connectorTimeout"`
		CacheTTL         time.Duration `mapstructure:"cacheTTL"`
		MemoTTL          time.Duration `mapstructure:"memoTTL"`
		LockTTL          time.Duration `mapstructure:"lockTTL"`
	}

	Connectors map[string]connectors.Settings `mapstructure:"connectors"`
}

// Load загружает конфигурацию из файла и переменных окружения.
// configPath может быть именем файла без расширения или путем к файлу
func Load(configPath string) (*Config, error) {
	v := viper.New()

	switch {
	case configPath != "" && filepath.Ext(configPath) != "":
		v.SetConfigFile(configPath)
	default:
		configFile := "config"
		if configPath != "" {
			configFile = configPath
		}
		v.SetConfigName(configFile)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// файла нет, используем значения по умолчанию и переменные окружения
	}

	setDefaults(v)
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}
	resolveConnectorAliases(v, &cfg)

	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveConnectorAliases переносит настройки synnex и techdata в tdsynnex,
// если tdsynnex не задан ни в файле, ни в окружении. При двух псевдонимах побеждает первый по алфавиту
func resolveConnectorAliases(v *viper.Viper, cfg *Config) {
	names := make([]string, 0, len(cfg.Connectors))
	for raw := range cfg.Connectors {
		names = append(names, raw)
	}
	sort.Strings(names)

	resolved := make(map[models.ConnectorName]bool)
	for _, raw := range names {
		name, err := models.ParseConnector(raw)
		if err != nil || !name.IsAlias() {
			continue
		}
		canonical := name.Canonical()
		if resolved[canonical] || connectorConfigured(v, string(canonical)) {
			continue
		}
		cfg.Connectors[string(canonical)] = overlaySettings(cfg.Connectors[string(canonical)], cfg.Connectors[raw])
		resolved[canonical] = true
	}
}

// connectorConfigured сообщает, задан ли коннектор явно, а не только значениями по умолчанию
func connectorConfigured(v *viper.Viper, name string) bool {
	if v.InConfig("connectors." + name) {
		return true
	}
	prefixes := []string{
		strings.ToUpper(name) + "_",
		"CONNECTORS_" + strings.ToUpper(name) + "_",
	}
	for _, env := range os.Environ() {
		for _, prefix := range prefixes {
			if strings.HasPrefix(env, prefix) {
				return true
			}
		}
	}
	return false
}

// overlaySettings накладывает заданные поля over на base
func overlaySettings(base, over connectors.Settings) connectors.Settings {
	base.Enabled = over.Enabled
	if over.BaseURL != "" {
		base.BaseURL = over.BaseURL
	}
	if over.APIKey != "" {
		base.APIKey = over.APIKey
	}
	if over.ClientID != "" {
		base.ClientID = over.ClientID
	}
	if over.ClientSecret != "" {
		base.ClientSecret = over.ClientSecret
	}
	if over.TokenURL != "" {
		base.TokenURL = over.TokenURL
	}
	if len(over.Scopes) > 0 {
		base.Scopes = over.Scopes
	}
	if over.RatePerSecond > 0 {
		base.RatePerSecond = over.RatePerSecond
	}
	if over.Burst > 0 {
		base.Burst = over.Burst
	}
	if over.Timeout > 0 {
		base.Timeout = over.Timeout
	}
	if over.Marketplace != "" {
		base.Marketplace = over.Marketplace
	}
	if over.Currency != "" {
		base.Currency = over.Currency
	}
	if over.Limit > 0 {
		base.Limit = over.Limit
	}
	return base
}

// Validate проверяет значения, которые не может проверить viper
func (c *Config) Validate() error {
	if c.Search.NestedLevel < models.UnlimitedNestedLevel {
		return fmt.Errorf("search.nestedLevel=%d: %w", c.Search.NestedLevel, utils.ErrInvalidNestedLevel)
	}
	if c.Search.MaxAlternatives < 0 {
		return fmt.Errorf("search.maxAlternatives=%d: %w", c.Search.MaxAlternatives, utils.ErrInvalidMaxAlts)
	}
	for name := range c.Connectors {
		if _, err := models.ParseConnector(name); err != nil {
			return fmt.Errorf("connectors.%s: %w", name, err)
		}
	}
	if c.Security.AuthEnabled && !c.Security.Keycloak.Enabled && c.Security.JWT.PublicKeyPath == "" {
		return fmt.Errorf("security.authEnabled requires keycloak or jwt.publicKeyPath")
	}
	return nil
}

// IsProduction сообщает, запущен ли сервис в production-окружении
func (c *Config) IsProduction() bool {
	return c.ENV == "production"
}

// DefaultSearchOptions параметры поиска по умолчанию для артикула
func (c *Config) DefaultSearchOptions(partNumber string) models.SearchOptions {
	opts := models.DefaultSearchOptions(partNumber)
	opts.UseAlternatives = c.Search.UseAlternatives
	opts.NestedLevel = c.Search.NestedLevel
	opts.MaxAlternatives = c.Search.MaxAlternatives
	return opts
}

// connectorDefaults базовые адреса API источников
var connectorDefaults = map[models.ConnectorName]string{
	models.ConnectorAmazon:    "https://sellingpartnerapi-na.amazon.com",
	models.ConnectorEbay:      "https://api.ebay.com",
	models.ConnectorIngram:    "https://api.ingrammicro.com",
	models.ConnectorTDSynnex:  "https://api.tdsynnex.com",
	models.ConnectorBrokerBin: "https://search.brokerbin.com",
	models.ConnectorEpicor:    "",
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	// Основные настройки
	v.SetDefault("appName", "sourcing-service")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("logLevel", "info")
	v.SetDefault("env", "development")

	// Настройки сервера
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "120s")
	v.SetDefault("server.shutdownTimeout", "15s")
	v.SetDefault("server.requestTimeout", "110s")
	v.SetDefault("server.bodyLimit", 1)
	v.SetDefault("server.rateLimit", 5)
	v.SetDefault("server.rateBurst", 10)

	// Настройки Postgres
	v.SetDefault("postgres.enabled", true)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "sourcing")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timeout", "5s")
	v.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "1s")
	v.SetDefault("redis.readTimeout", "1s")
	v.SetDefault("redis.writeTimeout", "1s")
	v.SetDefault("redis.maxRetries", 3)
	v.SetDefault("redis.namespace", "sourcing")

	// Настройки Kafka
	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.groupID", "sourcing-worker")
	v.SetDefault("kafka.requestsTopic", "search-requests")
	v.SetDefault("kafka.eventsTopic", "search-events")
	v.SetDefault("kafka.autoOffsetReset", "earliest")
	v.SetDefault("kafka.maxRetries", 5)
	v.SetDefault("kafka.retryBackoff", "500ms")
	v.SetDefault("kafka.batchSize", 16384)
	v.SetDefault("kafka.lingerMs", 10)
	v.SetDefault("kafka.enableIdempotence", true)
	v.SetDefault("kafka.compressionType", "snappy")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replicationFactor", 1)

	// Настройки метрик
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Настройки безопасности
	v.SetDefault("security.authEnabled", false)
	v.SetDefault("security.corsAllowOrigins", []string{"*"})
	v.SetDefault("security.keycloak.enabled", false)
	v.SetDefault("security.keycloak.serverURL", "http://localhost:8180")
	v.SetDefault("security.keycloak.realm", "sourcing")
	v.SetDefault("security.keycloak.clientID", "sourcing-api")
	v.SetDefault("security.keycloak.tokenCacheTTL", "5m")
	v.SetDefault("security.jwt.issuer", "sourcing-service")
	v.SetDefault("security.jwt.expiration", "1h")

	// Настройки поиска
	v.SetDefault("search.useAlternatives", models.DefaultUseAlternatives)
	v.SetDefault("search.nestedLevel", models.DefaultNestedLevel)
	v.SetDefault("search.maxAlternatives", 50)
	v.SetDefault("search.concurrency", 8)
	v.SetDefault("search.connectorTimeout", "20s")
	v.SetDefault("search.cacheTTL", "15m")
	v.SetDefault("search.memoTTL", "1h")
	v.SetDefault("search.lockTTL", "10m")

	// Коннекторы выключены, пока не заданы реквизиты
	for name, baseURL := range connectorDefaults {
		key := "connectors." + string(name)
		v.SetDefault(key+".enabled", false)
		v.SetDefault(key+".baseURL", baseURL)
		v.SetDefault(key+".timeout", "15s")
	}
	v.SetDefault("connectors.ebay.tokenURL", "https://api.ebay.com/identity/v1/oauth2/token")
	v.SetDefault("connectors.ebay.scopes", []string{"https://api.ebay.com/oauth/api_scope"})
	v.SetDefault("connectors.ebay.marketplace", "EBAY_US")
	v.SetDefault("connectors.sales.enabled", true)
	v.SetDefault("connectors.purchases.enabled", true)
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables(v *viper.Viper) {
	// Основные настройки
	v.BindEnv("appName", "APP_NAME")
	v.BindEnv("version", "APP_VERSION")
	v.BindEnv("logLevel", "LOG_LEVEL")
	v.BindEnv("env", "APP_ENV")

	// Настройки сервера
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	v.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")
	v.BindEnv("server.requestTimeout", "SERVER_REQUEST_TIMEOUT")
	v.BindEnv("server.rateLimit", "SERVER_RATE_LIMIT")

	// Настройки Postgres
	v.BindEnv("postgres.enabled", "POSTGRES_ENABLED")
	v.BindEnv("postgres.host", "POSTGRES_HOST")
	v.BindEnv("postgres.port", "POSTGRES_PORT")
	v.BindEnv("postgres.user", "POSTGRES_USER")
	v.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	v.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	v.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	v.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	v.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	// Настройки Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// Настройки Kafka
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.groupID", "KAFKA_GROUP_ID")
	v.BindEnv("kafka.requestsTopic", "KAFKA_REQUESTS_TOPIC")
	v.BindEnv("kafka.eventsTopic", "KAFKA_EVENTS_TOPIC")

	// Настройки метрик
	v.BindEnv("metrics.enabled", "METRICS_ENABLED")
	v.BindEnv("metrics.port", "METRICS_PORT")

	// Настройки безопасности
	v.BindEnv("security.authEnabled", "AUTH_ENABLED")
	v.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")
	v.BindEnv("security.keycloak.enabled", "KEYCLOAK_ENABLED")
	v.BindEnv("security.keycloak.serverURL", "KEYCLOAK_SERVER_URL")
	v.BindEnv("security.keycloak.realm", "KEYCLOAK_REALM")
	v.BindEnv("security.keycloak.clientID", "KEYCLOAK_CLIENT_ID")
	v.BindEnv("security.jwt.publicKeyPath", "JWT_PUBLIC_KEY_PATH")
	v.BindEnv("security.jwt.privateKeyPath", "JWT_PRIVATE_KEY_PATH")

	// Настройки поиска
	v.BindEnv("search.useAlternatives", "SEARCH_USE_ALTERNATIVES")
	v.BindEnv("search.nestedLevel", "SEARCH_NESTED_LEVEL")
	v.BindEnv("search.maxAlternatives", "SEARCH_MAX_ALTERNATIVES")
	v.BindEnv("search.concurrency", "SEARCH_CONCURRENCY")
	v.BindEnv("search.connectorTimeout", "SEARCH_CONNECTOR_TIMEOUT")

	// Реквизиты коннекторов
	v.BindEnv("connectors.amazon.enabled", "AMAZON_ENABLED")
	v.BindEnv("connectors.amazon.apiKey", "AMAZON_API_KEY")
	v.BindEnv("connectors.ebay.enabled", "EBAY_ENABLED")
	v.BindEnv("connectors.ebay.clientID", "EBAY_CLIENT_ID")
	v.BindEnv("connectors.ebay.clientSecret", "EBAY_CLIENT_SECRET")
	v.BindEnv("connectors.ingram.enabled", "INGRAM_ENABLED")
	v.BindEnv("connectors.ingram.clientID", "INGRAM_CLIENT_ID")
	v.BindEnv("connectors.ingram.clientSecret", "INGRAM_CLIENT_SECRET")
	v.BindEnv("connectors.ingram.apiKey", "INGRAM_CUSTOMER_NUMBER")
	v.BindEnv("connectors.tdsynnex.enabled", "TDSYNNEX_ENABLED")
	v.BindEnv("connectors.tdsynnex.apiKey", "TDSYNNEX_API_KEY")
	v.BindEnv("connectors.brokerbin.enabled", "BROKERBIN_ENABLED")
	v.BindEnv("connectors.brokerbin.apiKey", "BROKERBIN_API_KEY")
	v.BindEnv("connectors.epicor.enabled", "EPICOR_ENABLED")
	v.BindEnv("connectors.epicor.baseURL", "EPICOR_BASE_URL")
	v.BindEnv("connectors.epicor.apiKey", "EPICOR_API_KEY")
}
