package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"aeroclaim/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	ClickHouse    ClickHouseConfig
	Telegram      TelegramConfig
	Provider      ProviderConfig
	Quota         QuotaConfig
	Cache         CacheConfig
	ErrorTracking ErrorTrackingConfig
	Admin         AdminConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"aeroclaim"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"aeroclaim"`
}

type TelegramConfig struct {
	BotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminIDs []int64 `envconfig:"TELEGRAM_ADMIN_IDS"`
}

// ProviderConfig configures the upstream flight data provider.
// The authentication style is derived from the configured base URL,
// so switching between the RapidAPI, api.market and direct plans is a
// config-only change.
type ProviderConfig struct {
	Name              string        `envconfig:"FLIGHT_PROVIDER" default:"aerodatabox"`
	BaseURL           string        `envconfig:"FLIGHT_PROVIDER_BASE_URL" default:"https://aerodatabox.p.rapidapi.com"`
	APIKey            string        `envconfig:"FLIGHT_PROVIDER_API_KEY"`
	Enabled           bool          `envconfig:"FLIGHT_PROVIDER_ENABLED" default:"true"`
	Timeout           time.Duration `envconfig:"FLIGHT_PROVIDER_TIMEOUT" default:"10s"`
	MaxRetries        int           `envconfig:"FLIGHT_PROVIDER_MAX_RETRIES" default:"3"`
	RetryBaseDelay    time.Duration `envconfig:"FLIGHT_PROVIDER_RETRY_BASE_DELAY" default:"1s"`
	RetryMaxDelay     time.Duration `envconfig:"FLIGHT_PROVIDER_RETRY_MAX_DELAY" default:"30s"`
	RequestsPerMinute int           `envconfig:"FLIGHT_PROVIDER_REQUESTS_PER_MINUTE" default:"60"`
}

type QuotaConfig struct {
	MonthlyCredits int64 `envconfig:"QUOTA_MONTHLY_CREDITS" default:"10000"`
}

// CacheConfig holds per-namespace TTL policies. Airport metadata is cached
// without expiry; these values cover the expiring namespaces only.
type CacheConfig struct {
	FlightStatusTTL  time.Duration `envconfig:"CACHE_FLIGHT_STATUS_TTL" default:"24h"`
	RouteSearchTTL   time.Duration `envconfig:"CACHE_ROUTE_SEARCH_TTL" default:"6h"`
	AirportSearchTTL time.Duration `envconfig:"CACHE_AIRPORT_SEARCH_TTL" default:"168h"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type AdminConfig struct {
	Addr string `envconfig:"ADMIN_ADDR" default:":8080"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
