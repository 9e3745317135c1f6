package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewSyncSettingsHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	// NodeID seeds the snowflake generator; each running process needs its own.
	NodeID int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBRetryAttempts   int

	Source SourceConfig
	Sync   SyncConfig
	Redis  RedisConfig
	Seed   SeedConfig

	// CredentialKey unlocks encrypted tenant access tokens.
	CredentialKey string
}

// SourceConfig configures the upstream commerce API.
type SourceConfig struct {
	APIVersion    string
	WebhookSecret string
	Timeout       time.Duration
	// BaseURL overrides https://{shop_domain} when set (local mocks).
	BaseURL string
}

type SyncConfig struct {
	PageSize     int
	Interval     time.Duration
	InitialDelay time.Duration
	LockEnabled  bool
	LockTTL      time.Duration
	TriggerRate  float64
	TriggerBurst int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SeedConfig struct {
	ShopDomain  string
	AccessToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "storesync"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		NodeID:            getenvInt64("SNOWFLAKE_NODE_ID", 1),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "storesync"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),
		DBRetryAttempts:   int(getenvInt64("DATABASE_RETRY_ATTEMPTS", 3)),
		Source: SourceConfig{
			APIVersion:    getenv("SHOPIFY_API_VERSION", "2024-01"),
			WebhookSecret: strings.TrimSpace(getenv("SHOPIFY_WEBHOOK_SECRET", "")),
			Timeout:       getenvDuration("SHOPIFY_HTTP_TIMEOUT", 30*time.Second),
			BaseURL:       strings.TrimSpace(getenv("SHOPIFY_BASE_URL", "")),
		},
		Sync: SyncConfig{
			PageSize:     int(getenvInt64("SYNC_PAGE_SIZE", 250)),
			Interval:     getenvDuration("SYNC_INTERVAL", 6*time.Hour),
			InitialDelay: getenvDuration("SYNC_INITIAL_DELAY", 30*time.Second),
			LockEnabled:  getenvBool("SYNC_LOCK_ENABLED", false),
			LockTTL:      getenvDuration("SYNC_LOCK_TTL", 30*time.Minute),
			TriggerRate:  getenvFloat("SYNC_TRIGGER_RATE", 0.2),
			TriggerBurst: int(getenvInt64("SYNC_TRIGGER_BURST", 3)),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Seed: SeedConfig{
			ShopDomain:  strings.TrimSpace(getenv("SEED_SHOP_DOMAIN", "")),
			AccessToken: strings.TrimSpace(getenv("SEED_ACCESS_TOKEN", "")),
		},
		CredentialKey: strings.TrimSpace(getenv("CREDENTIAL_ENCRYPTION_KEY", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
