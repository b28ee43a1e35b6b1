package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the broker.
type Config struct {
	HTTPPort      string
	SessionSecret []byte
	SessionTTL    time.Duration
	Database      DatabaseConfig
	Redis         RedisConfig
	Provider      ProviderConfig
	Subscription  SubscriptionConfig
	Telemetry     TelemetryConfig
}

// DatabaseConfig holds database connection settings. URL is optional: when
// empty the broker runs on the in-memory state store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. Address is optional: when
// empty the quota ledger lives in the state store.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProviderConfig holds completion provider settings.
type ProviderConfig struct {
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
}

// SubscriptionConfig holds the subscription authority and polling settings.
type SubscriptionConfig struct {
	BaseURL         string
	RequestTimeout  time.Duration
	SyncInterval    time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
	CheckoutURL     string
}

// TelemetryConfig holds the usage event collector settings. URL empty
// disables telemetry.
type TelemetryConfig struct {
	URL     string
	Timeout time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:      getEnvString("HTTP_PORT", "8080"),
		SessionSecret: []byte(getEnvString("SESSION_SECRET", "supersecretkey")),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      os.Getenv("REDIS_ADDRESS"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			BaseURL:        getEnvString("PROVIDER_BASE_URL", "https://api.openai.com/v1"),
			Model:          getEnvString("PROVIDER_MODEL", "gpt-3.5-turbo"),
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 25*time.Second),
		},
		Subscription: SubscriptionConfig{
			BaseURL:         getEnvString("SUBSCRIPTION_BASE_URL", "http://localhost:9090"),
			RequestTimeout:  getEnvDuration("SUBSCRIPTION_REQUEST_TIMEOUT", 10*time.Second),
			SyncInterval:    getEnvDuration("SUBSCRIPTION_SYNC_INTERVAL", 30*time.Second),
			PollInterval:    getEnvDuration("PAYMENT_POLL_INTERVAL", 5*time.Second),
			PollMaxAttempts: getEnvInt("PAYMENT_POLL_MAX_ATTEMPTS", 120),
			CheckoutURL:     getEnvString("CHECKOUT_URL", "http://localhost:9090/checkout"),
		},
		Telemetry: TelemetryConfig{
			URL:     os.Getenv("TELEMETRY_URL"),
			Timeout: getEnvDuration("TELEMETRY_TIMEOUT", 5*time.Second),
		},
	}

	return cfg, nil
}
