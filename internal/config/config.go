/**
 * @description
 * Configuration loader for the SoleStack Backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 * - standard "fmt": For error reporting
 *
 * @notes
 * - Fails fast if DATABASE_URL is missing; everything else has a workable default.
 * - Provider credentials are sanitized (trimmed, unquoted) because hosting dashboards
 *   love to sneak quotes into pasted secrets.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Providers ProvidersConfig
	Sync      SyncConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
	Env  string // "development", "staging" or "production"
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// ProvidersConfig holds marketplace API endpoints and credentials
type ProvidersConfig struct {
	StockXURL          string
	StockXAPIKey       string
	StockXClientID     string
	StockXClientSecret string
	StockXRefreshToken string

	AliasURL   string
	AliasToken string

	EbayURL          string
	EbayClientID     string
	EbayClientSecret string

	// Requests per second allowed against each provider. Zero disables pacing.
	StockXRPS float64
	AliasRPS  float64
	EbayRPS   float64
}

// SyncConfig holds queue/worker tunables and the shared secret protecting job routes
type SyncConfig struct {
	JobSecret      string
	WorkerBatch    int
	MaxAttempts    int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	RequestTimeout time.Duration
	IdleSleep      time.Duration
	SchedulerBatch int
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (prod injects env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Providers: ProvidersConfig{
			StockXURL:          getEnv("STOCKX_API_URL", "https://api.stockx.com/v2"),
			StockXAPIKey:       sanitizeCredential(getEnv("STOCKX_API_KEY", "")),
			StockXClientID:     sanitizeCredential(getEnv("STOCKX_CLIENT_ID", "")),
			StockXClientSecret: sanitizeCredential(getEnv("STOCKX_CLIENT_SECRET", "")),
			StockXRefreshToken: sanitizeCredential(getEnv("STOCKX_REFRESH_TOKEN", "")),
			AliasURL:           getEnv("ALIAS_API_URL", "https://sell-api.goat.com/api/v1"),
			AliasToken:         sanitizeCredential(getEnv("ALIAS_API_TOKEN", "")),
			EbayURL:            getEnv("EBAY_API_URL", "https://api.ebay.com"),
			EbayClientID:       sanitizeCredential(getEnv("EBAY_CLIENT_ID", "")),
			EbayClientSecret:   sanitizeCredential(getEnv("EBAY_CLIENT_SECRET", "")),
			StockXRPS:          getEnvAsFloat("STOCKX_RPS", 1.0),
			AliasRPS:           getEnvAsFloat("ALIAS_RPS", 2.0),
			EbayRPS:            getEnvAsFloat("EBAY_RPS", 0.5),
		},
		Sync: SyncConfig{
			JobSecret:      sanitizeCredential(getEnv("JOB_SYNC_SECRET", "")),
			WorkerBatch:    getEnvAsInt("SYNC_WORKER_BATCH", 25),
			MaxAttempts:    getEnvAsInt("SYNC_MAX_ATTEMPTS", 5),
			BaseRetryDelay: getEnvAsDuration("SYNC_BASE_RETRY_DELAY", time.Minute),
			MaxRetryDelay:  getEnvAsDuration("SYNC_MAX_RETRY_DELAY", time.Hour),
			RequestTimeout: getEnvAsDuration("SYNC_REQUEST_TIMEOUT", 15*time.Second),
			IdleSleep:      getEnvAsDuration("SYNC_IDLE_SLEEP", 10*time.Second),
			SchedulerBatch: getEnvAsInt("SYNC_SCHEDULER_BATCH", 100),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Sync.JobSecret == "" && cfg.Server.Env == "production" {
		return fmt.Errorf("JOB_SYNC_SECRET is required in production")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func sanitizeCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Trim(trimmed, "\"")
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// Helper to get env var as float
func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

// Helper to get env var as duration ("30s", "5m", ...)
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
