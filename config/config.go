package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	apperrors "sjsage522/pricewatch/pkg/errors"
)

// Renderer backends
const (
	RendererHTTP        = "http"
	RendererBrowserless = "browserless"
	RendererRod         = "rod"
)

// MaxHistoryLimit is the largest number of price samples kept per product
const MaxHistoryLimit = 30

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMySQL  = "mysql"
)

// Config represents the application configuration
type Config struct {
	// HTTP server
	Port string

	// Notifier configuration
	SendGridAPIKey string
	SendGridURL    string
	FromEmail      string
	CurrencySymbol string

	// Renderer configuration
	Renderer            string
	ChromeDBAddr        string
	RodControlURL       string
	RendererConcurrency int
	FetchTimeout        time.Duration
	SettleQuietWindow   time.Duration
	FetchBlockTime      time.Duration
	LocatorsFile        string

	// Check pipeline
	CheckDelay    time.Duration
	CheckInterval time.Duration
	HistoryLimit  int

	// Registry backend
	StoreBackend   string
	RedisAddr      string
	RedisDB        int
	RedisKeyPrefix string
	DatabaseURL    string

	// Memcache configuration
	MemcacheAddr string

	// Alert stream configuration
	AlertStream          string
	AlertStreamCount     int
	AlertStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Port:                 getEnv("PORT", "3000"),
		SendGridAPIKey:       getEnv("SENDGRID_API_KEY", ""),
		SendGridURL:          getEnv("SENDGRID_URL", "https://api.sendgrid.com/v3/mail/send"),
		FromEmail:            getEnv("FROM_EMAIL", ""),
		CurrencySymbol:       getEnv("CURRENCY_SYMBOL", "₹"),
		Renderer:             getEnv("RENDERER", RendererHTTP),
		ChromeDBAddr:         getEnv("CHROMEDB_ADDR", ""),
		RodControlURL:        getEnv("ROD_CONTROL_URL", ""),
		RendererConcurrency:  getEnvInt("RENDERER_CONCURRENCY", 2),
		FetchTimeout:         time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 20)) * time.Second,
		SettleQuietWindow:    time.Duration(getEnvInt("SETTLE_QUIET_MS", 500)) * time.Millisecond,
		FetchBlockTime:       time.Duration(getEnvInt("FETCH_BLOCK_SECONDS", 300)) * time.Second,
		LocatorsFile:         getEnv("LOCATORS_FILE", ""),
		CheckDelay:           time.Duration(getEnvInt("CHECK_DELAY_MS", 2000)) * time.Millisecond,
		CheckInterval:        time.Duration(getEnvInt("CHECK_INTERVAL_MINUTES", 240)) * time.Minute,
		HistoryLimit:         getEnvInt("HISTORY_LIMIT", 30),
		StoreBackend:         getEnv("STORE_BACKEND", StoreMemory),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix:       getEnv("REDIS_KEY_PREFIX", "pricewatch"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		AlertStream:          getEnv("ALERT_STREAM", ""),
		AlertStreamCount:     getEnvInt("ALERT_STREAM_COUNT", 1),
		AlertStreamMaxLength: getEnvInt("ALERT_STREAM_MAX_LENGTH", 1000),
		Environment:          getEnv("PRICEWATCH_ENVIRONMENT", "development"),
	}
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return apperrors.NewConfiguration(fmt.Sprintf("invalid PORT %q", c.Port), err)
	}

	switch c.Renderer {
	case RendererHTTP, RendererRod:
	case RendererBrowserless:
		if c.ChromeDBAddr == "" {
			return apperrors.NewConfiguration("CHROMEDB_ADDR is required for the browserless renderer", nil)
		}
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unknown RENDERER %q", c.Renderer), nil)
	}

	switch c.StoreBackend {
	case StoreMemory, StoreRedis:
	case StoreMySQL:
		if c.DatabaseURL == "" {
			return apperrors.NewConfiguration("DATABASE_URL is required for the mysql store", nil)
		}
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unknown STORE_BACKEND %q", c.StoreBackend), nil)
	}

	if c.FetchTimeout <= 0 {
		return apperrors.NewConfiguration("FETCH_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > MaxHistoryLimit {
		return apperrors.NewConfiguration(fmt.Sprintf("HISTORY_LIMIT must be between 1 and %d", MaxHistoryLimit), nil)
	}
	if c.RendererConcurrency <= 0 {
		return apperrors.NewConfiguration("RENDERER_CONCURRENCY must be positive", nil)
	}
	if c.CheckDelay < 0 || c.CheckInterval < 0 {
		return apperrors.NewConfiguration("check delay and interval cannot be negative", nil)
	}
	if c.AlertStream != "" && c.AlertStreamCount <= 0 {
		return apperrors.NewConfiguration("ALERT_STREAM_COUNT must be positive", nil)
	}

	return nil
}

// EmailConfigured reports whether alerts can actually be delivered
func (c *Config) EmailConfigured() bool {
	return c.SendGridAPIKey != "" && c.FromEmail != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable, falling back on absent or malformed values
func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
