package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for configuration values.
const (
	DefaultEnv             = "local"
	DefaultDBPath          = "data/fhdraw.db"
	DefaultProviderBaseURL = "https://api.betika.co.tz"
	DefaultHTTPTimeout     = 10 * time.Second
	DefaultScanInterval    = 5 * time.Minute
	DefaultAlertCooldown   = 30 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
	DefaultMetricsPort     = "9095"
)

// Config holds all application configuration.
type Config struct {
	Env             string
	DBPath          string
	ProviderBaseURL string
	HTTPTimeout     time.Duration
	ScanInterval    time.Duration
	AlertCooldown   time.Duration
	MetricsPort     string

	// Telegram alerting; disabled when either value is empty
	BotToken string
	ChatID   string
}

// Load reads configuration from environment variables (and .env file if present).
func Load() Config {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := Config{
		Env:             DefaultEnv,
		DBPath:          DefaultDBPath,
		ProviderBaseURL: DefaultProviderBaseURL,
		HTTPTimeout:     DefaultHTTPTimeout,
		ScanInterval:    DefaultScanInterval,
		AlertCooldown:   DefaultAlertCooldown,
		MetricsPort:     DefaultMetricsPort,

		BotToken: os.Getenv("BOT_TOKEN"),
		ChatID:   os.Getenv("CHAT_ID"),
	}

	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.ProviderBaseURL = v
	}

	if v := os.Getenv("HTTP_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.HTTPTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("SCAN_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.ScanInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("ALERT_COOLDOWN_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.AlertCooldown = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.MetricsPort = v
	}

	return cfg
}

// Validate checks that configuration values are within acceptable ranges.
func Validate(cfg Config) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if cfg.ProviderBaseURL == "" {
		return fmt.Errorf("PROVIDER_BASE_URL must not be empty")
	}
	if cfg.HTTPTimeout < 100*time.Millisecond {
		return fmt.Errorf("HTTP_TIMEOUT_MS must be at least 100ms, got %v", cfg.HTTPTimeout)
	}
	if cfg.ScanInterval < time.Second {
		return fmt.Errorf("SCAN_INTERVAL_MS must be at least 1s, got %v", cfg.ScanInterval)
	}
	if cfg.AlertCooldown < 0 {
		return fmt.Errorf("ALERT_COOLDOWN_MS must be non-negative, got %v", cfg.AlertCooldown)
	}
	if cfg.MetricsPort == "" {
		return fmt.Errorf("METRICS_PORT must not be empty")
	}
	return nil
}
