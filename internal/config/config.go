package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppEnv               string
	LogLevel             string
	LogFile              string
	Port                 string
	PrometheusPort       string
	DatabaseDriver       string
	DatabaseURL          string
	SettingsPath         string
	Timezone             *time.Location
	ReminderPollInterval time.Duration
	TelegramToken        string
	TelegramChatID       int64
}

// IsDevelopment reports whether the app runs in development mode, where
// layout problems are returned as errors instead of being skipped.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// TelegramEnabled returns true if a bot token is configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnvOrDefault("APP_ENV", "production"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:        os.Getenv("LOG_FILE"),
		Port:           getEnvOrDefault("PORT", "8080"),
		PrometheusPort: getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		DatabaseDriver: getEnvOrDefault("DATABASE_DRIVER", DriverSQLite),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SettingsPath:   getEnvOrDefault("SETTINGS_PATH", "./data/settings.yaml"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
	}

	switch cfg.DatabaseDriver {
	case DriverSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "./data/daycal.db"
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	tz := getEnvOrDefault("TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}
	cfg.Timezone = loc

	interval := getEnvOrDefault("REMINDER_POLL_INTERVAL", "15s")
	cfg.ReminderPollInterval, err = time.ParseDuration(interval)
	if err != nil || cfg.ReminderPollInterval <= 0 {
		return nil, fmt.Errorf("invalid REMINDER_POLL_INTERVAL %q", interval)
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", chatID, err)
		}
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
