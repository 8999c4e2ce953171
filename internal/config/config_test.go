package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "DATABASE_DRIVER", "DATABASE_URL", "TIMEZONE", "REMINDER_POLL_INTERVAL", "TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID", "PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, "./data/daycal.db", cfg.DatabaseURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.ReminderPollInterval)
	assert.Equal(t, time.Local, cfg.Timezone)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://daycal@localhost/daycal?sslmode=disable")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("REMINDER_POLL_INTERVAL", "5s")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.Equal(t, 5*time.Second, cfg.ReminderPollInterval)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"DATABASE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"bad interval", map[string]string{"REMINDER_POLL_INTERVAL": "soon"}},
		{"negative interval", map[string]string{"REMINDER_POLL_INTERVAL": "-1s"}},
		{"bad chat id", map[string]string{"TELEGRAM_CHAT_ID": "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DATABASE_DRIVER", "DATABASE_URL", "TIMEZONE", "REMINDER_POLL_INTERVAL", "TELEGRAM_CHAT_ID"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
