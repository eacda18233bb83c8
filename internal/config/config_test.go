package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/booking")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.CancellationWindow)
	assert.Equal(t, 30*time.Minute, cfg.NoShowGracePeriod)
	assert.Equal(t, 15*time.Minute, cfg.AttendanceEarlyMark)
	assert.Equal(t, "@every 5m", cfg.SweepSchedule)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 100, cfg.SweepBatchSize)
	assert.Empty(t, cfg.TelegramToken)
	assert.Equal(t, 15*time.Minute, cfg.TelegramLinkTTL)
	assert.False(t, cfg.IsProduction())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/booking")
	t.Setenv("ENV", "production")
	t.Setenv("CANCELLATION_WINDOW", "12h")
	t.Setenv("NO_SHOW_GRACE_PERIOD", "1h")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 12*time.Hour, cfg.CancellationWindow)
	assert.Equal(t, time.Hour, cfg.NoShowGracePeriod)
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Run("missing dsn", func(t *testing.T) {
		t.Setenv("DB_DSN", "")
		_, err := Parse()
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("DB_DSN", "postgres://localhost/booking")
		t.Setenv("CANCELLATION_WINDOW", "soon")
		_, err := Parse()
		require.Error(t, err)
	})

	t.Run("zero window", func(t *testing.T) {
		t.Setenv("DB_DSN", "postgres://localhost/booking")
		t.Setenv("CANCELLATION_WINDOW", "0s")
		_, err := Parse()
		require.Error(t, err)
	})

	t.Run("unknown env", func(t *testing.T) {
		t.Setenv("DB_DSN", "postgres://localhost/booking")
		t.Setenv("ENV", "staging")
		_, err := Parse()
		require.Error(t, err)
	})

	t.Run("unknown log level", func(t *testing.T) {
		t.Setenv("DB_DSN", "postgres://localhost/booking")
		t.Setenv("LOG_LEVEL", "verbose")
		_, err := Parse()
		require.Error(t, err)
	})
}
