package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.WorkerConcurrency)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 1, cfg.MaxStalledCount)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 30*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, "WORKING", cfg.ActiveSessionStatus)
	assert.Equal(t, "scheduled-messages", cfg.QueueName)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestParseFromEnv(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("MAX_JOB_ATTEMPTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test,https://b.test")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
}

func TestSanitize(t *testing.T) {
	cfg := Config{
		WorkerConcurrency: 0,
		MaxAttempts:       -1,
		GatewayTimeout:    30 * time.Second,
		VisibilityTimeout: 5 * time.Second,
	}
	cfg.Sanitize()

	assert.Equal(t, 1, cfg.WorkerConcurrency)
	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Equal(t, 1, cfg.MaxStalledCount)
	assert.Equal(t, 40*time.Second, cfg.VisibilityTimeout)
	assert.Equal(t, "scheduled-messages", cfg.QueueName)
	assert.Equal(t, "@every 1m", cfg.HousekeepingSchedule)
}

func TestParseRejectsMalformedDuration(t *testing.T) {
	t.Setenv("GATEWAY_TIMEOUT", "soon")

	_, err := Parse()
	require.Error(t, err)
}
