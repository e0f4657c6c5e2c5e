package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.Equal(t, "snapshots", cfg.Storage.BasePrefix)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, time.Minute, cfg.Worker.LeaseDuration)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Worker.InitialBackoff)
	assert.Equal(t, 10, cfg.Worker.MaxDeliveries)
	assert.Equal(t, 20, cfg.Categorize.BatchLimit)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/fridge")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("WORKER_POLL_INTERVAL", "250ms")
	t.Setenv("OPENAI_TEMPERATURE", "0.7")
	t.Setenv("DB_AUTOMIGRATE", "true")

	cfg := LoadConfig()
	assert.Equal(t, "postgres://u:p@localhost:5432/fridge", cfg.Database.DSN)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.PollInterval)
	assert.InDelta(t, 0.7, float64(cfg.LLM.Temperature), 0.001)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestLoadConfigIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "lots")
	t.Setenv("WORKER_POLL_INTERVAL", "soon")

	cfg := LoadConfig()
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, time.Second, cfg.Worker.PollInterval)
}

func TestValidate(t *testing.T) {
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/fridge")
	t.Setenv("S3_BUCKET", "fridge")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	cfg.Database.DSN = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))

	cfg = LoadConfig()
	cfg.Worker.Concurrency = 0
	assert.Error(t, cfg.Validate())
}
