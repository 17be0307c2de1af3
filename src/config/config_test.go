package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "POOL_TAG_NAME", "SYNC_PAGE_SIZE", "SCHEDULER_ENABLED", "SCHEDULER_RUN_ON_STARTUP", "PAPERLESS_BASE_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "8080")
	t.Setenv("PAPERLESS_BASE_URL", "http://paperless:8000/")

	c := FromEnv()
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "http://paperless:8000", c.PaperlessBaseURL)
	assert.Equal(t, 100, c.SyncPageSize)
	assert.False(t, c.SchedulerEnabled)
	assert.True(t, c.SchedulerRunOnStartup)
	assert.Equal(t, 6*time.Hour, c.SchedulerInterval())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("POOL_TAG_NAME", "Schwimmbad")
	t.Setenv("SYNC_PAGE_SIZE", "25")
	t.Setenv("SYNC_LOOKBACK_DAYS", "30")
	t.Setenv("SCHEDULER_ENABLED", "yes")
	t.Setenv("SCHEDULER_INTERVAL_MINUTES", "0")
	t.Setenv("PAPERLESS_TOKEN", "  secret ")
	t.Setenv("PAPERLESS_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	c := FromEnv()
	assert.Equal(t, "Schwimmbad", c.PoolTagName)
	assert.Equal(t, 25, c.SyncPageSize)
	assert.Equal(t, 30, c.SyncLookbackDays)
	assert.True(t, c.SchedulerEnabled)
	assert.Equal(t, time.Minute, c.SchedulerInterval(), "interval is clamped to one minute")
	assert.Equal(t, "secret", c.PaperlessToken)
	assert.Equal(t, 5*time.Second, c.PaperlessTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSAllowedOrigins)
}

func TestFromEnvInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SYNC_PAGE_SIZE", "many")
	t.Setenv("SCHEDULER_RUN_ON_STARTUP", "perhaps")
	c := FromEnv()
	assert.Equal(t, 100, c.SyncPageSize)
	assert.True(t, c.SchedulerRunOnStartup)
}

func validConfig() *AppConfig {
	return &AppConfig{
		Port:             "8080",
		DatabasePath:     "poolcosts.db",
		PaperlessBaseURL: "http://paperless:8000",
		PoolTagName:      "Pool",
		SyncPageSize:     100,
		SyncWorkers:      4,
		PaperlessRPS:     5,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*AppConfig)
		wantErr bool
	}{
		{"valid", func(*AppConfig) {}, false},
		{"bad port", func(c *AppConfig) { c.Port = "http" }, true},
		{"relative paperless url", func(c *AppConfig) { c.PaperlessBaseURL = "paperless" }, true},
		{"empty tag", func(c *AppConfig) { c.PoolTagName = " " }, true},
		{"page size too large", func(c *AppConfig) { c.SyncPageSize = 5000 }, true},
		{"negative lookback", func(c *AppConfig) { c.SyncLookbackDays = -1 }, true},
		{"no workers", func(c *AppConfig) { c.SyncWorkers = 0 }, true},
		{"zero rps", func(c *AppConfig) { c.PaperlessRPS = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}
