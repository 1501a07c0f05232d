package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "unset uses default", value: "", want: time.Minute},
		{name: "bare seconds", value: "90", want: 90 * time.Second},
		{name: "go duration", value: "50ms", want: 50 * time.Millisecond},
		{name: "minutes", value: "5m", want: 5 * time.Minute},
		{name: "garbage uses default", value: "soon", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestGetIntAndBool(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "many")
	t.Setenv("TEST_BOOL", "yes")

	assert.Equal(t, 42, getInt("TEST_INT", 7))
	assert.Equal(t, 7, getInt("TEST_BAD_INT", 7))
	assert.Equal(t, 7, getInt("TEST_MISSING_INT", 7))
	assert.True(t, getBool("TEST_BOOL", false))
	assert.False(t, getBool("TEST_MISSING_BOOL", false))
}

func TestLoad_SyncDefaults(t *testing.T) {
	t.Setenv("SYNC_MAX_CONNECTIONS", "")
	t.Setenv("SYNC_FLUSH_INTERVAL", "")
	t.Setenv("SYNC_HEARTBEAT_INTERVAL", "")
	t.Setenv("DB_DRIVER", "")

	cfg := Load()

	assert.Equal(t, 50*time.Millisecond, cfg.Sync.FlushInterval)
	assert.Equal(t, 30*time.Second, cfg.Sync.HeartbeatInterval)
	assert.Equal(t, 30, cfg.Sync.MaxConnections)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SYNC_MAX_CONNECTIONS", "5")
	t.Setenv("SYNC_IDLE_TIMEOUT", "120")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg := Load()

	assert.Equal(t, 5, cfg.Sync.MaxConnections)
	assert.Equal(t, 2*time.Minute, cfg.Sync.IdleTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}
