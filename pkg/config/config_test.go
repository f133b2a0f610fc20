package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/registrar/pkg/observability"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "@hourly", cfg.Session.SweepSchedule)
	assert.Equal(t, 10000, cfg.Audit.MemoryCapacity)
	assert.Equal(t, 90*24*time.Hour, cfg.Audit.Retention)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("REGISTRAR_PORT", "8181")
	t.Setenv("REGISTRAR_STORAGE_TYPE", "postgres")
	t.Setenv("REGISTRAR_POSTGRES_URL", "postgres://localhost/registrar")
	t.Setenv("REGISTRAR_POSTGRES_MAX_CONNS", "50")
	t.Setenv("REGISTRAR_SESSION_STORE", "redis")
	t.Setenv("REGISTRAR_REDIS_URL", "redis://localhost:6379")
	t.Setenv("REGISTRAR_SESSION_TTL", "1h")
	t.Setenv("REGISTRAR_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, 50, cfg.Storage.Postgres.MaxOpenConns)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "postgres storage without URL",
			mutate:  func(c *Config) { c.Storage.Type = "postgres"; c.Storage.Postgres.URL = "" },
			wantErr: "postgres URL is required",
		},
		{
			name:    "redis sessions without URL",
			mutate:  func(c *Config) { c.Session.Store = "redis"; c.Storage.Redis.URL = "" },
			wantErr: "redis URL is required",
		},
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Storage.Type = "cassandra" },
			wantErr: "invalid storage type",
		},
		{
			name:    "same port for both servers",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "non-positive TTL",
			mutate:  func(c *Config) { c.Session.TTL = 0 },
			wantErr: "session TTL must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("REGISTRAR_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvInt("REGISTRAR_TEST_INT", 7))

	t.Setenv("REGISTRAR_TEST_BOOL", "1")
	assert.True(t, getEnvBool("REGISTRAR_TEST_BOOL", false))

	t.Setenv("REGISTRAR_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("REGISTRAR_TEST_DUR", time.Minute))
}
