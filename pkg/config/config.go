package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/session"
	"github.com/campuskit/registrar/pkg/storage"
	"github.com/campuskit/registrar/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Session       SessionConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StorageConfig selects and configures the backing stores.
type StorageConfig struct {
	// Type is "memory" or "postgres".
	Type     string
	Postgres postgres.Config
	Redis    storage.RedisConfig
}

// SessionConfig holds session cache settings.
type SessionConfig struct {
	// Store is "memory" or "redis".
	Store string
	TTL   time.Duration

	// SweepSchedule is a cron expression for the expired-session
	// sweep.
	SweepSchedule string
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	// MemoryCapacity bounds the in-memory trail.
	MemoryCapacity int

	// Retention is how long database entries are kept; the cleanup
	// job runs on RetentionSchedule.
	Retention         time.Duration
	RetentionSchedule string

	// Async decouples database audit writes from the request path.
	Async bool
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("REGISTRAR_HOST", "0.0.0.0"),
			Port:            getEnv("REGISTRAR_PORT", "8080"),
			ReadTimeout:     getEnvDuration("REGISTRAR_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("REGISTRAR_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("REGISTRAR_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("REGISTRAR_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("REGISTRAR_HEALTH_PORT", "9090"),
		},
		Storage:       loadStorageConfig(),
		Session:       loadSessionConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadStorageConfig() StorageConfig {
	pg := postgres.DefaultConfig(getEnv("REGISTRAR_POSTGRES_URL", ""))
	if maxConns := getEnvInt("REGISTRAR_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		pg.MaxOpenConns = maxConns
	}
	if idleConns := getEnvInt("REGISTRAR_POSTGRES_IDLE_CONNS", 0); idleConns > 0 {
		pg.MaxIdleConns = idleConns
	}
	if timeout := getEnvDuration("REGISTRAR_POSTGRES_TIMEOUT", 0); timeout > 0 {
		pg.ConnectTimeout = timeout
	}

	return StorageConfig{
		Type:     getEnv("REGISTRAR_STORAGE_TYPE", "memory"),
		Postgres: pg,
		Redis: storage.RedisConfig{
			URL:        getEnv("REGISTRAR_REDIS_URL", ""),
			Password:   getEnv("REGISTRAR_REDIS_PASSWORD", ""),
			DB:         getEnvInt("REGISTRAR_REDIS_DB", 0),
			MaxRetries: getEnvInt("REGISTRAR_REDIS_MAX_RETRIES", 0),
			PoolSize:   getEnvInt("REGISTRAR_REDIS_POOL_SIZE", 0),
		},
	}
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		Store:         getEnv("REGISTRAR_SESSION_STORE", "memory"),
		TTL:           getEnvDuration("REGISTRAR_SESSION_TTL", session.DefaultTTL),
		SweepSchedule: getEnv("REGISTRAR_SESSION_SWEEP_SCHEDULE", "@hourly"),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		MemoryCapacity:    getEnvInt("REGISTRAR_AUDIT_MEMORY_CAPACITY", 10000),
		Retention:         getEnvDuration("REGISTRAR_AUDIT_RETENTION", 90*24*time.Hour),
		RetentionSchedule: getEnv("REGISTRAR_AUDIT_RETENTION_SCHEDULE", "@daily"),
		Async:             getEnvBool("REGISTRAR_AUDIT_ASYNC", true),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLevel(getEnv("REGISTRAR_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("REGISTRAR_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory or postgres)", c.Storage.Type)
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Storage.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for redis session store")
		}
	default:
		return fmt.Errorf("invalid session store: %s (must be memory or redis)", c.Session.Store)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Audit.MemoryCapacity <= 0 {
		return fmt.Errorf("audit memory capacity must be positive")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
