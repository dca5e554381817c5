// Package config loads service configuration from LINC_* environment
// variables with sensible defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schuttebj/linc-backend/pkg/observability"
	"github.com/schuttebj/linc-backend/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      postgres.Config
	Cache         CacheConfig
	Engine        EngineConfig
	Seed          SeedConfig
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

// CacheConfig selects and tunes the compiled-permission cache backend
type CacheConfig struct {
	// Backend is "redis" or "memory"
	Backend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MemoryMaxEntries bounds the in-process LRU when Backend is "memory"
	MemoryMaxEntries int
}

// EngineConfig tunes permission compilation
type EngineConfig struct {
	CacheTTL       time.Duration
	CompileTimeout time.Duration
}

// SeedConfig controls role definition seeding from YAML
type SeedConfig struct {
	// File is the seed file path; empty disables seeding
	File string
	// Watch reapplies the seed file when it changes on disk
	Watch bool
}

// AuditConfig controls the audit trail retention job
type AuditConfig struct {
	RetentionMaxAge time.Duration
	// CleanupSchedule is a cron expression; empty disables the job
	CleanupSchedule string
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Engine:        loadEngineConfig(),
		Seed:          loadSeedConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("LINC_HOST", "0.0.0.0"),
		Port:            getEnv("LINC_PORT", "8080"),
		ReadTimeout:     getEnvDuration("LINC_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("LINC_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("LINC_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("LINC_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("LINC_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() postgres.Config {
	cfg := postgres.DefaultConfig()
	cfg.URL = getEnv("LINC_POSTGRES_URL", "")
	if maxOpen := getEnvInt("LINC_POSTGRES_MAX_OPEN_CONNS", 0); maxOpen > 0 {
		cfg.MaxOpenConns = maxOpen
	}
	if maxIdle := getEnvInt("LINC_POSTGRES_MAX_IDLE_CONNS", 0); maxIdle > 0 {
		cfg.MaxIdleConns = maxIdle
	}
	if lifetime := getEnvDuration("LINC_POSTGRES_CONN_MAX_LIFETIME", 0); lifetime > 0 {
		cfg.ConnMaxLifetime = lifetime
	}
	return cfg
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:          getEnv("LINC_CACHE_BACKEND", "memory"),
		RedisAddr:        getEnv("LINC_REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("LINC_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("LINC_REDIS_DB", 0),
		MemoryMaxEntries: getEnvInt("LINC_CACHE_MAX_ENTRIES", 10000),
	}
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		CacheTTL:       getEnvDuration("LINC_PERMISSION_CACHE_TTL", time.Hour),
		CompileTimeout: getEnvDuration("LINC_COMPILE_TIMEOUT", 10*time.Second),
	}
}

func loadSeedConfig() SeedConfig {
	return SeedConfig{
		File:  getEnv("LINC_ROLE_SEED_FILE", ""),
		Watch: getEnvBool("LINC_ROLE_SEED_WATCH", false),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		RetentionMaxAge: getEnvDuration("LINC_AUDIT_RETENTION", 365*24*time.Hour),
		CleanupSchedule: getEnv("LINC_AUDIT_CLEANUP_SCHEDULE", "0 3 * * *"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("LINC_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("LINC_METRICS_ENABLED", true),
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

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	switch c.Cache.Backend {
	case "memory":
		if c.Cache.MemoryMaxEntries <= 0 {
			return fmt.Errorf("cache max entries must be positive for memory backend")
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("redis address is required for redis backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be memory or redis)", c.Cache.Backend)
	}

	if c.Engine.CacheTTL <= 0 {
		return fmt.Errorf("permission cache TTL must be positive")
	}
	if c.Engine.CompileTimeout <= 0 {
		return fmt.Errorf("compile timeout must be positive")
	}
	if c.Audit.RetentionMaxAge <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
