// Package config provides configuration management for the signal router.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so the application starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./signal_router.db)
//   - POSTGRES_HOST: PostgreSQL host (default: localhost)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (default: signal_router)
//   - POSTGRES_USER: PostgreSQL username (default: postgres)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//
// Security Configuration:
//   - INBOUND_TOKEN: Bearer token carried in the inbound webhook path (required)
//   - ENCRYPTION_KEY: Key material for encrypting outbound target URLs (required)
//   - JWT_SECRET: JWT signing secret for the admin API (required, minimum 32 characters)
//   - ADMIN_USERNAME: Admin API username (default: admin)
//   - ADMIN_PASSWORD: Admin API password (default: change-me-password)
//
// Dispatch Configuration:
//   - MAX_BODY_SIZE: Maximum inbound payload size in bytes (default: 1048576)
//   - DISPATCH_TIMEOUT: Per-target outbound HTTP timeout (default: 5s)
//   - SIGNAL_RETENTION_DAYS: Delete signals older than this many days, 0 keeps forever (default: 0)
//
// Redis / Rate Limiting (optional):
//   - REDIS_ADDRESS: Redis server address, empty disables Redis (default: "")
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - RATE_LIMIT_ENABLED: Enable inbound rate limiting (default: true)
//   - RATE_LIMIT_DEFAULT: Default rate limit per window (default: 100)
//   - RATE_LIMIT_WINDOW: Rate limit time window (default: 60s)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the signal router.
// Load it with Load() and validate with Validate() before use.
type Config struct {
	// Application settings
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// Database configuration
	DatabaseType     string // Database type: "sqlite" or "postgres"
	DatabasePath     string // Path to SQLite database file
	PostgresHost     string // PostgreSQL host address
	PostgresPort     string // PostgreSQL port number
	PostgresDB       string // PostgreSQL database name
	PostgresUser     string // PostgreSQL username
	PostgresPassword string // PostgreSQL password
	PostgresSSLMode  string // PostgreSQL SSL mode (disable, require, etc.)

	// Security configuration
	InboundToken  string // Token verified on the inbound webhook path (required)
	EncryptionKey string // Key material for the target codec (required)
	JWTSecret     string // Secret key for admin JWT signing (required)
	AdminUsername string // Admin API username
	AdminPassword string // Admin API password

	// Dispatch configuration
	MaxBodySize         int64         // Maximum inbound body size in bytes
	DispatchTimeout     time.Duration // Per-target outbound HTTP timeout
	SignalRetentionDays int           // Retention sweep threshold, 0 disables

	// Redis configuration for rate limiting
	RedisAddress  string // Redis server address (host:port), empty disables
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// Rate limiting configuration
	RateLimitEnabled bool   // Whether inbound rate limiting is enabled
	RateLimitDefault string // Default requests per window
	RateLimitWindow  string // Rate limiting time window (e.g., "60s", "1m")
}

// Load creates a new Config instance with values loaded from environment
// variables. Values not set in the environment fall back to defaults.
// Load does not validate - call Validate() on the returned Config.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./signal_router.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "signal_router"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		InboundToken:  getEnv("INBOUND_TOKEN", ""),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "change-me-password"),

		MaxBodySize:         getInt64Env("MAX_BODY_SIZE", 1<<20),
		DispatchTimeout:     getDurationEnv("DISPATCH_TIMEOUT", 5*time.Second),
		SignalRetentionDays: getIntEnv("SIGNAL_RETENTION_DAYS", 0),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitDefault: getEnv("RATE_LIMIT_DEFAULT", "100"),
		RateLimitWindow:  getEnv("RATE_LIMIT_WINDOW", "60s"),
	}
}

// Validate checks that all required configuration values are set and
// within acceptable ranges.
func (c *Config) Validate() error {
	if c.InboundToken == "" {
		return fmt.Errorf("INBOUND_TOKEN is required")
	}

	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	if c.DatabaseType != "sqlite" && c.DatabaseType != "postgres" {
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres', got %q", c.DatabaseType)
	}

	if c.MaxBodySize <= 0 {
		return fmt.Errorf("MAX_BODY_SIZE must be positive")
	}

	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("DISPATCH_TIMEOUT must be positive")
	}

	if c.SignalRetentionDays < 0 {
		return fmt.Errorf("SIGNAL_RETENTION_DAYS must not be negative")
	}

	if _, err := time.ParseDuration(c.RateLimitWindow); err != nil {
		return fmt.Errorf("RATE_LIMIT_WINDOW is not a valid duration: %w", err)
	}

	return nil
}

// PostgresDSN returns the PostgreSQL connection string
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser, c.PostgresPassword, c.PostgresSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getInt64Env(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
