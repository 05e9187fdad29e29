// Package config loads application configuration from environment variables.
// All variables use the PYQ_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Catalog  CatalogConfig
	Session  SessionConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL disables
// the database: sessions live in memory and the catalog loads from YAML.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL disables the
// attribute-index cache.
type CacheConfig struct {
	URL string
}

// CatalogConfig holds question-bank loading settings.
type CatalogConfig struct {
	// Path is a directory of YAML catalog fixtures, used when no database
	// is configured.
	Path string
}

// SessionConfig holds practice-session policy.
type SessionConfig struct {
	// CompleteOnFinalSubmit completes a session once every question has a
	// response, instead of waiting for the learner to navigate past the end.
	CompleteOnFinalSubmit bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with PYQ_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PYQ_SERVER_PORT", 8080),
			Host: envStr("PYQ_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("PYQ_DATABASE_URL", ""),
			MaxConns: envInt("PYQ_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("PYQ_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("PYQ_CACHE_URL", ""),
		},
		Catalog: CatalogConfig{
			Path: envStr("PYQ_CATALOG_PATH", "./catalog"),
		},
		Session: SessionConfig{
			CompleteOnFinalSubmit: envBool("PYQ_SESSION_COMPLETE_ON_FINAL_SUBMIT", false),
		},
		Log: LogConfig{
			Level:  envStr("PYQ_LOG_LEVEL", "info"),
			Format: envStr("PYQ_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Catalog.Path == "" {
		return fmt.Errorf("either PYQ_DATABASE_URL or PYQ_CATALOG_PATH is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PYQ_SERVER_PORT must be a valid port, got %d", c.Server.Port)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("PYQ_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
