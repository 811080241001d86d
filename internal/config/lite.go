// Package config provides configuration management for the SCDAid servers.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/scdaid-mcp-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for feedback and exports

	// Phenotype prediction cache
	CacheMaxItems int           // Maximum predictions held in memory
	CacheTTL      time.Duration // Lifetime of a cached prediction

	// Optional phenotype predictor
	PhenotypeURL string // Empty disables prediction

	// Audit trail
	AuditMaxRuns int // Plan runs kept in memory

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Display
	Language string // en, ar
	DoseUnit string // mg, mcg, g

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".scdaid")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 500,
		CacheTTL:      15 * time.Minute,
		AuditMaxRuns:  1000,
		Transport:     "stdio",
		HTTPPort:      8081,
		Language:      "en",
		DoseUnit:      "mg",
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("SCDAID_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("SCDAID_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("SCDAID_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}
	if v := os.Getenv("SCDAID_AUDIT_MAX_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AuditMaxRuns = n
		}
	}

	cfg.PhenotypeURL = os.Getenv("SCDAID_PHENOTYPE_URL")

	if v := os.Getenv("SCDAID_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("SCDAID_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	if v := os.Getenv("SCDAID_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("SCDAID_DOSE_UNIT"); v != "" {
		cfg.DoseUnit = v
	}

	if v := os.Getenv("SCDAID_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SCDAID_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// FeedbackDBPath returns the path to the feedback SQLite database.
func (c *LiteConfig) FeedbackDBPath() string {
	return filepath.Join(c.DataDir, "feedback.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// Display returns the rendering defaults
func (c *LiteConfig) Display() domain.DisplayConfig {
	return domain.DisplayConfig{Language: c.Language, DoseUnit: c.DoseUnit}
}

// Logging returns the logger settings. Output is always stderr so stdio transport
// keeps stdout for protocol frames.
func (c *LiteConfig) Logging() domain.LoggingConfig {
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}
