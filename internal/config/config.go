package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/scdaid-mcp-server/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g. SCDAID_SERVER_PORT.
const EnvPrefix = "SCDAID"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	configFile string
	envFile    string
	config     *domain.Config
}

// Option customizes a Manager
type Option func(*Manager)

// WithConfigFile reads configuration from an explicit file instead of the search paths.
func WithConfigFile(path string) Option {
	return func(m *Manager) { m.configFile = path }
}

// WithEnvFile loads environment variables from an explicit dotenv file.
func WithEnvFile(path string) Option {
	return func(m *Manager) { m.envFile = path }
}

// NewManager creates a new configuration manager
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from .env, config file, environment and defaults
func (m *Manager) loadConfig() error {
	if m.envFile != "" {
		if err := godotenv.Load(m.envFile); err != nil {
			return fmt.Errorf("error loading env file: %w", err)
		}
	} else {
		// A missing .env is normal outside development
		_ = godotenv.Load()
	}

	v := viper.New()
	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/scdaid/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Without an explicit file, a missing config.yaml falls back to defaults and env
		var notFound viper.ConfigFileNotFoundError
		if m.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.rate_limit", 10)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.tls_enabled", false)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "scdaid")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "")

	// Phenotype prediction service defaults
	v.SetDefault("phenotype.enabled", false)
	v.SetDefault("phenotype.base_url", "http://localhost:8000")
	v.SetDefault("phenotype.timeout", "5s")
	v.SetDefault("phenotype.rate_limit", 5)
	v.SetDefault("phenotype.retry_count", 1)
	v.SetDefault("phenotype.cache_size", 500)
	v.SetDefault("phenotype.cache_ttl", "15m")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	// MCP defaults
	v.SetDefault("mcp.server_name", "scdaid-mcp-server")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.transport_type", "stdio")
	v.SetDefault("mcp.http_host", "localhost")
	v.SetDefault("mcp.http_port", 8081)
	v.SetDefault("mcp.request_timeout", "30s")

	// Feedback defaults
	v.SetDefault("feedback.driver", "sqlite")
	v.SetDefault("feedback.path", "")
	v.SetDefault("feedback.dsn", "")

	// Display defaults
	v.SetDefault("display.language", "en")
	v.SetDefault("display.dose_unit", "mg")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetPhenotypeConfig returns the phenotype service configuration
func (m *Manager) GetPhenotypeConfig() *domain.PhenotypeConfig {
	return &m.config.Phenotype
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true, "fatal": true, "panic": true,
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.MCP.TransportType == "http" && (config.MCP.HTTPPort <= 0 || config.MCP.HTTPPort > 65535) {
		return fmt.Errorf("invalid mcp http port: %d", config.MCP.HTTPPort)
	}
	switch config.MCP.TransportType {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid mcp transport: %s", config.MCP.TransportType)
	}

	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	if config.Phenotype.Enabled && config.Phenotype.BaseURL == "" {
		return fmt.Errorf("phenotype base URL is required when the predictor is enabled")
	}
	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when the cache is enabled")
	}

	switch config.Feedback.Driver {
	case "", "sqlite":
	case "postgres":
		if config.Feedback.DSN == "" {
			return fmt.Errorf("feedback dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid feedback driver: %s", config.Feedback.Driver)
	}

	if !domain.DoseUnit(strings.ToLower(config.Display.DoseUnit)).IsValid() {
		return fmt.Errorf("invalid display dose unit: %s", config.Display.DoseUnit)
	}
	switch strings.ToLower(config.Display.Language) {
	case "en", "ar":
	default:
		return fmt.Errorf("invalid display language: %s", config.Display.Language)
	}

	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
