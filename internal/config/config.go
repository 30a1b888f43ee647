package config

import (
	"os"
	"strconv"

	"gomediate/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig    `validate:"required"`
	Study     StudyConfig     `validate:"required"`
	Profiling ProfilingConfig
}

// DatabaseConfig holds database connection settings. An empty URL is
// allowed and selects the in-memory store.
type DatabaseConfig struct {
	URL      string
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string `validate:"required"`
}

// StudyConfig holds defaults applied to new studies
type StudyConfig struct {
	GridPoints          int
	ConfidenceLevel     float64
	ConfidenceIntervals bool
	IgnoreRandomEffects bool
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	config.Database = *loadDatabaseConfig()
	config.Server = *loadServerConfig()
	config.Study = *loadStudyConfig()
	config.Profiling = *loadProfilingConfig()

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// HasDatabase reports whether a Postgres connection is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:      getEnvOrDefault("DATABASE_URL", ""),
		User:     getEnvOrDefault("DB_USER", ""),
		Password: getEnvOrDefault("DB_PASS", ""),
		Name:     getEnvOrDefault("DB_NAME", ""),
		Host:     getEnvOrDefault("DB_HOST", ""),
		Port:     getEnvIntOrDefault("DB_PORT", 5432),
		SSLMode:  getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadStudyConfig() *StudyConfig {
	return &StudyConfig{
		GridPoints:          getEnvIntOrDefault("GRID_POINTS", 30),
		ConfidenceLevel:     getEnvFloatOrDefault("CONFIDENCE_LEVEL", 0.95),
		ConfidenceIntervals: getEnvBoolOrDefault("CONFIDENCE_INTERVALS", true),
		IgnoreRandomEffects: getEnvBoolOrDefault("IGNORE_RANDOM_EFFECTS", true),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Study.GridPoints < 2 {
		return errors.ConfigInvalid("GRID_POINTS must be at least 2")
	}
	if config.Study.ConfidenceLevel <= 0 || config.Study.ConfidenceLevel >= 1 {
		return errors.ConfigInvalid("CONFIDENCE_LEVEL must be between 0 and 1 exclusive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
