// Package config reads application configuration from environment
// variables. Everything has a working default; only a malformed value
// fails the load.
package config

import (
	"os"
	"strconv"

	"gocre/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Data     DataConfig
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds run ledger storage settings. An empty URL selects
// the in-memory ledger.
type DatabaseConfig struct {
	URL string
}

// DataConfig holds default dataset column mappings
type DataConfig struct {
	Outcome   string
	Treatment string
	ITE       string
	Offset    string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	port := getEnvOrDefault("PORT", "8080")
	if _, err := strconv.Atoi(port); err != nil {
		return nil, errors.ConfigInvalid("PORT must be numeric, got " + port)
	}

	return &Config{
		Server: ServerConfig{
			Port: port,
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Data: DataConfig{
			Outcome:   getEnvOrDefault("OUTCOME_COL", "y"),
			Treatment: getEnvOrDefault("TREATMENT_COL", "t"),
			ITE:       getEnvOrDefault("ITE_COL", ""),
			Offset:    getEnvOrDefault("OFFSET_VAR", ""),
		},
	}, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
