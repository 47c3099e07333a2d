package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the routing service
type Config struct {
	// HTTP server
	Port           string
	AllowedOrigins []string

	// Geodata backend: http, postgres or sqlite
	Backend     string
	GeodataURL  string
	DatabaseURL string
	SQLitePath  string

	// Planning defaults
	DefaultYear    int
	SuggestionCap  int
	DebounceWindow time.Duration

	// Session housekeeping
	SessionTTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: []string{getEnv("ALLOWED_ORIGIN", "*")},

		Backend:     getEnv("GEODATA_BACKEND", "http"),
		GeodataURL:  getEnv("GEODATA_URL", "http://localhost:8081"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_DATABASE", "/data/routing.db"),

		DefaultYear:    getEnvInt("DEFAULT_YEAR", 1910),
		SuggestionCap:  getEnvInt("SUGGESTION_CAP", 12),
		DebounceWindow: time.Duration(getEnvInt("DEBOUNCE_MS", 160)) * time.Millisecond,

		SessionTTL: time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)) * time.Minute,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
