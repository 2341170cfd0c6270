package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	ServerPort      int
	LibraryAPIURL   string // Base URL of the remote library catalog API
	DatabasePath    string
	SessionSecret   string
	JanitorSchedule string // Cron expression for the background janitor
	ActivityMaxAge  int    // Days of activity log to keep
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	portStr := getEnv("PORT", "8090")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	maxAgeStr := getEnv("ACTIVITY_MAX_AGE_DAYS", "30")
	maxAge, err := strconv.Atoi(maxAgeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid ACTIVITY_MAX_AGE_DAYS: %w", err)
	}

	cfg := &Config{
		ServerPort:      port,
		LibraryAPIURL:   strings.TrimRight(getEnv("LIBRARY_API_URL", "http://localhost:8080/api"), "/"),
		DatabasePath:    getEnv("DATABASE_PATH", "./console.db"),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
		JanitorSchedule: getEnv("JANITOR_SCHEDULE", "*/15 * * * *"),
		ActivityMaxAge:  maxAge,
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET must be set")
	}

	return cfg, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
