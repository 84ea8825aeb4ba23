package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Environment helpers shared by the daemon and tests. Malformed values fall
// back to the default and are logged, never returned as errors.

// StringFromEnv retrieves a string from the environment, or the default if
// the key is unset.
func StringFromEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// IntFromEnv retrieves an integer from the environment.
func IntFromEnv(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.With("key", key, "value", value, "error", err).Error("invalid integer in environment, using default")
		return defaultValue
	}
	return n
}

// FloatFromEnv retrieves a float from the environment.
func FloatFromEnv(key string, defaultValue float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.With("key", key, "value", value, "error", err).Error("invalid float in environment, using default")
		return defaultValue
	}
	return f
}

// DurationFromEnv retrieves a duration from the environment. The value must
// be in time.ParseDuration format, like "300ms" or "10s".
func DurationFromEnv(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.With("key", key, "value", value, "error", err).Error("invalid duration in environment, using default")
		return defaultValue
	}
	return d
}
