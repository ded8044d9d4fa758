// Package config provides configuration management for the chatbot service.
// It handles loading and validation of configuration values from environment
// variables, with support for required variables, default values, and
// collective error reporting: every problem found while loading is collected
// and returned at once, so a misconfigured deployment fails fast with a full
// list of what to fix instead of one variable at a time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DBConfig holds the document-store connection settings. The store is
// addressed by a single connection string, mirroring how the service has
// always been deployed; pool sizing is tunable separately.
type DBConfig struct {
	// URL is the PostgreSQL connection string (DATABASE_URL).
	URL string
	// MaxConns bounds the connection pool, clamped to [2, 100].
	MaxConns int
	// RunMigrations controls whether pending migrations are applied at boot.
	RunMigrations bool
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	JWTSecret           string        // Secret key for signing JWTs
	AccessTokenDuration time.Duration // Lifetime of issued access tokens
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     string // Port for the HTTP server
	LogLevel string // zerolog level name ("debug", "info", ...)
}

// RateLimitConfig holds the admission gate settings. The window is a strict
// trailing interval; RequestsPerWindow is the hard cap within it.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

// GeneratorConfig holds settings for the text-generation backend. The
// generation parameters are fixed per request; only the backend location and
// the call bound are operational knobs.
type GeneratorConfig struct {
	URL          string        // Base URL of the inference server
	Timeout      time.Duration // Upper bound on a single generation call
	MaxNewTokens int           // Maximum length of the generated continuation
	Temperature  float64       // Sampling temperature
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	DB        *DBConfig
	Auth      *AuthConfig
	Server    *ServerConfig
	RateLimit *RateLimitConfig
	Generator *GeneratorConfig
}

// getRequiredEnv reads a required environment variable, appending to the
// errors slice if it is not set.
func getRequiredEnv(key string, errors *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		*errors = append(*errors, fmt.Sprintf("missing required environment variable: %s", key))
		return ""
	}
	return value
}

// getOptionalEnv reads an optional environment variable with a default.
func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getOptionalEnvInt reads an optional integer variable. Uses defaultValue if
// not set; appends an error and uses the default if parsing fails.
func getOptionalEnvInt(key string, defaultValue int, errors *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

// getOptionalEnvFloat reads an optional float variable with the same
// error-collecting behavior as getOptionalEnvInt.
func getOptionalEnvFloat(key string, defaultValue float64, errors *[]string) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueFloat, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected number, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueFloat
}

// getOptionalEnvBool reads an optional boolean variable ("true"/"false",
// "1"/"0", per strconv.ParseBool).
func getOptionalEnvBool(key string, defaultValue bool, errors *[]string) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueBool, err := strconv.ParseBool(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected boolean, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueBool
}

// getOptionalEnvDuration reads an optional duration variable. `time.ParseDuration`
// expects a string like "15m", "1h30s".
func getOptionalEnvDuration(key string, defaultValue time.Duration, errors *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected duration string, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueDuration
}

// clampPoolSize keeps the connection pool within reasonable bounds,
// collecting an error when a configured value had to be adjusted.
func clampPoolSize(size int, varName string, errors *[]string) int {
	if size < 2 {
		*errors = append(*errors, fmt.Sprintf("pool size for %s (%d) is less than minimum 2, clamping to 2", varName, size))
		return 2
	}
	if size > 100 {
		*errors = append(*errors, fmt.Sprintf("pool size for %s (%d) is greater than maximum 100, clamping to 100", varName, size))
		return 100
	}
	return size
}

// LoadConfig creates and returns an AppConfig by reading and validating
// environment variables. It collects all errors encountered during loading
// and returns a single aggregated error if any exist.
func LoadConfig() (*AppConfig, error) {
	var errors []string

	// Document store
	databaseURL := getRequiredEnv("DATABASE_URL", &errors)
	maxConns := clampPoolSize(getOptionalEnvInt("DB_POOL_MAX_CONNS", 10, &errors), "DB_POOL_MAX_CONNS", &errors)
	runMigrations := getOptionalEnvBool("RUN_MIGRATIONS", true, &errors)

	dbConfig := &DBConfig{
		URL:           databaseURL,
		MaxConns:      maxConns,
		RunMigrations: runMigrations,
	}

	// Authentication. The 30-minute token lifetime is the service's
	// long-standing default; deployments may shorten or extend it.
	jwtSecret := getRequiredEnv("JWT_SECRET", &errors)
	accessTokenDuration := getOptionalEnvDuration("JWT_ACCESS_TOKEN_DURATION", 30*time.Minute, &errors)

	authConfig := &AuthConfig{
		JWTSecret:           jwtSecret,
		AccessTokenDuration: accessTokenDuration,
	}

	// Admission gate: 60 requests per trailing minute per client address.
	rateLimitConfig := &RateLimitConfig{
		RequestsPerWindow: getOptionalEnvInt("RATE_LIMIT_PER_MINUTE", 60, &errors),
		Window:            time.Minute,
	}
	if rateLimitConfig.RequestsPerWindow < 1 {
		errors = append(errors, fmt.Sprintf("RATE_LIMIT_PER_MINUTE must be positive, got %d", rateLimitConfig.RequestsPerWindow))
	}

	// Text-generation backend. The generation parameters (100 new tokens,
	// temperature 0.7, sampling on) are part of the product behavior and are
	// only overridable for operational experiments.
	generatorConfig := &GeneratorConfig{
		URL:          getOptionalEnv("GENERATOR_URL", "http://localhost:8081"),
		Timeout:      getOptionalEnvDuration("GENERATOR_TIMEOUT", 30*time.Second, &errors),
		MaxNewTokens: getOptionalEnvInt("GENERATOR_MAX_NEW_TOKENS", 100, &errors),
		Temperature:  getOptionalEnvFloat("GENERATOR_TEMPERATURE", 0.7, &errors),
	}

	serverConfig := &ServerConfig{
		Port:     getOptionalEnv("PORT", "8080"),
		LogLevel: getOptionalEnv("LOG_LEVEL", "info"),
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return &AppConfig{
		DB:        dbConfig,
		Auth:      authConfig,
		Server:    serverConfig,
		RateLimit: rateLimitConfig,
		Generator: generatorConfig,
	}, nil
}
