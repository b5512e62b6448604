package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port        int
	LogLevel    string
	HTTPTimeout time.Duration

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration
	BcryptCost   int

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// PostgREST store
	PostgRESTURL        string
	PostgRESTAPIKey     string
	PostgRESTServiceKey string
	UsePostgREST        bool
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		JWTSecret:    getEnv("JWT_SECRET", "escolar-default-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 30*time.Minute),
		BcryptCost:   getEnvInt("BCRYPT_COST", 12),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 1*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		PostgRESTURL:        getEnv("POSTGREST_URL", ""),
		PostgRESTAPIKey:     getEnv("POSTGREST_API_KEY", ""),
		PostgRESTServiceKey: getEnv("POSTGREST_SERVICE_ROLE_KEY", ""),
		UsePostgREST:        getEnv("USE_POSTGREST", "true") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
