// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Risk scorer
	ScorerURL     string // External scoring service (optional, heuristic evaluator if not set)
	ScorerTimeout time.Duration
	OTPThreshold  float64 // Score above which step-up verification is required

	// Accounts
	OpeningBalance float64

	// Auth
	JWTSecret     string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string // Bootstrap admin credentials (development only)

	// Alerting
	AlertWebhookURL string // Fraud alert delivery endpoint (optional)

	// Security
	RateLimitRPM   int
	AllowedOrigins []string

	// Observability
	OTLPEndpoint string
}

const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultScorerTimeout  = 5 * time.Second
	DefaultOTPThreshold   = 0.3
	DefaultOpeningBalance = 50000
	DefaultTokenTTL       = 24 * time.Hour
	DefaultRateLimit      = 120
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:     os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		ScorerURL:       os.Getenv("SCORER_URL"),   // Optional, heuristic mode if not set
		ScorerTimeout:   getEnvDuration("SCORER_TIMEOUT", DefaultScorerTimeout),
		OTPThreshold:    getEnvFloat("OTP_THRESHOLD", DefaultOTPThreshold),
		OpeningBalance:  getEnvFloat("OPENING_BALANCE", DefaultOpeningBalance),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenTTL:        getEnvDuration("TOKEN_TTL", DefaultTokenTTL),
		AdminEmail:      getEnv("ADMIN_EMAIL", "admin@fraudshield.local"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		AlertWebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		RateLimitRPM:    int(getEnvInt64("RATE_LIMIT_RPM", int64(DefaultRateLimit))),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitCommaList(origins)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		// Development fallback so the server starts out of the box
		c.JWTSecret = "dev-insecure-secret"
	}

	if c.OTPThreshold <= 0 || c.OTPThreshold >= 1 {
		return fmt.Errorf("OTP_THRESHOLD must be between 0 and 1")
	}

	if c.OpeningBalance < 0 {
		return fmt.Errorf("OPENING_BALANCE must not be negative")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
