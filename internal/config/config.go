package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultEndpoint is the public rss2json conversion endpoint.
const DefaultEndpoint = "https://api.rss2json.com/v1/api.json"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port" validate:"required,numeric"`
	Env             string        `json:"env" validate:"oneof=development production test"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gt=0"`
	HTTPTimeout     time.Duration `json:"http_timeout" validate:"gt=0"`

	// Feed conversion endpoint
	UpstreamEndpoint string        `json:"upstream_endpoint" validate:"required,url"`
	UpstreamAPIKey   string        `json:"-"`
	UpstreamCount    int           `json:"upstream_count" validate:"gte=0"`
	UpstreamTimeout  time.Duration `json:"upstream_timeout" validate:"gte=0"`
	FetchDeadline    time.Duration `json:"fetch_deadline" validate:"gt=0"`

	// Viewer state
	RedisURL    string        `json:"redis_url" validate:"omitempty,url"`
	RedisPrefix string        `json:"redis_prefix"`
	SessionTTL  time.Duration `json:"session_ttl" validate:"gt=0"`
	CookieName  string        `json:"cookie_name" validate:"required"`

	// Presentation
	DisplayTimezone string `json:"display_timezone" validate:"required,timezone"`

	// Logging
	LogLevel  string `json:"log_level" validate:"oneof=debug info warn error fatal panic disabled"`
	LogFile   string `json:"log_file"`
	LogPretty bool   `json:"log_pretty"`

	// Security
	AdminAPIKey string `json:"-"`
}

// Load loads configuration from environment variables and validates it
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := FromEnv()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	return &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		// Feed conversion endpoint
		UpstreamEndpoint: getEnv("UPSTREAM_ENDPOINT", DefaultEndpoint),
		UpstreamAPIKey:   getEnv("UPSTREAM_API_KEY", ""),
		UpstreamCount:    getEnvAsInt("UPSTREAM_COUNT", 0),
		UpstreamTimeout:  getEnvAsDuration("UPSTREAM_TIMEOUT", 0),
		FetchDeadline:    getEnvAsDuration("FETCH_DEADLINE", 2*time.Minute),

		// Viewer state
		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "feedviewer:"),
		SessionTTL:  getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		CookieName:  getEnv("COOKIE_NAME", "feedviewer_id"),

		DisplayTimezone: getEnv("DISPLAY_TIMEZONE", "UTC"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),

		// Security
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Location resolves DisplayTimezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.DisplayTimezone)
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %t", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
