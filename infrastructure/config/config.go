package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Persistence. Driver is "dynamodb" or "memory"; memory is intended
	// for development and tests only.
	PersistenceDriver string
	AWSRegion         string
	MapsTable         string
	UsersTable        string
	OwnerIndexName    string
	EmailIndexName    string

	// Authentication
	JWTSecret string
	JWTIssuer string
	JWTExpiry time.Duration

	// Logging and features
	LogLevel      string
	EnableCORS    bool
	EnableMetrics bool

	// AllowedOrigins for browser clients.
	AllowedOrigins []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":5001"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		PersistenceDriver: getEnv("PERSISTENCE_DRIVER", "dynamodb"),
		AWSRegion:         getEnv("AWS_REGION", "us-west-2"),
		MapsTable:         getEnv("MAPS_TABLE", "mindlink-maps"),
		UsersTable:        getEnv("USERS_TABLE", "mindlink-users"),
		OwnerIndexName:    getEnv("OWNER_INDEX_NAME", "OwnerIndex"),
		EmailIndexName:    getEnv("EMAIL_INDEX_NAME", "EmailIndex"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "mindlink-backend"),
		JWTExpiry: getEnvDuration("JWT_EXPIRY", 24*time.Hour),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),

		AllowedOrigins: []string{getEnv("ALLOWED_ORIGIN", "*")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.PersistenceDriver {
	case "dynamodb", "memory":
	default:
		return fmt.Errorf("unknown PERSISTENCE_DRIVER %q", c.PersistenceDriver)
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.PersistenceDriver == "memory" {
			return fmt.Errorf("memory persistence is not allowed in production")
		}
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
