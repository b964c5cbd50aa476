package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Cache    CacheConfig
	Events   EventsConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	BaseURL         string
}

// DatabaseConfig holds Postgres pool and migration configuration.
type DatabaseConfig struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	ConnectRetries     int
	SlowQueryThreshold time.Duration
	MigrationsPath     string
}

// AuthConfig holds session token configuration.
type AuthConfig struct {
	JWTSecret  string
	JWTExpiry  time.Duration
	BCryptCost int
}

// CacheConfig holds Redis cache configuration. The cache is optional;
// with Enabled false every read goes straight to the database.
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	TTL      time.Duration
}

// EventsConfig tunes the in-process event bus.
type EventsConfig struct {
	BufferSize  int
	WorkerCount int
}

// LoggingConfig selects logger construction.
type LoggingConfig struct {
	Level       string
	Development bool
}

// Load reads configuration from the environment. A local .env file is
// honored when present; missing values fall back to defaults suitable
// for development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("HOST", "0.0.0.0"),
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ReadTimeout:     getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			GracefulTimeout: getDuration("SERVER_GRACEFUL_TIMEOUT", 30*time.Second),
			BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxOpenConns:       getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       getInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime:    getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime:    getDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
			ConnectRetries:     getInt("DB_CONNECT_RETRIES", 5),
			SlowQueryThreshold: getDuration("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
			MigrationsPath:     getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			JWTExpiry:  getDuration("JWT_EXPIRY", 24*time.Hour),
			BCryptCost: getInt("BCRYPT_COST", 12),
		},
		Cache: CacheConfig{
			Enabled:  getBool("CACHE_ENABLED", false),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
			TTL:      getDuration("CACHE_TTL", 5*time.Minute),
		},
		Events: EventsConfig{
			BufferSize:  getInt("EVENT_BUFFER_SIZE", 1024),
			WorkerCount: getInt("EVENT_WORKER_COUNT", 4),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		if c.Server.Environment == "production" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.Auth.JWTSecret = "development-secret-do-not-use"
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
