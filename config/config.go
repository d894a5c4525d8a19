package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	API      APIConfig
	Sync     SyncConfig
	Cache    CacheConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type LogConfig struct {
	Level  string
	Format string
}

// APIConfig points at the remote storefront REST API.
type APIConfig struct {
	BaseURL              string
	Timeout              time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
}

type SyncConfig struct {
	Timeout         time.Duration
	RefreshSchedule string // cron expression, empty disables periodic refresh
}

// CacheConfig selects the local cache backend.
type CacheConfig struct {
	Driver string // sqlite, postgres, file
	Path   string // sqlite database file or file-backend directory
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Channel  string
}

// SessionConfig holds the local admin account that signs in without the remote API.
type SessionConfig struct {
	AdminEmail        string
	AdminPasswordHash string
	TokenSecret       string
	TokenExpiry       time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

const (
	CacheDriverSQLite   = "sqlite"
	CacheDriverPostgres = "postgres"
	CacheDriverFile     = "file"
)

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8090"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", ""),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		API: APIConfig{
			BaseURL:              strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000/api/v1"), "/"),
			Timeout:              parseDuration(getEnv("API_TIMEOUT", "15s"), 15*time.Second),
			MaxRetries:           parseInt(getEnv("API_MAX_RETRIES", "2"), 2),
			RetryInitialInterval: parseDuration(getEnv("API_RETRY_INTERVAL", "200ms"), 200*time.Millisecond),
		},
		Sync: SyncConfig{
			Timeout:         parseDuration(getEnv("SYNC_TIMEOUT", "10s"), 10*time.Second),
			RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 5m"),
		},
		Cache: CacheConfig{
			Driver: getEnv("CACHE_DRIVER", CacheDriverSQLite),
			Path:   getEnv("CACHE_PATH", "storefront-cache.db"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
			Channel:  getEnv("REDIS_CHANNEL", "storefront:changes"),
		},
		Session: SessionConfig{
			AdminEmail:        getEnv("LOCAL_ADMIN_EMAIL", ""),
			AdminPasswordHash: getEnv("LOCAL_ADMIN_PASSWORD_HASH", ""),
			TokenSecret:       getEnv("LOCAL_TOKEN_SECRET", "local-dev-secret"),
			TokenExpiry:       parseDuration(getEnv("LOCAL_TOKEN_EXPIRY", "24h"), 24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations the composition root cannot start with.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case CacheDriverSQLite, CacheDriverPostgres, CacheDriverFile:
	default:
		return fmt.Errorf("unsupported CACHE_DRIVER %q", c.Cache.Driver)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("API_MAX_RETRIES must not be negative")
	}
	return nil
}

// LogLevel falls back to debug in development and info elsewhere.
func (c *Config) LogLevel() string {
	if c.Log.Level != "" {
		return c.Log.Level
	}
	if c.Server.Environment == "development" {
		return "debug"
	}
	return "info"
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseSlice(s string) []string {
	result := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
