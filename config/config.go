package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	FeedStatic    = "static"
	FeedSimulated = "simulated"
)

// Config holds all configuration for the chain board
type Config struct {
	// HTTP server
	Address string
	GinMode string

	// Chain feed
	Underlying      string
	Feed            string
	FeedSeed        int64
	FeedVolatility  float64
	RefreshInterval time.Duration
	ColumnsFile     string

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := &Config{
		Address:         getEnvOrDefault("CHAIN_ADDR", ":4534"),
		GinMode:         getEnvOrDefault("GIN_MODE", "release"),
		Underlying:      getEnvOrDefault("CHAIN_UNDERLYING", "NIFTY"),
		Feed:            strings.ToLower(getEnvOrDefault("CHAIN_FEED", FeedSimulated)),
		FeedSeed:        getEnvInt64OrDefault("CHAIN_FEED_SEED", time.Now().UnixNano()),
		FeedVolatility:  getEnvFloatOrDefault("CHAIN_FEED_VOLATILITY", 0.15),
		RefreshInterval: getEnvDurationOrDefault("CHAIN_REFRESH_INTERVAL", 5*time.Second),
		ColumnsFile:     getEnvOrDefault("CHAIN_COLUMNS_FILE", ""),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
		LogFile:         getEnvOrDefault("LOG_FILE", ""),
		LogMaxSizeMB:    getEnvIntOrDefault("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups:   getEnvIntOrDefault("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays:   getEnvIntOrDefault("LOG_MAX_AGE_DAYS", 14),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup
func (c *Config) Validate() error {
	switch c.Feed {
	case FeedStatic, FeedSimulated:
	default:
		return fmt.Errorf("CHAIN_FEED must be %q or %q, got %q", FeedStatic, FeedSimulated, c.Feed)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("CHAIN_REFRESH_INTERVAL must be positive, got %s", c.RefreshInterval)
	}
	if c.FeedVolatility < 0 || c.FeedVolatility >= 1 {
		return fmt.Errorf("CHAIN_FEED_VOLATILITY must be in [0, 1), got %v", c.FeedVolatility)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64OrDefault(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
