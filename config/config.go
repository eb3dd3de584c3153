// Package config loads hosting-application configuration from the
// environment, with .env support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Gateway  GatewayConfig
	Bot      BotConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Logging  LoggingConfig
}

type GatewayConfig struct {
	BaseURL           string
	WSURL             string
	RequestsPerSecond int
	RequestTimeout    time.Duration
}

type BotConfig struct {
	Prefixes            []string
	AutoDefer           time.Duration
	DispatchConcurrency int
	DefaultLocale       string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// Enabled switches the cooldown manager to the shared Redis backend.
	Enabled bool
}

type PostgresConfig struct {
	DSN string
	// Enabled switches localisation overrides to the Postgres store.
	Enabled bool
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Gateway: GatewayConfig{
			BaseURL:           getEnv("GATEWAY_BASE_URL", "http://localhost:3000"),
			WSURL:             getEnv("GATEWAY_WS_URL", "ws://localhost:3000/ws"),
			RequestsPerSecond: getEnvInt("GATEWAY_REQUESTS_PER_SECOND", 25),
			RequestTimeout:    getEnvDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),
		},
		Bot: BotConfig{
			Prefixes:            parseCommaSeparated(getEnv("BOT_PREFIXES", "!")),
			AutoDefer:           getEnvDuration("BOT_AUTO_DEFER", 2*time.Second),
			DispatchConcurrency: getEnvInt("BOT_DISPATCH_CONCURRENCY", 0),
			DefaultLocale:       getEnv("BOT_DEFAULT_LOCALE", "en"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
		},
		Postgres: PostgresConfig{
			DSN:     getEnv("POSTGRES_DSN", ""),
			Enabled: getEnvBool("POSTGRES_ENABLED", false),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if c.Gateway.WSURL == "" {
		return fmt.Errorf("GATEWAY_WS_URL is required")
	}
	if len(c.Bot.Prefixes) == 0 {
		return fmt.Errorf("BOT_PREFIXES is required")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when POSTGRES_ENABLED is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
