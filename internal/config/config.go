package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv        string
	Port          string
	DatabaseURL   string
	RedisURL      string // empty = single-instance mode, no cross-instance fan-out
	SessionSecret string
	LogLevel      string
	LogFormat     string

	HeartbeatInterval    time.Duration
	MaxClientsPerChannel int
	MaxStreamConnections int64
	StreamRatePerSecond  float64
	StreamRateBurst      int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	var err error
	cfg.HeartbeatInterval, err = getDurationEnv("HEARTBEAT_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}

	cfg.MaxClientsPerChannel, err = getIntEnv("MAX_CLIENTS_PER_CHANNEL", 50)
	if err != nil {
		return nil, err
	}
	maxStreams, err := getIntEnv("MAX_STREAM_CONNECTIONS", 1000)
	if err != nil {
		return nil, err
	}
	cfg.MaxStreamConnections = int64(maxStreams)

	rate, err := getIntEnv("STREAM_RATE_PER_SECOND", 5)
	if err != nil {
		return nil, err
	}
	cfg.StreamRatePerSecond = float64(rate)

	cfg.StreamRateBurst, err = getIntEnv("STREAM_RATE_BURST", 10)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 30s): %w", key, err)
	}
	return value, nil
}
