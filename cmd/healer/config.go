package main

import (
	"os"
	"strconv"
	"time"

	"tournament-judge/internal/healer"
	"tournament-judge/internal/redis"
	"tournament-judge/internal/store"
)

// Config holds all configuration values for the healer process.
type Config struct {
	DBConfig    store.Config
	RedisConfig redis.Config
	Healer      healer.Config
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() Config {
	return Config{
		DBConfig: store.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "tournament_judge"),
		},
		RedisConfig: redis.Config{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Healer: healer.Config{
			PendingStale: getEnvSeconds("PENDING_STALE_SECONDS", 120),
			RunningStale: getEnvSeconds("RUNNING_STALE_SECONDS", 600),
			Interval:     getEnvSeconds("SWEEP_INTERVAL_SECONDS", 30),
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}
