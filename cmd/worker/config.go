package main

import (
	"os"
	"strconv"

	"tournament-judge/internal/redis"
	"tournament-judge/internal/store"
)

// Config holds all configuration values for the match worker.
type Config struct {
	DBConfig    store.Config
	RedisConfig redis.Config

	GameTypes      []string
	Concurrency    int
	CompileWorkDir string
	CompilesPerSec float64
	CompileBurst   int
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
		GameTypes:      []string{"rockpaperscissors", "tictactoe", "prisonersdilemma"},
		Concurrency:    getEnvInt("WORKER_CONCURRENCY", 4),
		CompileWorkDir: getEnv("COMPILE_WORKDIR", "/tmp/tournament-judge/compile"),
		CompilesPerSec: 2.0,
		CompileBurst:   4,
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
