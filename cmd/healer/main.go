package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tournament-judge/internal/healer"
	"tournament-judge/internal/locks"
	"tournament-judge/internal/redis"
	"tournament-judge/internal/sandbox"
	"tournament-judge/internal/store"
)

func main() {
	sandbox.MaybeRunSandboxInit()

	godotenv.Load()
	cfg := LoadConfig()

	db, err := store.Open(cfg.DBConfig)
	if err != nil {
		log.Fatalf("[HEALER] database connection failed: %v", err)
	}
	st := store.New(db)

	redisClient, err := redis.New(cfg.RedisConfig)
	if err != nil {
		log.Fatalf("[HEALER] redis connection failed: %v", err)
	}
	defer redisClient.Close()
	lockManager := locks.NewLockManager(redisClient.Client)

	h := healer.New(st, lockManager, cfg.Healer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("[HEALER] starting (pending_stale=%s running_stale=%s interval=%s)",
		cfg.Healer.PendingStale, cfg.Healer.RunningStale, cfg.Healer.Interval)
	h.Run(ctx)
	log.Println("[HEALER] shut down")
}
