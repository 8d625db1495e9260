package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tournament-judge/internal/broker"
	"tournament-judge/internal/game"
	"tournament-judge/internal/game/prisonersdilemma"
	"tournament-judge/internal/game/rockpaperscissors"
	"tournament-judge/internal/game/tictactoe"
	"tournament-judge/internal/redis"
	"tournament-judge/internal/sandbox"
	"tournament-judge/internal/store"
	"tournament-judge/internal/worker"
)

func main() {
	sandbox.MaybeRunSandboxInit()

	godotenv.Load()
	cfg := LoadConfig()

	db, err := store.Open(cfg.DBConfig)
	if err != nil {
		log.Fatalf("[WORKER] database connection failed: %v", err)
	}
	st := store.New(db)

	redisClient, err := redis.New(cfg.RedisConfig)
	if err != nil {
		log.Fatalf("[WORKER] redis connection failed: %v", err)
	}
	defer redisClient.Close()
	notifier := store.NewNotifier(redisClient.Client)

	compiler := broker.NewCompileQueue(cfg.CompileWorkDir, cfg.CompilesPerSec, cfg.CompileBurst)

	games := map[string]game.Game{
		"rockpaperscissors": rockpaperscissors.Game{},
		"tictactoe":         tictactoe.Game{},
		"prisonersdilemma":  prisonersdilemma.Game{},
	}

	w := worker.New(st, notifier, compiler, games, cfg.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("[WORKER] starting with concurrency=%d games=%v", cfg.Concurrency, cfg.GameTypes)
	w.Run(ctx)
	log.Println("[WORKER] shut down")
}
