package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"tournament-judge/internal/auth"
	"tournament-judge/internal/game"
	"tournament-judge/internal/game/prisonersdilemma"
	"tournament-judge/internal/game/rockpaperscissors"
	"tournament-judge/internal/game/tictactoe"
	"tournament-judge/internal/locks"
	"tournament-judge/internal/middleware"
	"tournament-judge/internal/redis"
	"tournament-judge/internal/room"
	"tournament-judge/internal/sandbox"
	"tournament-judge/internal/store"
)

func main() {
	sandbox.MaybeRunSandboxInit()

	godotenv.Load()
	cfg := LoadConfig()

	db, err := store.Open(cfg.DBConfig)
	if err != nil {
		log.Fatalf("[ROOMS] database connection failed: %v", err)
	}
	st := store.New(db)

	redisClient, err := redis.New(cfg.RedisConfig)
	if err != nil {
		log.Fatalf("[ROOMS] redis connection failed: %v", err)
	}
	defer redisClient.Close()
	lockManager := locks.NewLockManager(redisClient.Client)

	if n, err := room.RecoverOrphanedRooms(st); err != nil {
		log.Printf("[ROOMS] orphaned room recovery failed: %v", err)
	} else if n > 0 {
		log.Printf("[ROOMS] recovered %d orphaned room(s) on startup", n)
	}

	games := map[string]game.Game{
		"rockpaperscissors": rockpaperscissors.Game{},
		"tictactoe":         tictactoe.Game{},
		"prisonersdilemma":  prisonersdilemma.Game{},
	}
	server := &Server{
		auth:    auth.NewService(cfg.JWTSecret),
		manager: room.NewManager(st, lockManager, games),
		games:   games,
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400 * time.Second,
	}))
	roomLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig)
	r.POST("/api/rooms", gin.WrapH(roomLimiter.HTTPMiddleware(http.HandlerFunc(server.handleCreateRoom))))
	r.GET("/ws", server.handleWebsocket)

	httpServer := &http.Server{Addr: ":" + cfg.ServerPort, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[ROOMS] starting on port %s", cfg.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[ROOMS] server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[ROOMS] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ROOMS] graceful shutdown failed: %v", err)
	}
}
