package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tournament-judge/internal/auth"
	"tournament-judge/internal/game"
	"tournament-judge/internal/room"
)

// perTurnTimeout bounds how long an interactive session has to submit a
// move before the match rules it a time limit exceeded. It is longer
// than the worker's 2s per-turn timeout for compiled players.
const perTurnTimeout = 30 * time.Second

// loginTimeout bounds how long a freshly upgraded websocket connection
// has to send its LOGIN frame before the coordinator gives up on it.
const loginTimeout = 10 * time.Second

type Server struct {
	auth    *auth.Service
	manager *room.Manager
	games   map[string]game.Game
}

type createRoomRequest struct {
	GameType string `json:"game_type"`
	Capacity int    `json:"capacity"`
}

// handleCreateRoom creates a waiting room hosted by the caller, identified
// by the bearer token's subject. It's a plain http.HandlerFunc rather
// than a gin handler so it can be wrapped directly by the
// middleware.RateLimiter HTTP middleware before being registered with
// gin via gin.WrapH.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	hostID, err := s.authenticateHTTP(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if _, ok := s.games[req.GameType]; !ok {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("unknown game_type %q", req.GameType))
		return
	}

	created, err := s.manager.CreateRoom(uuid.New().String(), req.GameType, hostID, req.Capacity)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":        created.ID,
		"game_type": created.GameType,
		"host_id":   created.HostID,
		"capacity":  created.Capacity,
	})
}

func (s *Server) authenticateHTTP(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	return s.auth.ValidateToken(token)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// handleWebsocket upgrades the connection, then requires a LOGIN frame
// carrying a JWT before attaching the session to a room seat. Once
// every seat in the room is filled and connected, it starts the match.
func (s *Server) handleWebsocket(c *gin.Context) {
	roomID := c.Query("room")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing room query parameter"})
		return
	}

	session, err := room.Upgrade(c.Writer, c.Request, "")
	if err != nil {
		log.Printf("[ROOMS] websocket upgrade failed: %v", err)
		return
	}

	playerID, err := s.awaitLogin(session)
	if err != nil {
		log.Printf("[ROOMS] login failed for room %s: %v", roomID, err)
		return
	}
	session.PlayerID = playerID

	ctx := c.Request.Context()
	if _, _, err := s.manager.JoinRoom(ctx, roomID, playerID); err != nil {
		log.Printf("[ROOMS] join failed for player %s in room %s: %v", playerID, roomID, err)
		return
	}
	if _, err := s.manager.Connect(ctx, roomID, playerID, session); err != nil {
		log.Printf("[ROOMS] connect failed for player %s in room %s: %v", playerID, roomID, err)
		return
	}

	// Listen owns session.In for the rest of the connection's life: it
	// handles LEAVE/CHAT and forwards move tokens, and notifies the room
	// of a disconnect the instant readPump closes session.In.
	go s.manager.Listen(roomID, session)

	if s.manager.ReadyToStart(roomID) {
		go s.startMatch(roomID)
	}
}

func (s *Server) awaitLogin(session *room.Session) (string, error) {
	select {
	case f, ok := <-session.In:
		if !ok {
			return "", context.Canceled
		}
		if f.Type != room.FrameLogin {
			return "", fmt.Errorf("expected LOGIN frame, got %s", f.Type)
		}
		return s.auth.ValidateToken(f.Payload)
	case <-time.After(loginTimeout):
		return "", context.DeadlineExceeded
	}
}

func (s *Server) startMatch(roomID string) {
	// This goroutine is the only writer of a room's game instance and
	// survives independently of any single player's connection, so it
	// uses a background context rather than a per-request one.
	gameType, ok := s.manager.GameType(roomID)
	if !ok {
		log.Printf("[ROOMS] room %s vanished before match start", roomID)
		return
	}
	g, ok := s.games[gameType]
	if !ok {
		log.Printf("[ROOMS] no game implementation for room %s (type %s), not starting", roomID, gameType)
		return
	}

	results, err := s.manager.StartGame(context.Background(), roomID, g, perTurnTimeout)
	if err != nil {
		log.Printf("[ROOMS] match in room %s failed: %v", roomID, err)
		return
	}
	log.Printf("[ROOMS] match in room %s finished: %v", roomID, results)
}
