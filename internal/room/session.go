package room

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"
)

// allowedOrigins is a comma-separated whitelist read from
// ALLOWED_ORIGINS, defaulting to localhost in development.
var allowedOrigins = loadAllowedOrigins()

func loadAllowedOrigins() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		log.Println("[ROOM] WARNING: ALLOWED_ORIGINS not set, defaulting to localhost:3000")
		return []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		origins = append(origins, strings.TrimSpace(o))
	}
	return origins
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		log.Printf("[ROOM] rejected websocket connection: missing Origin header from %s", r.RemoteAddr)
		return false
	}
	for _, allowed := range allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	log.Printf("[ROOM] rejected websocket connection from unauthorized origin %s (remote %s)", origin, r.RemoteAddr)
	return false
}

var upgrader = websocket.Upgrader{CheckOrigin: checkOrigin}

// Session is one connected client's websocket transport: a player,
// spectator, or referee bridge. frames received are pushed onto In;
// frames queued on the outbound buffer are written by writePump. Moves
// carries the subset of In that Manager.Listen decides are game move
// tokens rather than LEAVE/CHAT control frames - a game.Player reads
// from Moves, never from In directly.
type Session struct {
	PlayerID string
	conn     *websocket.Conn
	out      chan Frame
	In       chan Frame
	Moves    chan Frame
}

func newSession(playerID string, conn *websocket.Conn) *Session {
	return &Session{
		PlayerID: playerID,
		conn:     conn,
		out:      make(chan Frame, 256),
		In:       make(chan Frame, 64),
		Moves:    make(chan Frame, 64),
	}
}

// send queues f for delivery without blocking; if the outbound buffer is
// full the frame is dropped, so a slow client never blocks the room.
func (s *Session) send(f Frame) {
	select {
	case s.out <- f:
	default:
		log.Printf("[ROOM] dropped frame %s for player %s: outbound buffer full", f.Type, s.PlayerID)
	}
}

func (s *Session) readPump() {
	defer close(s.In)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.In <- ParseFrame(string(data))
	}
}

func (s *Session) writePump() {
	defer s.conn.Close()
	for f := range s.out {
		if err := s.conn.WriteMessage(websocket.TextMessage, []byte(f.String())); err != nil {
			return
		}
	}
	s.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Upgrade promotes an HTTP request to a websocket-backed Session for
// playerID, starting its read/write pumps.
func Upgrade(w http.ResponseWriter, r *http.Request, playerID string) (*Session, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	s := newSession(playerID, conn)
	go s.writePump()
	go s.readPump()
	return s, nil
}
