package room

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tournament-judge/internal/game"
	"tournament-judge/internal/locks"
	"tournament-judge/internal/store"
)

var (
	ErrRoomNotFound = errors.New("room: not found")
	ErrRoomFull     = errors.New("room: at capacity")
	ErrNotHost      = errors.New("room: caller is not the host")
)

// restorationPollInterval and restorationTimeout bound how long a
// goroutine waits for another goroutine's in-flight room restoration:
// poll every 100ms, give up after 10s.
const (
	restorationPollInterval = 100 * time.Millisecond
	restorationTimeout      = 10 * time.Second
)

// Manager is the live registry of rooms: a map of room ID to in-memory
// Room guarded by a single RWMutex, plus a restoring guard set so two
// goroutines racing to load the same room from the database don't both
// do the work. games lets replay reconstruct a room's match state on
// reconnect without the caller having to thread a game.Game through
// every call.
type Manager struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	restoring map[string]struct{}

	store *store.Store
	locks *locks.LockManager
	games map[string]game.Game
}

func NewManager(st *store.Store, lockManager *locks.LockManager, games map[string]game.Game) *Manager {
	return &Manager{
		rooms:     make(map[string]*Room),
		restoring: make(map[string]struct{}),
		store:     st,
		locks:     lockManager,
		games:     games,
	}
}

// CreateRoom makes a new room with hostID as its sole initial member.
func (m *Manager) CreateRoom(id, gameType, hostID string, capacity int) (*Room, error) {
	dbRoom := &store.Room{ID: id, GameType: gameType, Status: store.RoomWaiting, HostID: hostID, Capacity: capacity}
	if err := m.store.DB().Create(dbRoom).Error; err != nil {
		return nil, fmt.Errorf("room: persist new room: %w", err)
	}
	if err := m.store.DB().Create(&store.RoomPlayer{RoomID: id, PlayerID: hostID, Seat: 0, JoinedAt: time.Now()}).Error; err != nil {
		return nil, fmt.Errorf("room: persist host seat: %w", err)
	}

	r := newRoom(id, gameType, hostID, capacity)
	m.mu.Lock()
	m.rooms[id] = r
	m.mu.Unlock()

	log.Printf("[ROOM] created room %s (game=%s host=%s capacity=%d)", id, gameType, hostID, capacity)
	return r, nil
}

// getOrRestore returns the live room for id, lazily restoring it from
// the database if it isn't already in memory. If another goroutine is
// already restoring the same room, this call waits for that instead of
// restoring twice.
func (m *Manager) getOrRestore(ctx context.Context, roomID string) (*Room, error) {
	m.mu.RLock()
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if ok {
		return r, nil
	}

	m.mu.Lock()
	if r, ok := m.rooms[roomID]; ok {
		m.mu.Unlock()
		return r, nil
	}
	if _, already := m.restoring[roomID]; already {
		m.mu.Unlock()
		return m.waitForRestoration(ctx, roomID)
	}
	m.restoring[roomID] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.restoring, roomID)
		m.mu.Unlock()
	}()

	restored, err := m.restoreFromStore(roomID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.rooms[roomID] = restored
	m.mu.Unlock()
	return restored, nil
}

func (m *Manager) waitForRestoration(ctx context.Context, roomID string) (*Room, error) {
	deadline := time.Now().Add(restorationTimeout)
	ticker := time.NewTicker(restorationPollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		m.mu.RLock()
		r, ok := m.rooms[roomID]
		m.mu.RUnlock()
		if ok {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, fmt.Errorf("room: %s: timed out waiting for restoration", roomID)
}

func (m *Manager) restoreFromStore(roomID string) (*Room, error) {
	var dbRoom store.Room
	if err := m.store.DB().First(&dbRoom, "id = ?", roomID).Error; err != nil {
		return nil, ErrRoomNotFound
	}

	var players []store.RoomPlayer
	if err := m.store.DB().Where("room_id = ? AND left_at IS NULL", roomID).Find(&players).Error; err != nil {
		return nil, fmt.Errorf("room: load players for %s: %w", roomID, err)
	}

	r := &Room{
		ID:       dbRoom.ID,
		GameType: dbRoom.GameType,
		HostID:   dbRoom.HostID,
		Capacity: dbRoom.Capacity,
		Status:   dbRoom.Status,
	}
	for _, p := range players {
		r.Players = append(r.Players, &Player{ID: p.PlayerID, Seat: p.Seat})
	}
	log.Printf("[ROOM] restored room %s from store (%d players)", roomID, len(r.Players))
	return r, nil
}

// JoinRoom adds playerID to roomID, or reports a reconnect if they are
// already a member. A new member is only accepted while the room is
// still waiting and has a free seat.
func (m *Manager) JoinRoom(ctx context.Context, roomID, playerID string) (room *Room, reconnecting bool, err error) {
	r, err := m.getOrRestore(ctx, roomID)
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx := r.playerIndex(playerID); idx >= 0 {
		return r, true, nil
	}
	if r.Status != StatusWaiting {
		return nil, false, fmt.Errorf("room: %s is not accepting new players", roomID)
	}
	if len(r.Players) >= r.Capacity {
		return nil, false, ErrRoomFull
	}

	seat := len(r.Players)
	r.Players = append(r.Players, &Player{ID: playerID, Seat: seat})
	if err := m.store.DB().Create(&store.RoomPlayer{RoomID: roomID, PlayerID: playerID, Seat: seat, JoinedAt: time.Now()}).Error; err != nil {
		r.Players = r.Players[:len(r.Players)-1]
		return nil, false, fmt.Errorf("room: persist join: %w", err)
	}

	r.broadcast(playerJoinedFrame(playerID))
	m.appendEvent(r, playerJoinedFrame(playerID))
	return r, false, nil
}

// LeaveRoom removes playerID from roomID. If the departing player was
// host, host transfers to the first remaining connected player, or to
// the first remaining player if none is connected; if the room is left
// empty it is deleted from the live registry.
func (m *Manager) LeaveRoom(roomID, playerID string) error {
	m.mu.RLock()
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	idx := r.playerIndex(playerID)
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	wasHost := r.HostID == playerID
	var hostChanged Frame
	transferredHost := false
	if wasHost && len(r.Players) > 0 {
		newHost := r.Players[0]
		for _, p := range r.Players {
			if p.Connected {
				newHost = p
				break
			}
		}
		r.HostID = newHost.ID
		hostChanged = hostChangedFrame(newHost.ID)
		r.broadcast(hostChanged)
		transferredHost = true
	}
	left := playerLeftFrame(playerID)
	r.broadcast(left)
	empty := len(r.Players) == 0
	r.mu.Unlock()

	m.appendEvent(r, left)
	if transferredHost {
		m.appendEvent(r, hostChanged)
	}

	now := time.Now()
	m.store.DB().Model(&store.RoomPlayer{}).
		Where("room_id = ? AND player_id = ?", roomID, playerID).
		Update("left_at", now)

	if empty {
		m.mu.Lock()
		delete(m.rooms, roomID)
		m.mu.Unlock()
		log.Printf("[ROOM] room %s emptied and removed from registry", roomID)
	}
	return nil
}

// Connect attaches a websocket session to playerID's seat in roomID,
// then replays everything the session missed: room lifecycle history
// plus the game's own reconstructed state for that seat, if a match is
// already underway.
func (m *Manager) Connect(ctx context.Context, roomID, playerID string, session *Session) (*Room, error) {
	r, err := m.getOrRestore(ctx, roomID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	idx := r.playerIndex(playerID)
	if idx < 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("room: player %s is not a member of room %s", playerID, roomID)
	}
	r.Players[idx].Session = session
	r.Players[idx].Connected = true
	seat := r.Players[idx].Seat
	gameType := r.GameType
	r.mu.Unlock()

	session.send(roomStateFrame(r))
	m.replayTo(session, roomID, gameType, seat)
	return r, nil
}

// ReadyToStart reports whether roomID is still waiting to begin and
// every one of its seats is filled and connected, the signal the room
// coordinator uses to kick off StartGame without a separate explicit
// "start" command from the host.
func (m *Manager) ReadyToStart(roomID string) bool {
	m.mu.RLock()
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status == StatusWaiting && len(r.Players) == r.Capacity && r.connectedCount() == r.Capacity
}

// GameType returns roomID's configured game type.
func (m *Manager) GameType(roomID string) (string, bool) {
	m.mu.RLock()
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.GameType, true
}

// Disconnect marks playerID's seat as no longer connected without
// removing them from the room - they may reconnect later. It appends
// PLAYER_LEFT and, if the leaver was host, transfers host to the first
// remaining online seat (HOST_CHANGED). If nobody else is online the
// room simply persists offline, host unchanged, awaiting rejoin.
func (m *Manager) Disconnect(roomID, playerID string) {
	m.mu.RLock()
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	idx := r.playerIndex(playerID)
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	r.Players[idx].Connected = false
	r.Players[idx].Session = nil

	var hostChanged Frame
	transferredHost := false
	if r.HostID == playerID {
		for _, p := range r.Players {
			if p.Connected {
				r.HostID = p.ID
				hostChanged = hostChangedFrame(p.ID)
				r.broadcast(hostChanged)
				transferredHost = true
				break
			}
		}
	}
	left := playerLeftFrame(playerID)
	r.broadcast(left)
	r.mu.Unlock()

	m.appendEvent(r, left)
	if transferredHost {
		m.appendEvent(r, hostChanged)
	}
}

func (m *Manager) appendEvent(r *Room, f Frame) {
	if _, err := m.store.AppendEvent(r.ID, f.String()); err != nil {
		log.Printf("[ROOM] failed to append event for room %s: %v", r.ID, err)
	}
}

// gameEventFrameType tags a room event-log line as belonging to the
// game's own event source (see StartGame) rather than to room
// lifecycle, so replay can tell the two apart.
const gameEventFrameType = "EVENT"

// replayTo sends session a room's full history on (re)connect: its
// lifecycle frames bracketed by REPLAY_START/REPLAY_END, followed by a
// single reconstructed state line for seat, produced by restoring the
// game from its own persisted event source and re-encoding it for that
// seat. A room with no game events yet (match hasn't started) sends
// only the bracketed lifecycle history.
func (m *Manager) replayTo(session *Session, roomID, gameType string, seat int) {
	lifecycle, gameEvents, err := m.loadEvents(roomID)
	if err != nil {
		log.Printf("[ROOM] failed to load events for room %s: %v", roomID, err)
		return
	}

	session.send(replayStartFrame())
	for _, f := range lifecycle {
		session.send(f)
	}
	if len(gameEvents) > 0 {
		if g, ok := m.games[gameType]; ok {
			if state, err := g.RestoreFromEvents(gameEvents); err != nil {
				log.Printf("[ROOM] failed to restore game state for room %s: %v", roomID, err)
			} else {
				session.send(ParseFrame(g.EncodeFor(state, seat)))
			}
		} else {
			log.Printf("[ROOM] no game implementation for type %s, skipping state replay for room %s", gameType, roomID)
		}
	}
	session.send(replayEndFrame())
}

// loadEvents splits roomID's persisted log into room-lifecycle frames,
// replayed verbatim, and the game's own EVENT-tagged lines, which feed
// RestoreFromEvents instead of being sent as-is.
func (m *Manager) loadEvents(roomID string) (lifecycle []Frame, gameEvents []string, err error) {
	events, err := m.store.Events(roomID)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range events {
		f := ParseFrame(e.Payload)
		if f.Type == gameEventFrameType {
			gameEvents = append(gameEvents, f.Payload)
			continue
		}
		lifecycle = append(lifecycle, f)
	}
	return lifecycle, gameEvents, nil
}

// StartGame runs g against every connected player in roomID. The room
// lock is released before the match runs so the room can still accept
// disconnect/reconnect notifications while a long match plays out. A
// one-hour context backstop guards against a game that never reports
// IsOver.
func (m *Manager) StartGame(ctx context.Context, roomID string, g game.Game, perTurnTimeout time.Duration) ([]game.Result, error) {
	m.mu.RLock()
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	if r.Status != StatusWaiting {
		r.mu.Unlock()
		return nil, fmt.Errorf("room: %s already started or finished", roomID)
	}
	players := make([]game.Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.Session == nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("room: player %s has no active session", p.ID)
		}
		players = append(players, sessionPlayer{session: p.Session})
	}
	r.Status = StatusPlaying
	started := gameStartedFrame()
	r.broadcast(started)
	r.mu.Unlock()
	m.appendEvent(r, started)

	runCtx, cancel := context.WithTimeout(ctx, time.Hour)
	defer cancel()

	results, events := game.Run(runCtx, g, players, perTurnTimeout)

	finished := gameFinishedFrame(fmt.Sprintf("%v", results))
	r.mu.Lock()
	r.Status = StatusFinished
	r.broadcast(finished)
	r.mu.Unlock()
	m.appendEvent(r, finished)

	for _, e := range events {
		m.appendEvent(r, Frame{Type: gameEventFrameType, Payload: e})
	}
	return results, nil
}

// Listen runs the dispatch loop for a session already attached to
// roomID via Connect: it consumes frames off session.In for as long as
// the connection lives, handling LEAVE and CHAT itself and forwarding
// everything else (raw move tokens) onto session.Moves for a
// sessionPlayer to read. It returns - and closes session.Moves, so any
// in-progress Receive wakes immediately instead of waiting out its
// timeout - either when the client sends LEAVE or when readPump closes
// session.In because the connection dropped.
func (m *Manager) Listen(roomID string, session *Session) {
	defer close(session.Moves)
	for f := range session.In {
		switch f.Type {
		case FrameChat:
			m.broadcastChat(roomID, session.PlayerID, f.Payload)
		case FrameLeave:
			if err := m.LeaveRoom(roomID, session.PlayerID); err != nil {
				log.Printf("[ROOM] leave failed for player %s in room %s: %v", session.PlayerID, roomID, err)
			}
			return
		default:
			select {
			case session.Moves <- f:
			default:
				log.Printf("[ROOM] dropped move frame for player %s: moves buffer full", session.PlayerID)
			}
		}
	}
	m.Disconnect(roomID, session.PlayerID)
}

// broadcastChat rebroadcasts a CHAT line to every seat in roomID and
// records it in the room's event history so replay can reconstruct it.
func (m *Manager) broadcastChat(roomID, playerID, text string) {
	m.mu.RLock()
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	f := chatFrame(playerID, text)
	r.mu.Lock()
	r.broadcast(f)
	r.mu.Unlock()
	m.appendEvent(r, f)
}

// sessionPlayer adapts a websocket Session to game.Player for a human
// participant connected over a live room.
type sessionPlayer struct {
	session *Session
}

func (p sessionPlayer) ID() string { return p.session.PlayerID }

func (p sessionPlayer) Send(ctx context.Context, line string) error {
	p.session.send(ParseFrame(line))
	return nil
}

func (p sessionPlayer) Receive(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case f, ok := <-p.session.Moves:
		if !ok {
			return "", fmt.Errorf("room: player %s disconnected", p.session.PlayerID)
		}
		return f.String(), nil
	case <-time.After(timeout):
		return "", fmt.Errorf("room: player %s timed out", p.session.PlayerID)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
