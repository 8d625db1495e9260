package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tournament-judge/internal/game"
	"tournament-judge/internal/game/rockpaperscissors"
	"tournament-judge/internal/store"
)

// recv reads one frame off ch, failing the test if none arrives
// quickly - every send in this package is non-blocking, so a missing
// frame means the code under test never sent it, not that it's slow.
func recv(t *testing.T, ch chan Frame) Frame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	games := map[string]game.Game{"rockpaperscissors": rockpaperscissors.Game{}}
	return NewManager(store.New(db), nil, games)
}

func TestCreateAndJoinRoom(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRoom("room1", "rockpaperscissors", "host1", 2)
	require.NoError(t, err)

	r, reconnecting, err := m.JoinRoom(context.Background(), "room1", "player2")
	require.NoError(t, err)
	require.False(t, reconnecting)
	require.Len(t, r.Players, 2)
}

func TestJoinRoomReportsReconnect(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRoom("room1", "rockpaperscissors", "host1", 2)
	require.NoError(t, err)

	_, _, err = m.JoinRoom(context.Background(), "room1", "host1")
	require.NoError(t, err)
	_, reconnecting, err := m.JoinRoom(context.Background(), "room1", "host1")
	require.NoError(t, err)
	require.True(t, reconnecting)
}

func TestJoinRoomRejectsWhenFull(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRoom("room1", "rockpaperscissors", "host1", 1)
	require.NoError(t, err)

	_, _, err = m.JoinRoom(context.Background(), "room1", "player2")
	require.ErrorIs(t, err, ErrRoomFull)
}

func TestLeaveRoomTransfersHost(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRoom("room1", "rockpaperscissors", "host1", 2)
	require.NoError(t, err)
	_, _, err = m.JoinRoom(context.Background(), "room1", "player2")
	require.NoError(t, err)

	m.mu.RLock()
	r := m.rooms["room1"]
	m.mu.RUnlock()
	r.mu.Lock()
	r.Players[1].Connected = true
	r.mu.Unlock()

	require.NoError(t, m.LeaveRoom("room1", "host1"))
	require.Equal(t, "player2", r.HostID)
}

func TestRoomDeletedWhenEmpty(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRoom("room1", "rockpaperscissors", "host1", 2)
	require.NoError(t, err)

	require.NoError(t, m.LeaveRoom("room1", "host1"))
	m.mu.RLock()
	_, ok := m.rooms["room1"]
	m.mu.RUnlock()
	require.False(t, ok)
}

func TestDisconnectTransfersHostToOnlineSeat(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRoom("room1", "rockpaperscissors", "host1", 2)
	require.NoError(t, err)
	_, _, err = m.JoinRoom(context.Background(), "room1", "player2")
	require.NoError(t, err)

	s1 := newSession("host1", nil)
	s2 := newSession("player2", nil)
	_, err = m.Connect(context.Background(), "room1", "host1", s1)
	require.NoError(t, err)
	_, err = m.Connect(context.Background(), "room1", "player2", s2)
	require.NoError(t, err)

	m.Disconnect("room1", "host1")

	m.mu.RLock()
	r := m.rooms["room1"]
	m.mu.RUnlock()
	r.mu.Lock()
	hostID := r.HostID
	hostIdx := r.playerIndex("host1")
	connected := r.Players[hostIdx].Connected
	r.mu.Unlock()

	require.Equal(t, "player2", hostID)
	require.False(t, connected)
}

func TestDisconnectLeavesHostUnchangedWhenNobodyOnline(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRoom("room1", "rockpaperscissors", "host1", 2)
	require.NoError(t, err)
	_, _, err = m.JoinRoom(context.Background(), "room1", "player2")
	require.NoError(t, err)

	s1 := newSession("host1", nil)
	_, err = m.Connect(context.Background(), "room1", "host1", s1)
	require.NoError(t, err)

	m.Disconnect("room1", "host1")

	m.mu.RLock()
	r := m.rooms["room1"]
	m.mu.RUnlock()
	require.Equal(t, "host1", r.HostID)
}

func TestListenBroadcastsChatAndHandlesLeave(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRoom("room1", "rockpaperscissors", "host1", 2)
	require.NoError(t, err)
	_, _, err = m.JoinRoom(context.Background(), "room1", "player2")
	require.NoError(t, err)

	s1 := newSession("host1", nil)
	s2 := newSession("player2", nil)
	_, err = m.Connect(context.Background(), "room1", "host1", s1)
	require.NoError(t, err)
	_, err = m.Connect(context.Background(), "room1", "player2", s2)
	require.NoError(t, err)

	recv(t, s1.out) // ROOM_STATE
	recv(t, s1.out) // REPLAY_START
	recv(t, s1.out) // PLAYER_JOINED player2
	recv(t, s1.out) // REPLAY_END
	recv(t, s2.out) // ROOM_STATE
	recv(t, s2.out) // REPLAY_START
	recv(t, s2.out) // PLAYER_JOINED player2
	recv(t, s2.out) // REPLAY_END

	go m.Listen("room1", s1)

	s1.In <- Frame{Type: FrameChat, Payload: "hello"}
	chat := recv(t, s2.out)
	require.Equal(t, FrameChat, chat.Type)
	require.Equal(t, "host1 hello", chat.Payload)

	s1.In <- Frame{Type: FrameLeave}
	_, ok := <-s1.Moves
	require.False(t, ok, "Moves should close once LEAVE is processed")

	m.mu.RLock()
	r := m.rooms["room1"]
	m.mu.RUnlock()
	require.Equal(t, "player2", r.HostID)
}

func TestListenForwardsMoveTokensAndClosesMovesOnDisconnect(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRoom("room1", "rockpaperscissors", "host1", 2)
	require.NoError(t, err)
	_, _, err = m.JoinRoom(context.Background(), "room1", "player2")
	require.NoError(t, err)

	s := newSession("host1", nil)
	_, err = m.Connect(context.Background(), "room1", "host1", s)
	require.NoError(t, err)

	go m.Listen("room1", s)

	s.In <- Frame{Type: "ROCK"}
	move := recv(t, s.Moves)
	require.Equal(t, "ROCK", move.Type)

	close(s.In)
	_, ok := <-s.Moves
	require.False(t, ok)

	m.mu.RLock()
	r := m.rooms["room1"]
	m.mu.RUnlock()
	r.mu.Lock()
	connected := r.Players[r.playerIndex("host1")].Connected
	r.mu.Unlock()
	require.False(t, connected)
}

func TestConnectReplaysBracketedHistoryAndGameState(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRoom("room1", "rockpaperscissors", "host1", 2)
	require.NoError(t, err)
	_, _, err = m.JoinRoom(context.Background(), "room1", "player2")
	require.NoError(t, err)

	m.mu.RLock()
	r := m.rooms["room1"]
	m.mu.RUnlock()
	m.appendEvent(r, Frame{Type: gameEventFrameType, Payload: "GAME_INIT 3"})
	m.appendEvent(r, Frame{Type: gameEventFrameType, Payload: "ROUND_RESULT 1 ROCK SCISSORS"})

	s := newSession("host1", nil)
	_, err = m.Connect(context.Background(), "room1", "host1", s)
	require.NoError(t, err)

	require.Equal(t, FrameRoomState, recv(t, s.out).Type)
	require.Equal(t, FrameReplayStart, recv(t, s.out).Type)
	require.Equal(t, FramePlayerJoined, recv(t, s.out).Type)
	state := recv(t, s.out)
	require.Equal(t, "ROUND", state.Type)
	require.Equal(t, "2 3 MOVE", state.Payload)
	require.Equal(t, FrameReplayEnd, recv(t, s.out).Type)
}
