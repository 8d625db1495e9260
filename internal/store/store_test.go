package store

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite("")
	require.NoError(t, err)
	return New(db)
}

func insertPendingMatch(t *testing.T, s *Store, gameType string) *Match {
	t.Helper()
	m := &Match{ID: uuid.New().String(), GameType: gameType, Status: MatchPending}
	require.NoError(t, s.db.Create(m).Error)
	return m
}

func TestClaimNextPendingMatch_NothingPending(t *testing.T) {
	s := newTestStore(t)
	claimed, ok, err := s.ClaimNextPendingMatch("rock_paper_scissors")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, claimed)
}

func TestClaimNextPendingMatch_ClaimsExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	insertPendingMatch(t, s, "tic_tac_toe")

	const workers = 8
	var wg sync.WaitGroup
	claims := make(chan *Match, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, ok, err := s.ClaimNextPendingMatch("tic_tac_toe")
			require.NoError(t, err)
			if ok {
				claims <- m
			}
		}()
	}
	wg.Wait()
	close(claims)

	var winners []*Match
	for m := range claims {
		winners = append(winners, m)
	}
	require.Len(t, winners, 1, "exactly one worker should win the claim race")
	require.Equal(t, MatchQueued, winners[0].Status)
}

func TestMarkCompletedThenRequeueRunningIsNoop(t *testing.T) {
	s := newTestStore(t)
	m := insertPendingMatch(t, s, "prisoners_dilemma")

	_, ok, err := s.ClaimNextPendingMatch(m.GameType)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.MarkRunning(m.ID))

	require.NoError(t, s.MarkCompleted(m.ID, nil))

	requeued, err := s.RequeueRunning(m.ID)
	require.NoError(t, err)
	require.False(t, requeued, "a completed match must not be requeued by a stale running sweep")
}

func TestTouchPendingFailsOnceClaimed(t *testing.T) {
	s := newTestStore(t)
	m := insertPendingMatch(t, s, "tic_tac_toe")

	_, ok, err := s.ClaimNextPendingMatch(m.GameType)
	require.NoError(t, err)
	require.True(t, ok)

	touched, err := s.TouchPending(m.ID)
	require.NoError(t, err)
	require.False(t, touched, "a queued match is no longer pending, so touch must not apply")
}
