package healer

import (
	"context"
	"testing"
	"time"

	"tournament-judge/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return store.New(db)
}

func TestHealPendingTouchesStaleMatch(t *testing.T) {
	st := newTestStore(t)
	if err := st.DB().Create(&store.Match{ID: "m1", GameType: "rockpaperscissors", Status: store.MatchPending}).Error; err != nil {
		t.Fatalf("create match: %v", err)
	}
	// backdate updated_at past the staleness threshold
	old := time.Now().Add(-time.Hour)
	st.DB().Model(&store.Match{}).Where("id = ?", "m1").Update("updated_at", old)

	h := New(st, nil, Config{PendingStale: time.Minute, RunningStale: time.Hour, Interval: time.Minute})
	touched, err := h.healPending(context.Background())
	if err != nil {
		t.Fatalf("healPending: %v", err)
	}
	if touched != 1 {
		t.Fatalf("expected 1 match touched, got %d", touched)
	}
}

func TestHealRunningRequeuesStaleMatch(t *testing.T) {
	st := newTestStore(t)
	if err := st.DB().Create(&store.Match{ID: "m1", GameType: "tictactoe", Status: store.MatchRunning}).Error; err != nil {
		t.Fatalf("create match: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	st.DB().Model(&store.Match{}).Where("id = ?", "m1").Update("updated_at", old)

	h := New(st, nil, Config{PendingStale: time.Hour, RunningStale: time.Minute, Interval: time.Minute})
	requeued, err := h.healRunning(context.Background())
	if err != nil {
		t.Fatalf("healRunning: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("expected 1 match requeued, got %d", requeued)
	}

	m, err := st.GetMatch("m1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if m.Status != store.MatchPending {
		t.Fatalf("expected status pending, got %s", m.Status)
	}
}
