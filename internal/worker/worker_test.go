package worker

import (
	"testing"

	"tournament-judge/internal/game"
	"tournament-judge/internal/store"
)

func TestResultToStoreOutcome(t *testing.T) {
	cases := map[game.Outcome]string{
		game.OutcomeAccepted:          store.ResultAccepted,
		game.OutcomeWrongAnswer:       store.ResultWrongAnswer,
		game.OutcomeTimeLimitExceeded: store.ResultTimeLimitExceeded,
		game.OutcomeRuntimeError:      store.ResultRuntimeError,
	}
	for in, want := range cases {
		if got := resultToStoreOutcome(in); got != want {
			t.Errorf("resultToStoreOutcome(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestReadSourceMissingFile(t *testing.T) {
	if _, err := readSource("/nonexistent/path/does/not/exist.go"); err == nil {
		t.Fatal("expected an error reading a missing source file")
	}
}
