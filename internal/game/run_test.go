package game_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tournament-judge/internal/game"
	"tournament-judge/internal/game/prisonersdilemma"
	"tournament-judge/internal/game/rockpaperscissors"
	"tournament-judge/internal/game/tictactoe"
)

// scriptedPlayer answers with lines from a fixed script, useful for
// feeding a deterministic move sequence into the shared driver.
type scriptedPlayer struct {
	id     string
	script []string
	i      int
}

func (p *scriptedPlayer) ID() string { return p.id }
func (p *scriptedPlayer) Send(ctx context.Context, line string) error { return nil }
func (p *scriptedPlayer) Receive(ctx context.Context, timeout time.Duration) (string, error) {
	if p.i >= len(p.script) {
		return "", context.DeadlineExceeded
	}
	v := p.script[p.i]
	p.i++
	return v, nil
}

func TestRockPaperScissors_RestoreMatchesLiveState(t *testing.T) {
	g := rockpaperscissors.Game{}
	p0 := &scriptedPlayer{id: "a", script: repeat("ROCK", 10)}
	p1 := &scriptedPlayer{id: "b", script: repeat("SCISSORS", 10)}

	results, events := game.Run(context.Background(), g, []game.Player{p0, p1}, time.Second)
	require.Equal(t, game.OutcomeAccepted, results[0].Outcome)
	require.Equal(t, game.OutcomeAccepted, results[1].Outcome)
	require.Greater(t, results[0].Score, results[1].Score, "rock always beats scissors")

	restored, err := g.RestoreFromEvents(events)
	require.NoError(t, err)
	require.True(t, g.IsOver(restored))
	require.Equal(t, g.Scores(restored), []float64{results[0].Score, results[1].Score})
}

func TestTicTacToe_InvalidMoveIsWrongAnswer(t *testing.T) {
	g := tictactoe.Game{}
	// player 0 plays a valid opener, player 1 immediately sends garbage
	p0 := &scriptedPlayer{id: "a", script: []string{"1", "2", "3", "4", "5"}}
	p1 := &scriptedPlayer{id: "b", script: []string{"not-a-cell"}}

	results, _ := game.Run(context.Background(), g, []game.Player{p0, p1}, time.Second)
	require.Equal(t, game.OutcomeWrongAnswer, results[1].Outcome)
	require.Equal(t, game.OutcomeAccepted, results[0].Outcome)
}

func TestTicTacToe_TimeoutIsTimeLimitExceeded(t *testing.T) {
	g := tictactoe.Game{}
	p0 := &scriptedPlayer{id: "a", script: nil} // empty script -> Receive errors immediately
	p1 := &scriptedPlayer{id: "b", script: []string{"1"}}

	results, _ := game.Run(context.Background(), g, []game.Player{p0, p1}, time.Millisecond)
	require.Equal(t, game.OutcomeTimeLimitExceeded, results[0].Outcome)
}

func TestPrisonersDilemma_MutualDefectionScoresLowerThanMutualCooperation(t *testing.T) {
	g := prisonersdilemma.Game{}
	p0 := &scriptedPlayer{id: "a", script: repeat("DEFECT", 10)}
	p1 := &scriptedPlayer{id: "b", script: repeat("DEFECT", 10)}

	results, events := game.Run(context.Background(), g, []game.Player{p0, p1}, time.Second)
	require.Equal(t, results[0].Score, results[1].Score)
	require.True(t, strings.Contains(strings.Join(events, "\n"), "GAME_END"))

	c0 := &scriptedPlayer{id: "a", script: repeat("COOPERATE", 10)}
	c1 := &scriptedPlayer{id: "b", script: repeat("COOPERATE", 10)}
	coopResults, _ := game.Run(context.Background(), g, []game.Player{c0, c1}, time.Second)
	require.Less(t, results[0].Score, coopResults[0].Score)

	restored, err := g.RestoreFromEvents(events)
	require.NoError(t, err)
	require.Equal(t, g.Scores(restored), []float64{results[0].Score, results[1].Score})
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
