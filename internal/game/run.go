package game

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Run drives a Game to completion against the given players, collecting
// each player's raw response within perTurnTimeout. It returns one
// Result per player (in player-slice order) and the full event log for
// persistence/replay.
//
// A player that times out or sends an unparsable move immediately ends
// the match: that player is marked with the corresponding outcome and
// every other still-active player is scored Accepted with whatever
// Scores(state) reports at the moment of the fault. This mirrors the
// original reference games, where a single bad move from one side
// doesn't require the rest of the field to keep playing out a match that
// can no longer produce a meaningful result.
func Run(ctx context.Context, g Game, players []Player, perTurnTimeout time.Duration) ([]Result, []string) {
	state := g.NewState(len(players))

	for !g.IsOver(state) {
		acting := g.NextToAct(state)
		if len(acting) == 0 {
			break
		}

		moves := make(map[int]Move, len(acting))
		var mu sync.Mutex
		var fault *int
		var faultOutcome Outcome

		var wg sync.WaitGroup
		for _, idx := range acting {
			idx := idx
			wg.Add(1)
			go func() {
				defer wg.Done()
				view := g.EncodeFor(state, idx)
				if err := players[idx].Send(ctx, view); err != nil {
					mu.Lock()
					if fault == nil {
						fault = &idx
						faultOutcome = OutcomeRuntimeError
					}
					mu.Unlock()
					return
				}
				raw, err := players[idx].Receive(ctx, perTurnTimeout)
				if err != nil {
					mu.Lock()
					if fault == nil {
						fault = &idx
						faultOutcome = OutcomeTimeLimitExceeded
					}
					mu.Unlock()
					return
				}
				move, err := g.ParseMove(strings.TrimSpace(raw))
				if err != nil {
					mu.Lock()
					if fault == nil {
						fault = &idx
						faultOutcome = OutcomeWrongAnswer
					}
					mu.Unlock()
					return
				}
				mu.Lock()
				moves[idx] = move
				mu.Unlock()
			}()
		}
		wg.Wait()

		if fault != nil {
			return faultedResults(g, state, players, *fault, faultOutcome), g.EventSource(state)
		}

		next, err := g.Apply(state, moves)
		if err != nil {
			if len(acting) == 1 {
				// A single-actor turn (e.g. tic-tac-toe) that Apply
				// rejects (occupied cell, illegal move) is that
				// player's fault, not an engine bug.
				return faultedResults(g, state, players, acting[0], OutcomeWrongAnswer), g.EventSource(state)
			}
			// A multi-actor round rejected by Apply indicates a
			// contract bug rather than one player's fault; stop here
			// rather than loop forever.
			break
		}
		state = next
	}

	scores := g.Scores(state)
	results := make([]Result, len(players))
	for i := range players {
		score := 0.0
		if i < len(scores) {
			score = scores[i]
		}
		results[i] = Result{Outcome: OutcomeAccepted, Score: score}
	}
	return results, g.EventSource(state)
}

func faultedResults(g Game, state State, players []Player, faultedIdx int, outcome Outcome) []Result {
	scores := g.Scores(state)
	results := make([]Result, len(players))
	for i := range players {
		if i == faultedIdx {
			results[i] = Result{Outcome: outcome, Score: 0}
			continue
		}
		score := 0.0
		if i < len(scores) {
			score = scores[i]
		}
		results[i] = Result{Outcome: OutcomeAccepted, Score: score}
	}
	return results
}
