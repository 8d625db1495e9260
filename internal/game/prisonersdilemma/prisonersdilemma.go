// Package prisonersdilemma implements game.Game for the iterated
// prisoner's dilemma between exactly two players: both choose COOPERATE
// or DEFECT simultaneously each round for a fixed number of rounds, and
// scores accumulate under the standard payoff matrix.
package prisonersdilemma

import (
	"fmt"
	"strconv"
	"strings"

	"tournament-judge/internal/game"
)

const defaultRounds = 10

type choice string

const (
	cooperate choice = "COOPERATE"
	defect    choice = "DEFECT"
)

type roundResult struct {
	p0, p1 choice
}

type state struct {
	totalRounds int
	rounds      []roundResult
	finished    bool
}

type Game struct{}

func (Game) NewState(playerCount int) game.State {
	return &state{totalRounds: defaultRounds}
}

func (Game) NextToAct(s game.State) []int {
	st := s.(*state)
	if st.finished || len(st.rounds) >= st.totalRounds {
		return nil
	}
	return []int{0, 1}
}

func (Game) EncodeFor(s game.State, player int) string {
	st := s.(*state)
	opponent := 1 - player
	var b strings.Builder
	fmt.Fprintf(&b, "ROUND %d %d", len(st.rounds)+1, st.totalRounds)
	for _, r := range st.rounds {
		mine, theirs := r.p0, r.p1
		if player == 1 {
			mine, theirs = r.p1, r.p0
		}
		fmt.Fprintf(&b, " %s,%s", mine, theirs)
	}
	_ = opponent
	return b.String()
}

func (Game) ParseMove(raw string) (game.Move, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(cooperate):
		return cooperate, nil
	case string(defect):
		return defect, nil
	default:
		return nil, fmt.Errorf("unrecognized move %q, expected COOPERATE or DEFECT", raw)
	}
}

func (Game) Apply(s game.State, moves map[int]game.Move) (game.State, error) {
	st := s.(*state)
	m0, ok0 := moves[0].(choice)
	m1, ok1 := moves[1].(choice)
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("missing move for round %d", len(st.rounds)+1)
	}
	next := &state{totalRounds: st.totalRounds, rounds: append(append([]roundResult{}, st.rounds...), roundResult{m0, m1})}
	if len(next.rounds) >= next.totalRounds {
		next.finished = true
	}
	return next, nil
}

func (Game) IsOver(s game.State) bool { return s.(*state).finished }

func (Game) Scores(s game.State) []float64 {
	st := s.(*state)
	s0, s1 := tally(st.rounds)
	return []float64{float64(s0), float64(s1)}
}

// payoff returns (p0 score, p1 score) for one round under the standard
// prisoner's dilemma matrix: mutual cooperation beats mutual defection,
// but defecting against a cooperator beats mutual cooperation.
func payoff(p0, p1 choice) (int, int) {
	switch {
	case p0 == cooperate && p1 == cooperate:
		return 3, 3
	case p0 == defect && p1 == defect:
		return 1, 1
	case p0 == defect && p1 == cooperate:
		return 5, 0
	default: // p0 == cooperate && p1 == defect
		return 0, 5
	}
}

func tally(rounds []roundResult) (int, int) {
	var s0, s1 int
	for _, r := range rounds {
		a, b := payoff(r.p0, r.p1)
		s0 += a
		s1 += b
	}
	return s0, s1
}

func (Game) EventSource(s game.State) []string {
	st := s.(*state)
	events := []string{fmt.Sprintf("GAME_INIT %d", st.totalRounds)}
	for i, r := range st.rounds {
		events = append(events, fmt.Sprintf("ROUND_RESULT %d %s %s", i+1, r.p0, r.p1))
	}
	if st.finished {
		s0, s1 := tally(st.rounds)
		events = append(events, fmt.Sprintf("GAME_END %d %d", s0, s1))
	}
	return events
}

func (Game) RestoreFromEvents(events []string) (game.State, error) {
	st := &state{}
	for _, line := range events {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "GAME_INIT":
			total, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("bad GAME_INIT line %q: %w", line, err)
			}
			st.totalRounds = total
		case "ROUND_RESULT":
			if len(fields) != 4 {
				return nil, fmt.Errorf("bad ROUND_RESULT line %q", line)
			}
			st.rounds = append(st.rounds, roundResult{choice(fields[2]), choice(fields[3])})
		case "GAME_END":
			st.finished = true
		}
	}
	if len(st.rounds) >= st.totalRounds && st.totalRounds > 0 {
		st.finished = true
	}
	return st, nil
}
