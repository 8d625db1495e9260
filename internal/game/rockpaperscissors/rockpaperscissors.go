// Package rockpaperscissors implements game.Game for a best-of-N rock
// paper scissors match between exactly two players: a random number of
// rounds is chosen once at match start, both players move simultaneously
// each round, and state is always reconstructible by replaying round
// results rather than trusting a running total.
package rockpaperscissors

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"tournament-judge/internal/game"
)

const (
	minRounds = 3
	maxRounds = 7
)

type move string

const (
	rock     move = "ROCK"
	paper    move = "PAPER"
	scissors move = "SCISSORS"
)

type roundResult struct {
	p0, p1 move
}

type state struct {
	totalRounds int
	rounds      []roundResult
	finished    bool
}

// Game is the stateless rock-paper-scissors referee. It carries no
// fields of its own; all per-match data lives in the opaque state value
// the driver threads through Apply.
type Game struct{}

func (Game) NewState(playerCount int) game.State {
	total := minRounds + rand.Intn(maxRounds-minRounds+1)
	return &state{totalRounds: total}
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
	return fmt.Sprintf("ROUND %d %d MOVE", len(st.rounds)+1, st.totalRounds)
}

func (Game) ParseMove(raw string) (game.Move, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(rock):
		return rock, nil
	case string(paper):
		return paper, nil
	case string(scissors):
		return scissors, nil
	default:
		return nil, fmt.Errorf("unrecognized move %q, expected ROCK, PAPER or SCISSORS", raw)
	}
}

func (Game) Apply(s game.State, moves map[int]game.Move) (game.State, error) {
	st := s.(*state)
	m0, ok0 := moves[0].(move)
	m1, ok1 := moves[1].(move)
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("missing move for round %d", len(st.rounds)+1)
	}
	next := &state{totalRounds: st.totalRounds, rounds: append(append([]roundResult{}, st.rounds...), roundResult{m0, m1})}
	if len(next.rounds) >= next.totalRounds {
		next.finished = true
	}
	return next, nil
}

func (Game) IsOver(s game.State) bool {
	return s.(*state).finished
}

func (Game) Scores(s game.State) []float64 {
	st := s.(*state)
	s0, s1 := tally(st.rounds)
	return []float64{float64(s0), float64(s1)}
}

func tally(rounds []roundResult) (int, int) {
	var s0, s1 int
	for _, r := range rounds {
		switch winner(r.p0, r.p1) {
		case 0:
			s0++
		case 1:
			s1++
		}
	}
	return s0, s1
}

// winner returns 0 if p0 wins the round, 1 if p1 wins, -1 on a tie.
func winner(a, b move) int {
	if a == b {
		return -1
	}
	beats := map[move]move{rock: scissors, paper: rock, scissors: paper}
	if beats[a] == b {
		return 0
	}
	return 1
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
			st.rounds = append(st.rounds, roundResult{move(fields[2]), move(fields[3])})
		case "GAME_END":
			st.finished = true
		}
	}
	if len(st.rounds) >= st.totalRounds && st.totalRounds > 0 {
		st.finished = true
	}
	return st, nil
}
