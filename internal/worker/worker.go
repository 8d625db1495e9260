// Package worker claims pending matches for the game types it's
// configured to run, compiles submissions on demand, drives the match
// through internal/game, and persists the final result.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"tournament-judge/internal/broker"
	"tournament-judge/internal/faults"
	"tournament-judge/internal/game"
	"tournament-judge/internal/store"
)

// pollInterval is the ticker fallback period, kept even though Notifier
// wakes workers immediately on a new match - belt and suspenders against
// a missed pub/sub message.
const pollInterval = 2 * time.Second

// perTurnTimeout bounds how long a worker waits for one player's move
// before ruling a time limit exceeded.
const perTurnTimeout = 2 * time.Second

// Worker claims and executes matches for a fixed set of game types.
type Worker struct {
	store    *store.Store
	notifier *store.Notifier
	compiler *broker.CompileQueue
	games    map[string]game.Game
	capacity *store.CapacityTracker
}

// New builds a Worker. games maps a game type string to the Game
// implementation that drives matches of that type.
func New(st *store.Store, notifier *store.Notifier, compiler *broker.CompileQueue, games map[string]game.Game, concurrency int) *Worker {
	return &Worker{
		store:    st,
		notifier: notifier,
		compiler: compiler,
		games:    games,
		capacity: store.NewCapacityTracker(concurrency),
	}
}

// Run polls for pending matches of every configured game type until ctx
// is cancelled, subscribing to each game type's notification channel so
// a freshly enqueued match is claimed promptly instead of waiting out
// the poll interval.
func (w *Worker) Run(ctx context.Context) {
	wakeups := make(chan struct{}, len(w.games))
	for gameType := range w.games {
		sub := w.notifier.SubscribePendingMatches(ctx, gameType)
		go func() {
			for range sub {
				select {
				case wakeups <- struct{}{}:
				default:
				}
			}
		}()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		w.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wakeups:
		}
	}
}

func (w *Worker) pollOnce(ctx context.Context) {
	for gameType := range w.games {
		if ctx.Err() != nil {
			return
		}
		if !w.capacity.CanAcceptWork() {
			continue
		}
		time.Sleep(w.capacity.ClaimDelay())

		match, claimed, err := w.store.ClaimNextPendingMatch(gameType)
		if err != nil {
			log.Printf("[WORKER] claim poll failed for %s: %v", gameType, err)
			continue
		}
		if !claimed {
			continue
		}

		w.capacity.Acquire()
		log.Printf("[WORKER] claimed match %s (%s)", match.ID, gameType)
		go func(matchID string) {
			defer w.capacity.Release()
			if err := w.executeMatch(ctx, matchID); err != nil {
				log.Printf("[WORKER] match %s failed: %v", matchID, err)
				if markErr := w.store.MarkFailed(matchID, err); markErr != nil {
					log.Printf("[WORKER] failed to record failure for match %s: %v", matchID, markErr)
				}
			}
		}(match.ID)
	}
}

// executeMatch runs one claimed match end to end: mark running, resolve
// each participant's binary (compiling on demand), drive the game, and
// persist the result.
func (w *Worker) executeMatch(ctx context.Context, matchID string) error {
	if err := w.store.MarkRunning(matchID); err != nil {
		return fmt.Errorf("mark match running: %w", err)
	}

	m, err := w.store.GetMatch(matchID)
	if err != nil {
		return fmt.Errorf("load match: %w", err)
	}

	g, ok := w.games[m.GameType]
	if !ok {
		return faults.Infrastructure(fmt.Sprintf("no game implementation registered for %q", m.GameType))
	}

	players := make([]game.Player, 0, len(m.Participants))
	processes := make([]*broker.Process, 0, len(m.Participants))
	defer func() {
		for _, p := range processes {
			p.Kill()
		}
	}()

	for _, participant := range m.Participants {
		binaryPath, err := w.resolveBinary(ctx, participant.SubmissionID)
		if err != nil {
			return fmt.Errorf("resolve submission %s: %w", participant.SubmissionID, err)
		}
		proc, err := broker.SpawnPlayer(participant.SubmissionID, binaryPath)
		if err != nil {
			return fmt.Errorf("spawn player for submission %s: %w", participant.SubmissionID, err)
		}
		processes = append(processes, proc)
		players = append(players, proc)
	}

	results, _ := game.Run(ctx, g, players, perTurnTimeout)

	participants := make([]store.MatchParticipant, len(m.Participants))
	for i, participant := range m.Participants {
		participants[i] = store.MatchParticipant{
			MatchID:      matchID,
			SubmissionID: participant.SubmissionID,
			Seat:         participant.Seat,
			Score:        results[i].Score,
			Result:       resultToStoreOutcome(results[i].Outcome),
		}
	}

	if err := w.store.MarkCompleted(matchID, participants); err != nil {
		return fmt.Errorf("persist match result: %w", err)
	}
	log.Printf("[WORKER] match %s completed", matchID)
	return nil
}

// resolveBinary returns a submission's compiled binary path, compiling
// it on demand the first time it's needed.
func (w *Worker) resolveBinary(ctx context.Context, submissionID string) (string, error) {
	sub, err := w.store.GetSubmission(submissionID)
	if err != nil {
		return "", err
	}
	if sub.CompiledBinaryPath != nil {
		return *sub.CompiledBinaryPath, nil
	}

	source, err := readSource(sub.SourcePath)
	if err != nil {
		return "", err
	}

	binaryPath, err := w.compiler.Compile(ctx, submissionID, sub.Language, source)
	if err != nil {
		if markErr := w.store.MarkRejected(submissionID, err); markErr != nil {
			log.Printf("[WORKER] failed to record rejection for submission %s: %v", submissionID, markErr)
		}
		return "", err
	}

	if err := w.store.MarkCompiled(submissionID, binaryPath); err != nil {
		return "", fmt.Errorf("record compiled binary path: %w", err)
	}
	return binaryPath, nil
}

func resultToStoreOutcome(outcome game.Outcome) string {
	switch outcome {
	case game.OutcomeAccepted:
		return store.ResultAccepted
	case game.OutcomeWrongAnswer:
		return store.ResultWrongAnswer
	case game.OutcomeTimeLimitExceeded:
		return store.ResultTimeLimitExceeded
	case game.OutcomeRuntimeError:
		return store.ResultRuntimeError
	default:
		return store.ResultPending
	}
}
