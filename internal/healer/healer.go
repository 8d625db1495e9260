// Package healer implements a periodic reconciliation sweep: it finds
// matches stuck in pending or running for too long and nudges them back
// toward progress.
package healer

import (
	"context"
	"log"
	"time"

	"tournament-judge/internal/locks"
	"tournament-judge/internal/room"
	"tournament-judge/internal/store"
)

// Config controls the sweep's staleness thresholds and cadence.
type Config struct {
	// PendingStale is how long a match may sit unclaimed before the
	// sweep considers it merely slow rather than stuck, refreshing its
	// updated_at so it isn't picked up again next sweep.
	PendingStale time.Duration
	// RunningStale is how long a match may sit running before the sweep
	// assumes its worker died and requeues it back to pending.
	RunningStale time.Duration
	// Interval is the time between sweeps.
	Interval time.Duration
}

// DefaultConfig: 2 minutes unclaimed is still just a quiet queue, 10
// minutes running with no progress means the worker is gone.
var DefaultConfig = Config{
	PendingStale: 120 * time.Second,
	RunningStale: 600 * time.Second,
	Interval:     30 * time.Second,
}

const sweepLockKey = "healer:sweep"

// Healer runs the sweep loop. Only one instance's sweep does real work
// at a time across a fleet of healer processes, guarded by a distributed
// lock so restarting matches isn't attempted twice concurrently.
type Healer struct {
	store  *store.Store
	locks  *locks.LockManager
	config Config
}

func New(st *store.Store, lockManager *locks.LockManager, config Config) *Healer {
	return &Healer{store: st, locks: lockManager, config: config}
}

// Run sweeps on Interval until ctx is cancelled. It runs one sweep
// immediately on startup, including the orphaned-room recovery pass,
// before entering its ticker loop.
func (h *Healer) Run(ctx context.Context) {
	if n, err := room.RecoverOrphanedRooms(h.store); err != nil {
		log.Printf("[HEALER] orphaned room recovery failed: %v", err)
	} else if n > 0 {
		log.Printf("[HEALER] recovered %d orphaned room(s)", n)
	}

	h.sweep(ctx)

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

func (h *Healer) sweep(ctx context.Context) {
	lock, err := h.locks.AcquireLock(ctx, sweepLockKey, h.config.Interval)
	if err != nil {
		// Another healer instance is already sweeping, or Redis is
		// briefly unreachable; either way just wait for the next tick.
		return
	}
	defer lock.Release(ctx)

	touched, err := h.healPending(ctx)
	if err != nil {
		log.Printf("[HEALER] pending sweep failed: %v", err)
	}
	requeued, err := h.healRunning(ctx)
	if err != nil {
		log.Printf("[HEALER] running sweep failed: %v", err)
	}
	if touched > 0 || requeued > 0 {
		log.Printf("[HEALER] sweep: touched %d pending, requeued %d running", touched, requeued)
	}
}

// healPending refreshes updated_at on matches that have been pending
// longer than PendingStale, so StaleMatches won't keep reporting them on
// every subsequent sweep. A claim winning the race between the stale
// read and this touch is not an error - TouchPending simply reports
// false and is skipped.
func (h *Healer) healPending(ctx context.Context) (int, error) {
	stale, err := h.store.StaleMatches(store.MatchPending, h.config.PendingStale)
	if err != nil {
		return 0, err
	}
	touched := 0
	for _, m := range stale {
		ok, err := h.store.TouchPending(m.ID)
		if err != nil {
			log.Printf("[HEALER] failed to touch pending match %s: %v", m.ID, err)
			continue
		}
		if ok {
			touched++
		}
	}
	return touched, nil
}

// healRunning requeues matches stuck running longer than RunningStale
// back to pending, assuming the worker that claimed them has died.
func (h *Healer) healRunning(ctx context.Context) (int, error) {
	stale, err := h.store.StaleMatches(store.MatchRunning, h.config.RunningStale)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for _, m := range stale {
		ok, err := h.store.RequeueRunning(m.ID)
		if err != nil {
			log.Printf("[HEALER] failed to requeue running match %s: %v", m.ID, err)
			continue
		}
		if ok {
			requeued++
			log.Printf("[HEALER] requeued stuck match %s (game=%s)", m.ID, m.GameType)
		}
	}
	return requeued, nil
}
