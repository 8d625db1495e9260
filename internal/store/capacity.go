package store

import (
	"math/rand"
	"sync/atomic"
	"time"
)

// CapacityTracker bounds how many matches this worker process will run
// concurrently and jitters the delay before each claim attempt, so that
// many worker processes racing the same pending set don't all hit the
// database in lockstep.
type CapacityTracker struct {
	limit   int64
	inFlight int64
}

func NewCapacityTracker(limit int) *CapacityTracker {
	if limit <= 0 {
		limit = 1
	}
	return &CapacityTracker{limit: int64(limit)}
}

// CanAcceptWork reports whether this worker has a free slot right now.
func (c *CapacityTracker) CanAcceptWork() bool {
	return atomic.LoadInt64(&c.inFlight) < c.limit
}

// Acquire reserves a slot; call Release when the match finishes.
func (c *CapacityTracker) Acquire() { atomic.AddInt64(&c.inFlight, 1) }
func (c *CapacityTracker) Release() { atomic.AddInt64(&c.inFlight, -1) }

func (c *CapacityTracker) InFlight() int { return int(atomic.LoadInt64(&c.inFlight)) }

// ClaimDelay returns a small jittered delay to sleep before attempting a
// claim, scaled by how full this worker already is: a worker near
// capacity backs off harder, leaving room for emptier workers to win the
// race on the next pending match.
func (c *CapacityTracker) ClaimDelay() time.Duration {
	fill := float64(c.InFlight()) / float64(c.limit)
	base := 10 + fill*90 // 10ms..100ms
	jitter := rand.Float64() * base * 0.5
	return time.Duration(base+jitter) * time.Millisecond
}
