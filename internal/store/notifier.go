package store

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Notifier pushes pending-match wakeups over Redis pub/sub: instead of
// depending solely on a fixed polling interval, a worker can block on a
// channel that wakes up as soon as a new match is enqueued for its game.
// The ticker-driven poll stays in place underneath as a fallback (see
// internal/worker), since a missed or delayed pub/sub message must never
// leave a match unclaimed.
type Notifier struct {
	redis *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{redis: client}
}

func pendingMatchChannel(gameType string) string {
	return fmt.Sprintf("judge:pending_matches:%s", gameType)
}

// PublishPendingMatch wakes up any worker subscribed to gameType.
func (n *Notifier) PublishPendingMatch(ctx context.Context, gameType string) {
	if err := n.redis.Publish(ctx, pendingMatchChannel(gameType), "1").Err(); err != nil {
		log.Printf("[NOTIFIER] failed to publish pending match for %s: %v", gameType, err)
	}
}

// SubscribePendingMatches returns a channel that receives a value each
// time PublishPendingMatch is called for gameType. The channel is closed
// when ctx is cancelled.
func (n *Notifier) SubscribePendingMatches(ctx context.Context, gameType string) <-chan struct{} {
	sub := n.redis.Subscribe(ctx, pendingMatchChannel(gameType))
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
					// a wakeup is already pending, no need to queue more
				}
			}
		}
	}()

	return out
}
