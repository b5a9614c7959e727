package fetcher

import (
	"context"
	"sync"
	"time"
)

// originThrottle spaces request starts against each origin. Reservations are
// taken under the lock; the wait itself happens outside it so slow origins
// never stall fast ones.
type originThrottle struct {
	mu   sync.Mutex
	next map[string]time.Time
}

func newOriginThrottle() *originThrottle {
	return &originThrottle{next: map[string]time.Time{}}
}

// wait reserves the origin's next request slot and blocks until it arrives.
// A zero interval never blocks. Returns early with ctx.Err() on cancellation.
func (t *originThrottle) wait(ctx context.Context, origin string, interval time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}

	t.mu.Lock()
	now := time.Now()
	slot := t.next[origin]
	if slot.Before(now) {
		slot = now
	}
	t.next[origin] = slot.Add(interval)
	t.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
