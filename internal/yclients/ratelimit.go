package yclients

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// windowLimiter enforces a sliding-window cap on outbound requests.
// Timestamps are kept in a slice-backed ring: head marks the oldest live
// entry, so pruning is O(1) amortized instead of rescanning the window
// on every check.
type windowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	times  []time.Time
	head   int

	log   *zap.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newWindowLimiter(limit int, window time.Duration, log *zap.Logger) *windowLimiter {
	return &windowLimiter{
		window: window,
		limit:  limit,
		log:    log,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Acquire blocks the caller until one more request fits inside the
// window, records the request time and returns. Only the calling
// goroutine waits; the limiter itself stays unlocked during the sleep.
func (l *windowLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	l.prune(now)

	if l.count() < l.limit {
		l.times = append(l.times, now)
		l.mu.Unlock()
		return nil
	}

	wait := l.window - now.Sub(l.times[l.head])
	if wait < 0 {
		wait = 0
	}
	l.mu.Unlock()

	l.log.Warn("rate limit reached, waiting",
		zap.Duration("wait", wait),
		zap.Int("limit", l.limit),
	)

	if err := l.sleep(ctx, wait); err != nil {
		return err
	}

	// Wait once, then continue: the tracked window collapses to just the
	// current request rather than being re-validated.
	l.mu.Lock()
	l.times = l.times[:0]
	l.head = 0
	l.times = append(l.times, l.now())
	l.mu.Unlock()

	return nil
}

func (l *windowLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	for l.head < len(l.times) && !l.times[l.head].After(cutoff) {
		l.head++
	}
	// Compact once the dead prefix dominates, keeping the slice bounded.
	if l.head > 0 && l.head >= len(l.times)/2 {
		l.times = append(l.times[:0], l.times[l.head:]...)
		l.head = 0
	}
}

func (l *windowLimiter) count() int {
	return len(l.times) - l.head
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
