package responder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandevgo/replybot/internal/core"
)

// RateLimiter is a fixed-window request counter. Wait blocks until the
// window has room instead of failing.
type RateLimiter struct {
	maxRequests int
	window      time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	windowStart time.Time
	count       int
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Allow takes a slot if one is free in the current window.
func (l *RateLimiter) Allow() bool {
	ok, _ := l.reserve()
	return ok
}

// Wait takes a slot, sleeping until the window resets when it is full.
// It fails with core.ErrRateLimitExceeded when ctx ends first or its
// deadline falls before the reset.
func (l *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, wait := l.reserve()
		if ok {
			return nil
		}

		if deadline, has := ctx.Deadline(); has && time.Until(deadline) < wait {
			return fmt.Errorf("%w: window resets in %s, beyond the deadline", core.ErrRateLimitExceeded, wait.Round(time.Millisecond))
		}
		if err := l.sleep(ctx, wait); err != nil {
			return fmt.Errorf("%w: %w", core.ErrRateLimitExceeded, err)
		}
	}
}

func (l *RateLimiter) reserve() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}

	if l.count < l.maxRequests {
		l.count++
		return true, 0
	}
	return false, l.window - now.Sub(l.windowStart)
}

// Usage reports the current window state.
func (l *RateLimiter) Usage() (used, limit int, resetIn time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		return 0, l.maxRequests, 0
	}
	return l.count, l.maxRequests, l.window - now.Sub(l.windowStart)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
