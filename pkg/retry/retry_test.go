package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts:   attempts,
		BackoffFactor: 2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
	}
}

func TestRun_SuccessOnFirstTry(t *testing.T) {
	r := NewRetrier(fastConfig(3))

	calls := 0
	out := Run(context.Background(), r, func(ctx context.Context, attempt int) Outcome[int] {
		calls++
		return Success(42)
	})

	require.True(t, out.OK())
	assert.Equal(t, 42, out.Value)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, calls)
}

func TestRun_SucceedsOnLastAttempt(t *testing.T) {
	r := NewRetrier(fastConfig(3))

	calls := 0
	out := Run(context.Background(), r, func(ctx context.Context, attempt int) Outcome[string] {
		calls++
		if calls < 3 {
			return Transient[string](errors.New("503"))
		}
		return Success("ok")
	})

	require.True(t, out.OK())
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, 3, out.Attempts)
}

func TestRun_TransientExhausted(t *testing.T) {
	r := NewRetrier(fastConfig(3))
	want := errors.New("timeout")

	calls := 0
	out := Run(context.Background(), r, func(ctx context.Context, attempt int) Outcome[string] {
		calls++
		return Transient[string](want)
	})

	assert.Equal(t, KindTransient, out.Kind)
	assert.ErrorIs(t, out.Err, want)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, out.Attempts)
}

func TestRun_FatalStopsImmediately(t *testing.T) {
	r := NewRetrier(fastConfig(5))

	calls := 0
	out := Run(context.Background(), r, func(ctx context.Context, attempt int) Outcome[string] {
		calls++
		return Fatal[string](errors.New("401 unauthorized"))
	})

	assert.Equal(t, KindFatal, out.Kind)
	assert.Equal(t, 1, calls)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier(&Config{MaxAttempts: 5, BackoffFactor: 2, InitialDelay: time.Second, MaxDelay: time.Second})

	out := Run(ctx, r, func(ctx context.Context, attempt int) Outcome[string] {
		cancel()
		return Transient[string](errors.New("boom"))
	})

	assert.Equal(t, KindTransient, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, 1, out.Attempts)
}

func TestRun_BudgetBoundsTotalWait(t *testing.T) {
	cfg := &Config{
		MaxAttempts:   10,
		BackoffFactor: 2,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      time.Second,
		Budget:        50 * time.Millisecond,
	}
	r := NewRetrier(cfg)

	start := time.Now()
	out := Run(context.Background(), r, func(ctx context.Context, attempt int) Outcome[string] {
		return Transient[string](errors.New("slow"))
	})

	assert.Equal(t, KindTransient, out.Kind)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Less(t, out.Attempts, 10)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetrier_Backoff(t *testing.T) {
	r := NewRetrier(&Config{
		MaxAttempts:   5,
		BackoffFactor: 2,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      300 * time.Millisecond,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 100 * time.Millisecond},
		{attempt: 1, want: 200 * time.Millisecond},
		{attempt: 2, want: 300 * time.Millisecond},
		{attempt: 6, want: 300 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetrier_BackoffJitterBounded(t *testing.T) {
	r := NewRetrier(&Config{
		MaxAttempts:   2,
		BackoffFactor: 2,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		Jitter:        50 * time.Millisecond,
	})

	for i := 0; i < 50; i++ {
		d := r.Backoff(0)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 150*time.Millisecond)
	}
}
