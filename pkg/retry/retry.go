package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Kind classifies the result of one attempt.
type Kind int

const (
	KindSuccess Kind = iota
	// KindTransient failures are retried until attempts or budget run out.
	KindTransient
	// KindFatal failures stop immediately.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	}
	return "unknown"
}

// Outcome is the result of an operation run under a Retrier.
type Outcome[T any] struct {
	Kind     Kind
	Value    T
	Err      error
	Attempts int
}

func Success[T any](v T) Outcome[T] { return Outcome[T]{Kind: KindSuccess, Value: v} }

func Transient[T any](err error) Outcome[T] { return Outcome[T]{Kind: KindTransient, Err: err} }

func Fatal[T any](err error) Outcome[T] { return Outcome[T]{Kind: KindFatal, Err: err} }

func (o Outcome[T]) OK() bool { return o.Kind == KindSuccess }

type Config struct {
	// MaxAttempts counts the first call, so 3 means one call plus two retries.
	MaxAttempts   int
	BackoffFactor float64
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Jitter        time.Duration
	// Budget caps the total wall time across all attempts; zero disables it.
	Budget time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxAttempts:   3,
		BackoffFactor: 2,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		Jitter:        50 * time.Millisecond,
	}
}

type Retrier struct {
	config *Config
	sleep  func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRetrier(config *Config) *Retrier {
	return &Retrier{
		config: config,
		sleep:  sleepCtx,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func NewDefaultRetrier() *Retrier {
	return NewRetrier(NewDefaultConfig())
}

func (r *Retrier) Config() Config {
	return *r.config
}

// Backoff returns the wait before retry number attempt+1:
// InitialDelay * BackoffFactor^attempt capped at MaxDelay, plus jitter.
func (r *Retrier) Backoff(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt))
	if max := float64(r.config.MaxDelay); r.config.MaxDelay > 0 && d > max {
		d = max
	}

	var jitter time.Duration
	if r.config.Jitter > 0 {
		r.mu.Lock()
		jitter = time.Duration(r.rnd.Float64() * float64(r.config.Jitter))
		r.mu.Unlock()
	}
	return time.Duration(d) + jitter
}

// Run calls op until it succeeds, fails fatally, exhausts MaxAttempts or the
// Budget expires. The final outcome is returned with Attempts filled in.
func Run[T any](ctx context.Context, r *Retrier, op func(ctx context.Context, attempt int) Outcome[T]) Outcome[T] {
	if r.config.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Budget)
		defer cancel()
	}

	attempts := r.config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var out Outcome[T]
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome[T]{Kind: KindTransient, Err: errors.Join(out.Err, err), Attempts: attempt}
		}

		out = op(ctx, attempt)
		out.Attempts = attempt + 1
		if out.Kind != KindTransient || attempt == attempts-1 {
			return out
		}

		if err := r.sleep(ctx, r.Backoff(attempt)); err != nil {
			out.Err = errors.Join(out.Err, err)
			return out
		}
	}
	return out
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
