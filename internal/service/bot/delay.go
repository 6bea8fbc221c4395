package bot

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Delay samples a uniform wait in [min, max] between decision and dispatch.
type Delay struct {
	min, max time.Duration
	sleep    func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewDelay(min, max time.Duration) *Delay {
	if max < min {
		max = min
	}
	return &Delay{
		min:   min,
		max:   max,
		sleep: sleepCtx,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d *Delay) Sample() time.Duration {
	span := int64(d.max - d.min)
	if span <= 0 {
		return d.min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.min + time.Duration(d.rnd.Int63n(span+1))
}

// Wait sleeps for a sampled delay and returns it. It stops early with the
// context error on cancellation.
func (d *Delay) Wait(ctx context.Context) (time.Duration, error) {
	wait := d.Sample()
	if err := d.sleep(ctx, wait); err != nil {
		return wait, err
	}
	return wait, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
