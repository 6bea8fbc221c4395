package srv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, s)
}

type fakeService struct {
	name     string
	rec      *recorder
	startErr error
	block    bool
}

func (f *fakeService) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeService) Shutdown(ctx context.Context) error {
	f.rec.add(f.name)
	return nil
}

func TestRun_CancelShutsDownInReverseOrder(t *testing.T) {
	rec := &recorder{}
	services := []Service{
		&fakeService{name: "store", rec: rec},
		&fakeService{name: "bot", rec: rec, block: true},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, services) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"bot", "store"}, rec.order)
}

func TestRun_StartErrorStopsEverything(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("detector unhealthy")
	services := []Service{
		&fakeService{name: "retention", rec: rec, block: true},
		&fakeService{name: "bot", rec: rec, startErr: boom},
	}

	err := Run(context.Background(), services)

	require.ErrorIs(t, err, boom)
	assert.ElementsMatch(t, []string{"bot", "retention"}, rec.order)
}

func TestNewCleanup(t *testing.T) {
	called := false
	svc := NewCleanup(func() error { called = true; return nil })

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Shutdown(context.Background()))
	assert.True(t, called)
}
