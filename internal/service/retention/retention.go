// Package retention prunes the message log and session history on a cron
// schedule. The control loop never deletes anything itself.
package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/pkg/log"
)

// Service runs PruneBefore with a cutoff of now minus Days.
type Service struct {
	pruner   core.Pruner
	days     int
	schedule string
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func New(pruner core.Pruner, days int, schedule string) *Service {
	if schedule == "" {
		schedule = "@daily"
	}
	return &Service{
		pruner:   pruner,
		days:     days,
		schedule: schedule,
		now:      time.Now,
	}
}

func (s *Service) Enabled() bool { return s.days > 0 }

func (s *Service) Cutoff() time.Time {
	return s.now().AddDate(0, 0, -s.days)
}

// Start schedules the pruning job and blocks until ctx is done. A disabled
// service returns immediately.
func (s *Service) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	if !s.Enabled() {
		logger.Debug().Msg("retention disabled")
		return nil
	}

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.PruneOnce(ctx); err != nil {
			logger.Error().Err(err).Msg("retention prune failed")
		}
	}); err != nil {
		return fmt.Errorf("retention schedule %q: %w", s.schedule, err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	logger.Info().Int("days", s.days).Str("schedule", s.schedule).Msg("retention scheduled")

	<-ctx.Done()
	return nil
}

// Shutdown stops the scheduler and waits for a running prune to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PruneOnce deletes everything older than the retention window.
func (s *Service) PruneOnce(ctx context.Context) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	cutoff := s.Cutoff()
	n, err := s.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune before %s: %w", cutoff.Format(time.DateOnly), err)
	}
	log.FromCtx(ctx).Info().
		Int64("deleted", n).
		Time("cutoff", cutoff).
		Msg("retention prune")
	return n, nil
}
