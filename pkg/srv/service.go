package srv

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/replybot/pkg/log"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Run starts every service and blocks until ctx is cancelled or one of them
// returns an error. Services are shut down in reverse order and the first
// start error is returned.
func Run(ctx context.Context, services []Service) error {
	logger := log.FromCtx(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for _, service := range services {
		g.Go(func() error {
			if err := service.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%T: %w", service, err)
			}
			return nil
		})
	}

	// Services that return nil from Start still run until shutdown.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	runErr := g.Wait()
	if runErr != nil {
		logger.Error().Err(runErr).Msg("service failed, shutting down")
	}

	// Shutdown gets a fresh context so cleanup is not cut short.
	shutdownCtx := context.WithoutCancel(ctx)
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msgf("%T failed to shutdown", services[i])
		}
	}
	return runErr
}
