package main

import (
	"context"
	"fmt"
	"image"

	"github.com/sandevgo/replybot/internal/config"
	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/internal/detector"
	"github.com/sandevgo/replybot/internal/providers/llm"
	"github.com/sandevgo/replybot/internal/service/bot"
	"github.com/sandevgo/replybot/internal/service/responder"
	"github.com/sandevgo/replybot/internal/service/retention"
	"github.com/sandevgo/replybot/internal/storage/sqlite"
	"github.com/sandevgo/replybot/internal/transport/desktop"
	"github.com/sandevgo/replybot/pkg/log"
	"github.com/sandevgo/replybot/pkg/srv"
)

type app struct {
	store     *sqlite.Store
	responder *responder.Responder
	bot       *bot.Bot
	retention *retention.Service
}

// newApp wires the pipeline. dryRun swaps the xdotool input for one that only
// logs and keeps the bot from persisting.
func newApp(ctx context.Context, cfg *config.Config, dryRun bool) (*app, error) {
	logger := log.FromCtx(ctx)

	// 1. Storage
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. AI provider and responder
	ai := llm.NewProvider(ctx, cfg)
	resp := responder.New(ai, store, responder.OptionsFromConfig(cfg))

	// 3. Perception
	dcfg := detector.DefaultConfig()
	dcfg.DiffThreshold = cfg.DiffThreshold
	dcfg.MinConfidence = cfg.OCRMinConfidence
	dcfg.MarkerDetection = cfg.MarkerDetection
	det := detector.New(
		desktop.NewCapturer(cfg.CaptureCommand, cfg.WindowName),
		desktop.NewTesseract(cfg.OCRCommand),
		dcfg,
	)

	// 4. Dispatch
	var input core.Input = desktop.NewXdotool(cfg.WindowName)
	if dryRun {
		input = desktop.DryRun{}
	}

	minDelay, maxDelay := cfg.DelayBounds()
	b := bot.New(
		det,
		resp,
		store,
		input,
		bot.NewPolicy(cfg.Blacklist, cfg.Whitelist, cfg.AutoReplyKeywords, cfg.AIEnabled, cfg.MaxDailyReplies),
		bot.NewDelay(minDelay, maxDelay),
		bot.Options{
			PollInterval:         cfg.PollInterval,
			InputBox:             image.Pt(cfg.InputBoxX, cfg.InputBoxY),
			UseHistory:           cfg.MaxHistoryTurns > 0,
			MaxDetectionFailures: cfg.MaxDetectionFailures,
			MaxStoreFailures:     cfg.MaxStoreFailures,
			DryRun:               dryRun,
		},
	)

	logger.Debug().
		Str("db", cfg.DBPath).
		Bool("ai", ai != nil).
		Bool("dry_run", dryRun).
		Msg("pipeline ready")

	return &app{
		store:     store,
		responder: resp,
		bot:       b,
		retention: retention.New(store, cfg.RetentionDays, cfg.RetentionSchedule),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*sqlite.Store, error) {
	store, err := sqlite.Open(ctx, sqlite.Options{
		Path:           cfg.DBPath,
		PoolSize:       cfg.DBPoolSize,
		AcquireTimeout: cfg.DBAcquireTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	return store, nil
}

// services are shut down in reverse order, so the store closes last.
func (a *app) services() []srv.Service {
	return []srv.Service{
		srv.NewCleanup(a.store.Close),
		a.retention,
		a.bot,
	}
}
