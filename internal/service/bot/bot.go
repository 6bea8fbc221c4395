package bot

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/internal/service/responder"
	"github.com/sandevgo/replybot/pkg/log"
)

type Detector interface {
	Detect(ctx context.Context) (core.Detection, error)
	Failures() int
}

type Responder interface {
	GenerateResponse(ctx context.Context, message, senderID string, useHistory bool) (responder.Reply, error)
}

type Store interface {
	RecordMessage(ctx context.Context, rec core.MessageRecord, turns ...core.HistoryEntry) (int64, error)
	GetDailyCount(ctx context.Context, date string) (int, error)
}

type Options struct {
	PollInterval         time.Duration
	InputBox             image.Point
	SubmitKey            string
	UseHistory           bool
	MaxDetectionFailures int
	MaxStoreFailures     int
	// DryRun decides and generates but neither dispatches nor persists.
	DryRun bool
}

// CycleResult describes what one pass of the pipeline did.
type CycleResult struct {
	ID        string
	Outcome   Outcome
	Detection core.Detection
	Decision  core.Decision
	Reply     responder.Reply
	Delay     time.Duration
	RecordID  int64
}

// Bot is the single control loop: detect, decide, respond, delay,
// dispatch, log. Cycles never overlap.
type Bot struct {
	detector  Detector
	responder Responder
	store     Store
	input     core.Input
	policy    *Policy
	delay     *Delay
	opts      Options
	now       func() time.Time

	state         atomic.Int32
	storeFailures int

	runMu  sync.Mutex
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(
	detector Detector,
	resp Responder,
	store Store,
	input core.Input,
	policy *Policy,
	delay *Delay,
	opts Options,
) *Bot {
	if opts.SubmitKey == "" {
		opts.SubmitKey = "Return"
	}
	if opts.MaxDetectionFailures < 1 {
		opts.MaxDetectionFailures = 1
	}
	if opts.MaxStoreFailures < 1 {
		opts.MaxStoreFailures = 1
	}
	return &Bot{
		detector:  detector,
		responder: resp,
		store:     store,
		input:     input,
		policy:    policy,
		delay:     delay,
		opts:      opts,
		now:       time.Now,
	}
}

func (b *Bot) State() State { return State(b.state.Load()) }

func (b *Bot) setState(ctx context.Context, s State) {
	if prev := State(b.state.Swap(int32(s))); prev != s {
		log.FromCtx(ctx).Debug().Stringer("from", prev).Stringer("to", s).Msg("state")
	}
}

// Start runs cycles every PollInterval until ctx ends, Shutdown is called or
// a failure streak makes the loop unrecoverable.
func (b *Bot) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	b.mu.Lock()
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	defer close(done)
	defer cancel()

	logger := log.FromCtx(ctx)
	logger.Info().
		Dur("poll_interval", b.opts.PollInterval).
		Int("quota", b.policy.Quota()).
		Bool("dry_run", b.opts.DryRun).
		Msg("bot started")

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

loop:
	for {
		if _, err := b.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break loop
			}
			logger.Error().Err(err).Msg("bot halted")
			return err
		}

		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}

	b.setState(ctx, StateStopped)
	logger.Info().Msg("bot stopped")
	return nil
}

// Shutdown stops the loop between stages and waits for the current cycle.
func (b *Bot) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes one cycle. The error is non-nil only when the loop must
// stop: cancellation or an exceeded failure streak.
func (b *Bot) RunOnce(ctx context.Context) (CycleResult, error) {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	res := CycleResult{ID: uuid.NewString()}
	logger := log.FromCtx(ctx).With().Str("cycle", res.ID).Logger()
	ctx = logger.WithContext(ctx)

	if err := ctx.Err(); err != nil {
		return b.abort(ctx, res, err)
	}

	b.setState(ctx, StateCapturing)
	det, err := b.detector.Detect(ctx)
	res.Detection = det
	if err != nil {
		res.Outcome = OutcomeDetectFailed
		failures := b.detector.Failures()
		logger.Warn().
			Err(&core.StageError{Stage: core.StageDetect, Err: err}).
			Int("streak", failures).
			Msg("detection failed")

		if failures >= b.opts.MaxDetectionFailures {
			b.setState(ctx, StateStopped)
			return res, fmt.Errorf("%w: %d consecutive failures: %w", core.ErrDetectorUnhealthy, failures, err)
		}
		b.setState(ctx, StateIdle)
		return res, nil
	}
	if !det.Found {
		res.Outcome = OutcomeNoMessage
		b.setState(ctx, StateIdle)
		return res, nil
	}

	b.setState(ctx, StateMessageDetected)
	logger = logger.With().Str("sender", det.Sender).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Str("text", det.Text).Msg("new message")

	rec := core.MessageRecord{Sender: det.Sender, Message: det.Text, Timestamp: b.now()}

	if err := ctx.Err(); err != nil {
		return b.abort(ctx, res, err)
	}

	// Policy
	b.setState(ctx, StatePolicyCheck)
	count, err := b.store.GetDailyCount(ctx, core.DayOf(rec.Timestamp))
	if err != nil {
		return b.storeFailed(ctx, res, core.StagePolicy, det.Sender, err)
	}
	b.storeOK()

	res.Decision = b.policy.Evaluate(det.Sender, det.Text, count)
	if !res.Decision.Allowed {
		res.Outcome = OutcomeDenied
		logger.Info().Str("reason", string(res.Decision.Reason)).Int("replied_today", count).Msg("reply denied")
		return b.finish(ctx, res, rec)
	}

	if err := ctx.Err(); err != nil {
		return b.abort(ctx, res, err)
	}

	// Respond
	b.setState(ctx, StateResponding)
	reply, err := b.responder.GenerateResponse(ctx, det.Text, det.Sender, b.opts.UseHistory)
	res.Reply = reply
	if err != nil {
		res.Outcome = OutcomeUnanswered
		logger.Error().Err(&core.StageError{Stage: core.StageRespond, Sender: det.Sender, Err: err}).Msg("no reply available")
		return b.finish(ctx, res, rec)
	}
	if reply.Cause != nil {
		logger.Warn().
			Err(&core.StageError{Stage: core.StageRespond, Sender: det.Sender, Err: reply.Cause}).
			Str("intent", string(reply.Intent)).
			Msg("using fallback reply")
	}
	rec.Response = reply.Text

	if err := ctx.Err(); err != nil {
		return b.abort(ctx, res, err)
	}

	// Delay
	b.setState(ctx, StateDelaying)
	res.Delay, err = b.delay.Wait(ctx)
	if err != nil {
		return b.abort(ctx, res, err)
	}

	if b.opts.DryRun {
		res.Outcome = OutcomeDryRun
		logger.Info().Str("reply", reply.Text).Dur("delay", res.Delay).Msg("dry run, reply not sent")
		b.setState(ctx, StateIdle)
		return res, nil
	}

	// Dispatch and log run to completion once started.
	dctx := context.WithoutCancel(ctx)

	b.setState(ctx, StateDispatching)
	if err := b.dispatch(dctx, reply.Text); err != nil {
		res.Outcome = OutcomeDispatchFailed
		logger.Error().
			Err(&core.StageError{Stage: core.StageDispatch, Sender: det.Sender, Err: err}).
			Msg("dispatch failed, message marked unanswered")
	} else {
		res.Outcome = OutcomeReplied
		rec.AutoReplied = true
	}

	return b.finish(dctx, res, rec)
}

func (b *Bot) dispatch(ctx context.Context, text string) error {
	if err := b.input.Click(ctx, b.opts.InputBox); err != nil {
		return fmt.Errorf("%w: focus input: %w", core.ErrDispatch, err)
	}
	if err := b.input.TypeText(ctx, text); err != nil {
		return fmt.Errorf("%w: type reply: %w", core.ErrDispatch, err)
	}
	if err := b.input.PressKey(ctx, b.opts.SubmitKey); err != nil {
		return fmt.Errorf("%w: submit: %w", core.ErrDispatch, err)
	}
	return nil
}

// finish persists the record and returns to IDLE. Session turns are only
// kept for a reply that was actually typed.
func (b *Bot) finish(ctx context.Context, res CycleResult, rec core.MessageRecord) (CycleResult, error) {
	if b.opts.DryRun {
		b.setState(ctx, StateIdle)
		return res, nil
	}

	var turns []core.HistoryEntry
	if rec.AutoReplied {
		turns = res.Reply.Turns
	}

	b.setState(ctx, StateLogging)
	id, err := b.store.RecordMessage(ctx, rec, turns...)
	if err != nil {
		res.Outcome = OutcomeStoreFailed
		return b.storeFailed(ctx, res, core.StageLog, rec.Sender, err)
	}
	b.storeOK()
	res.RecordID = id

	log.FromCtx(ctx).Debug().
		Int64("record", id).
		Bool("auto_replied", rec.AutoReplied).
		Str("outcome", string(res.Outcome)).
		Msg("cycle logged")

	b.setState(ctx, StateIdle)
	return res, nil
}

func (b *Bot) storeFailed(ctx context.Context, res CycleResult, stage, sender string, err error) (CycleResult, error) {
	if res.Outcome == "" {
		res.Outcome = OutcomeStoreFailed
	}
	if err := b.noteStoreFailure(ctx, stage, sender, err); err != nil {
		b.setState(ctx, StateStopped)
		return res, err
	}
	b.setState(ctx, StateIdle)
	return res, nil
}

// noteStoreFailure extends the failure streak and returns ErrStoreUnhealthy
// once it reaches the limit.
func (b *Bot) noteStoreFailure(ctx context.Context, stage, sender string, err error) error {
	b.storeFailures++
	log.FromCtx(ctx).Error().
		Err(&core.StageError{Stage: stage, Sender: sender, Err: err}).
		Int("streak", b.storeFailures).
		Msg("store operation failed")

	if b.storeFailures >= b.opts.MaxStoreFailures {
		return fmt.Errorf("%w: %d consecutive failures: %w", core.ErrStoreUnhealthy, b.storeFailures, err)
	}
	return nil
}

func (b *Bot) storeOK() { b.storeFailures = 0 }

func (b *Bot) abort(ctx context.Context, res CycleResult, err error) (CycleResult, error) {
	res.Outcome = OutcomeAborted
	if res.Detection.Found {
		log.FromCtx(ctx).Info().Msg("shutdown before dispatch, reply not sent")
	}
	b.setState(ctx, StateStopped)
	return res, err
}
