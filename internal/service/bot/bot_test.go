package bot

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/internal/service/responder"
	"github.com/sandevgo/replybot/internal/storage/sqlite"
	"github.com/sandevgo/replybot/pkg/retry"
)

type detectStep struct {
	det core.Detection
	err error
}

type fakeDetector struct {
	mu       sync.Mutex
	steps    []detectStep
	failures int
}

func (f *fakeDetector) push(sender, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, detectStep{det: core.Detection{Found: true, Sender: sender, Text: text}})
}

func (f *fakeDetector) Detect(context.Context) (core.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.steps) == 0 {
		f.failures = 0
		return core.Detection{}, nil
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	if step.err != nil {
		f.failures++
	} else {
		f.failures = 0
	}
	return step.det, step.err
}

func (f *fakeDetector) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}

type fakeResponder struct {
	reply responder.Reply
	err   error
	calls int
}

func (f *fakeResponder) GenerateResponse(_ context.Context, message, _ string, _ bool) (responder.Reply, error) {
	f.calls++
	if f.err != nil || f.reply.Text != "" {
		return f.reply, f.err
	}
	return responder.Reply{Text: "re: " + message, Source: responder.SourceModel}, nil
}

type fakeInput struct {
	mu     sync.Mutex
	clicks []image.Point
	typed  []string
	keys   []string
	err    error
}

func (f *fakeInput) Click(_ context.Context, p image.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, p)
	return nil
}

func (f *fakeInput) TypeText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeInput) PressKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeInput) Typed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.typed...)
}

type brokenStore struct{}

func (brokenStore) RecordMessage(context.Context, core.MessageRecord, ...core.HistoryEntry) (int64, error) {
	return 0, core.ErrPoolExhausted
}

func (brokenStore) GetDailyCount(context.Context, string) (int, error) {
	return 0, core.ErrPoolExhausted
}

type harness struct {
	bot    *Bot
	det    *fakeDetector
	resp   *fakeResponder
	input  *fakeInput
	store  *sqlite.Store
	policy *Policy
	opts   Options
}

func newHarness(t *testing.T, policy *Policy, mutate func(*Options)) *harness {
	t.Helper()
	store, err := sqlite.Open(context.Background(), sqlite.Options{
		Path:           filepath.Join(t.TempDir(), "bot.db"),
		PoolSize:       2,
		AcquireTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	opts := Options{
		PollInterval:         10 * time.Millisecond,
		InputBox:             image.Pt(800, 700),
		UseHistory:           true,
		MaxDetectionFailures: 3,
		MaxStoreFailures:     2,
	}
	if mutate != nil {
		mutate(&opts)
	}

	h := &harness{
		det:    &fakeDetector{},
		resp:   &fakeResponder{},
		input:  &fakeInput{},
		store:  store,
		policy: policy,
		opts:   opts,
	}
	h.bot = New(h.det, h.resp, store, h.input, policy, instantDelay(), opts)
	return h
}

type cannedAI struct{ reply string }

func (c cannedAI) Chat(context.Context, []core.Message) (string, error) { return c.reply, nil }

func (cannedAI) Model() string { return "canned" }

// withResponder swaps the fake for a real responder over the same store.
func (h *harness) withResponder(reply string) {
	resp := responder.New(cannedAI{reply: reply}, h.store, responder.Options{
		MaxHistoryTurns: 10,
		EnableCache:     true,
		CacheSize:       8,
		Retry:           retry.Config{MaxAttempts: 1},
		Tokens:          responder.EstimateCounter{},
	})
	h.bot = New(h.det, resp, h.store, h.input, h.policy, instantDelay(), h.opts)
}

func (h *harness) history(t *testing.T, sender string) []core.HistoryEntry {
	t.Helper()
	entries, err := h.store.GetHistory(context.Background(), sender, 0)
	require.NoError(t, err)
	return entries
}

func instantDelay() *Delay {
	d := NewDelay(0, 0)
	d.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return d
}

func (h *harness) records(t *testing.T) []core.MessageRecord {
	t.Helper()
	recs, err := h.store.ListMessages(context.Background(), core.MessageFilter{})
	require.NoError(t, err)
	return recs
}

func (h *harness) today(t *testing.T) int {
	t.Helper()
	n, err := h.store.GetDailyCount(context.Background(), core.DayOf(time.Now()))
	require.NoError(t, err)
	return n
}

func TestRunOnce_Replies(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)
	h.det.push("alice", "hello")

	res, err := h.bot.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplied, res.Outcome)
	assert.NotEmpty(t, res.ID)
	assert.Positive(t, res.RecordID)

	assert.Equal(t, []string{"re: hello"}, h.input.Typed())
	assert.Equal(t, []image.Point{image.Pt(800, 700)}, h.input.clicks)
	assert.Equal(t, []string{"Return"}, h.input.keys)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].AutoReplied)
	assert.Equal(t, "re: hello", recs[0].Response)
	assert.Equal(t, 1, h.today(t))
	assert.Equal(t, StateIdle, h.bot.State())
}

func TestRunOnce_BlacklistedSender(t *testing.T) {
	h := newHarness(t, NewPolicy([]string{"spamBot"}, nil, nil, true, 10), nil)
	h.det.push("spamBot", "hello")

	res, err := h.bot.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Equal(t, core.DenyBlacklisted, res.Decision.Reason)

	assert.Empty(t, h.input.Typed())
	assert.Zero(t, h.resp.calls)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "spamBot", recs[0].Sender)
	assert.False(t, recs[0].AutoReplied)
	assert.Zero(t, h.today(t))
}

func TestRunOnce_QuotaExceeded(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 2), nil)
	h.det.push("alice", "one")
	h.det.push("bob", "two")
	h.det.push("carol", "three")

	var outcomes []Outcome
	for i := 0; i < 3; i++ {
		res, err := h.bot.RunOnce(context.Background())
		require.NoError(t, err)
		outcomes = append(outcomes, res.Outcome)
	}

	assert.Equal(t, []Outcome{OutcomeReplied, OutcomeReplied, OutcomeDenied}, outcomes)
	assert.Equal(t, 2, h.today(t))
	assert.Len(t, h.input.Typed(), 2)
	assert.Len(t, h.records(t), 3)
}

func TestRunOnce_NoMessageNoAction(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)

	res, err := h.bot.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMessage, res.Outcome)
	assert.Zero(t, h.resp.calls)
	assert.Empty(t, h.input.Typed())
	assert.Empty(t, h.records(t))
}

func TestRunOnce_DispatchFailureMarkedUnanswered(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)
	h.input.err = errors.New("window lost focus")
	h.det.push("alice", "hello")

	res, err := h.bot.RunOnce(context.Background())
	require.NoError(t, err, "loop continues")
	assert.Equal(t, OutcomeDispatchFailed, res.Outcome)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].AutoReplied)
	assert.Equal(t, "re: hello", recs[0].Response)
	assert.Zero(t, h.today(t))
}

func TestRunOnce_UnansweredWhenNoReply(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)
	h.resp.err = core.ErrResponseGeneration
	h.det.push("alice", "hello")

	res, err := h.bot.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnanswered, res.Outcome)
	assert.Empty(t, h.input.Typed())

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].AutoReplied)
}

func TestRunOnce_FallbackReplyIsSent(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)
	h.resp.reply = responder.Reply{
		Text:   "稍后回复",
		Source: responder.SourceFallback,
		Cause:  core.ErrRateLimitExceeded,
	}
	h.det.push("alice", "hello")

	res, err := h.bot.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplied, res.Outcome)
	assert.Equal(t, []string{"稍后回复"}, h.input.Typed())
}

func TestRunOnce_DetectorStreakStops(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)
	for i := 0; i < 3; i++ {
		h.det.steps = append(h.det.steps, detectStep{err: core.ErrDetection})
	}

	for i := 0; i < 2; i++ {
		res, err := h.bot.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeDetectFailed, res.Outcome)
	}

	_, err := h.bot.RunOnce(context.Background())
	assert.ErrorIs(t, err, core.ErrDetectorUnhealthy)
	assert.Equal(t, StateStopped, h.bot.State())
	assert.Empty(t, h.records(t), "failures are not messages")
}

func TestRunOnce_StoreStreakStops(t *testing.T) {
	det := &fakeDetector{}
	det.push("alice", "one")
	det.push("alice", "two")
	b := New(det, &fakeResponder{}, brokenStore{}, &fakeInput{},
		NewPolicy(nil, nil, nil, true, 10), instantDelay(),
		Options{PollInterval: time.Millisecond, MaxDetectionFailures: 3, MaxStoreFailures: 2})

	res, err := b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeStoreFailed, res.Outcome)

	_, err = b.RunOnce(context.Background())
	assert.ErrorIs(t, err, core.ErrStoreUnhealthy)
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
	assert.Equal(t, StateStopped, b.State())
}

func TestRunOnce_DryRun(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), func(o *Options) { o.DryRun = true })
	h.det.push("alice", "hello")

	res, err := h.bot.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDryRun, res.Outcome)
	assert.Equal(t, "re: hello", res.Reply.Text)
	assert.Empty(t, h.input.Typed())
	assert.Empty(t, h.records(t))
}

func TestRunOnce_DryRunLeavesHistoryUntouched(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), func(o *Options) { o.DryRun = true })
	h.withResponder("model reply")
	h.det.push("alice", "hello")

	res, err := h.bot.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDryRun, res.Outcome)
	assert.Len(t, res.Reply.Turns, 2)
	assert.Empty(t, h.records(t))
	assert.Empty(t, h.history(t, "alice"))
}

func TestRunOnce_HistoryOnlyForDeliveredReplies(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)
	h.withResponder("model reply")

	h.det.push("alice", "hello")
	res, err := h.bot.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeReplied, res.Outcome)

	entries := h.history(t, "alice")
	require.Len(t, entries, 2)
	assert.Equal(t, core.RoleUser, entries[0].Role)
	assert.Equal(t, "hello", entries[0].Content)
	assert.Equal(t, "model reply", entries[1].Content)

	h.input.err = errors.New("window lost focus")
	h.det.push("bob", "hello")
	res, err = h.bot.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatchFailed, res.Outcome)
	assert.Empty(t, h.history(t, "bob"), "failed dispatch leaves no assistant turn")
}

func TestRunOnce_CancelledDuringDelayPersistsNothing(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)
	h.withResponder("model reply")
	ctx, cancel := context.WithCancel(context.Background())
	h.bot.delay.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	h.det.push("alice", "hello")

	res, err := h.bot.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Empty(t, h.input.Typed())
	assert.Empty(t, h.records(t))
	assert.Empty(t, h.history(t, "alice"))
}

func TestRunOnce_CancelledBeforeDispatch(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)
	ctx, cancel := context.WithCancel(context.Background())
	h.bot.delay.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	h.det.push("alice", "hello")

	res, err := h.bot.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Empty(t, h.input.Typed(), "nothing sent")
	assert.Empty(t, h.records(t), "nothing half-recorded")
}

func TestRunOnce_CounterMatchesAutoReplied(t *testing.T) {
	h := newHarness(t, NewPolicy([]string{"spamBot"}, nil, nil, true, 3), nil)
	for _, s := range []string{"alice", "spamBot", "bob", "carol", "dave", "erin"} {
		h.det.push(s, "hi from "+s)
	}

	for i := 0; i < 6; i++ {
		_, err := h.bot.RunOnce(context.Background())
		require.NoError(t, err)
	}

	replied := 0
	for _, rec := range h.records(t) {
		if rec.AutoReplied {
			replied++
		}
	}
	assert.Equal(t, 3, replied)
	assert.Equal(t, replied, h.today(t))
	assert.Len(t, h.input.Typed(), 3)
}

func TestStartShutdown(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)
	h.det.push("alice", "hello")

	errc := make(chan error, 1)
	go func() { errc <- h.bot.Start(context.Background()) }()

	require.Eventually(t, func() bool { return len(h.input.Typed()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.bot.Shutdown(context.Background()) == nil && h.bot.State() == StateStopped },
		time.Second, 5*time.Millisecond)

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
}

func TestStart_ReturnsOnUnhealthyDetector(t *testing.T) {
	h := newHarness(t, NewPolicy(nil, nil, nil, true, 10), nil)
	for i := 0; i < 3; i++ {
		h.det.steps = append(h.det.steps, detectStep{err: core.ErrDetection})
	}

	err := h.bot.Start(context.Background())
	assert.ErrorIs(t, err, core.ErrDetectorUnhealthy)
}
