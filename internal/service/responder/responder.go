package responder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/replybot/internal/config"
	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/internal/providers/llm"
	"github.com/sandevgo/replybot/pkg/conv"
	"github.com/sandevgo/replybot/pkg/log"
	"github.com/sandevgo/replybot/pkg/retry"
)

// HistoryRepository is read-only here. Turns are persisted by the caller once
// the reply has actually been delivered.
type HistoryRepository interface {
	GetHistory(ctx context.Context, sessionID string, limit int) ([]core.HistoryEntry, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

type AIProvider interface {
	Chat(ctx context.Context, history []core.Message) (string, error)
	Model() string
}

// Source tells where a reply came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

type Reply struct {
	Text     string
	Source   Source
	Intent   core.Intent
	Attempts int
	// Cause is the failure that forced a fallback reply.
	Cause error
	// Turns holds the user and assistant entries to append to the session
	// once the reply is delivered. Empty for cached and fallback replies.
	Turns []core.HistoryEntry
}

type Options struct {
	SystemPrompt     string
	MaxHistoryTurns  int
	MaxContextTokens int

	EnableCache    bool
	CacheSize      int
	CacheTTL       time.Duration
	CachePerSender bool

	EnableRateLimit bool
	RateLimitMax    int
	RateLimitWindow time.Duration

	Retry     retry.Config
	Fallbacks map[string]string
	// PlainText strips markdown from model output.
	PlainText bool

	Tokens TokenCounter
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SystemPrompt:     cfg.SystemPrompt,
		MaxHistoryTurns:  cfg.MaxHistoryTurns,
		MaxContextTokens: cfg.MaxContextTokens,
		EnableCache:      cfg.EnableCache,
		CacheSize:        cfg.CacheSize,
		CacheTTL:         cfg.CacheTTL,
		CachePerSender:   cfg.CachePerSender,
		EnableRateLimit:  cfg.EnableRateLimit,
		RateLimitMax:     cfg.RateLimitMaxRequests,
		RateLimitWindow:  cfg.RateLimitWindow(),
		Retry: retry.Config{
			MaxAttempts:   cfg.MaxRetries,
			BackoffFactor: 2,
			InitialDelay:  cfg.RetryBaseDelay,
			MaxDelay:      cfg.RetryMaxDelay,
			Jitter:        100 * time.Millisecond,
			Budget:        cfg.ResponseBudget,
		},
		Fallbacks: cfg.FallbackResponses,
		PlainText: true,
		Tokens:    TiktokenCounter{},
	}
}

// Responder owns the per-process state of reply generation: the limiter
// window and the response cache live here, not in globals.
type Responder struct {
	ai        AIProvider
	history   HistoryRepository
	opts      Options
	limiter   *RateLimiter
	cache     *ResponseCache
	retrier   *retry.Retrier
	fallbacks FallbackTable
	tokens    TokenCounter
}

// New builds a responder. A nil ai makes every reply come from the
// fallback table.
func New(ai AIProvider, history HistoryRepository, opts Options) *Responder {
	r := &Responder{
		ai:        ai,
		history:   history,
		opts:      opts,
		fallbacks: NewFallbackTable(opts.Fallbacks),
		tokens:    opts.Tokens,
	}

	retryCfg := opts.Retry
	r.retrier = retry.NewRetrier(&retryCfg)

	if opts.EnableCache && opts.CacheSize > 0 {
		r.cache = NewResponseCache(opts.CacheSize, opts.CacheTTL)
	}
	if opts.EnableRateLimit && opts.RateLimitMax > 0 && opts.RateLimitWindow > 0 {
		r.limiter = NewRateLimiter(opts.RateLimitMax, opts.RateLimitWindow)
	}
	if r.tokens == nil {
		r.tokens = TiktokenCounter{}
	}
	return r
}

// GenerateResponse produces the reply for message from senderID. A failed
// model call still yields a fallback reply with Cause set; an error is
// returned only when no reply text is available at all.
func (r *Responder) GenerateResponse(ctx context.Context, message, senderID string, useHistory bool) (Reply, error) {
	logger := log.FromCtx(ctx).With().Str("sender", senderID).Logger()
	intent := ClassifyIntent(message)

	key := Fingerprint(message, senderID, r.opts.CachePerSender)
	if r.cache != nil {
		if text, ok := r.cache.Get(key); ok {
			logger.Debug().Msg("reply served from cache")
			return Reply{Text: text, Source: SourceCache, Intent: intent}, nil
		}
	}

	if r.ai == nil {
		return r.fallback(intent, nil, 0)
	}

	prompt := r.buildPrompt(ctx, message, senderID, useHistory)

	out := retry.Run(ctx, r.retrier, func(ctx context.Context, attempt int) retry.Outcome[string] {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return retry.Fatal[string](err)
			}
		}

		text, err := r.ai.Chat(ctx, prompt)
		if err == nil {
			if r.opts.PlainText {
				text = conv.MarkdownToPlainText(text)
			}
			if text == "" {
				return retry.Transient[string](llm.ErrEmptyCompletion)
			}
			return retry.Success(text)
		}

		kind := llm.Classify(err)
		logger.Warn().Err(err).
			Int("attempt", attempt+1).
			Stringer("kind", kind).
			Msg("model call failed")

		if kind == retry.KindTransient {
			return retry.Transient[string](err)
		}
		return retry.Fatal[string](err)
	})

	if !out.OK() {
		cause := out.Err
		if !errors.Is(cause, core.ErrRateLimitExceeded) {
			cause = fmt.Errorf("%w: %d attempt(s): %w", core.ErrResponseGeneration, out.Attempts, out.Err)
		}
		return r.fallback(intent, cause, out.Attempts)
	}

	reply := Reply{Text: out.Value, Source: SourceModel, Intent: intent, Attempts: out.Attempts}

	if r.cache != nil {
		r.cache.Add(key, reply.Text)
	}

	if useHistory {
		now := time.Now()
		reply.Turns = []core.HistoryEntry{
			{SessionID: senderID, Role: core.RoleUser, Content: message, Timestamp: now},
			{SessionID: senderID, Role: core.RoleAssistant, Content: reply.Text, Timestamp: now},
		}
	}

	return reply, nil
}

func (r *Responder) buildPrompt(ctx context.Context, message, senderID string, useHistory bool) []core.Message {
	system := core.Message{Role: core.RoleSystem, Content: r.opts.SystemPrompt}
	user := core.Message{Role: core.RoleUser, Content: message}

	var history []core.Message
	if useHistory && r.history != nil && r.opts.MaxHistoryTurns > 0 {
		entries, err := r.history.GetHistory(ctx, senderID, r.opts.MaxHistoryTurns*2)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("sender", senderID).Msg("history unavailable, answering without context")
		}
		for _, e := range entries {
			history = append(history, core.Message{Role: e.Role, Content: e.Content})
		}
		history = TrimToBudget(r.tokens, system, user, history, r.opts.MaxContextTokens)
	}

	prompt := make([]core.Message, 0, len(history)+2)
	if system.Content != "" {
		prompt = append(prompt, system)
	}
	prompt = append(prompt, history...)
	return append(prompt, user)
}

func (r *Responder) fallback(intent core.Intent, cause error, attempts int) (Reply, error) {
	text, ok := r.fallbacks.Lookup(intent)
	if !ok {
		if cause == nil {
			cause = fmt.Errorf("%w: no fallback for intent %q", core.ErrResponseGeneration, intent)
		}
		return Reply{Intent: intent, Source: SourceFallback, Attempts: attempts, Cause: cause}, cause
	}
	return Reply{Text: text, Source: SourceFallback, Intent: intent, Attempts: attempts, Cause: cause}, nil
}

// Fallback returns the canned reply for the message's intent.
func (r *Responder) Fallback(message string) (string, bool) {
	return r.fallbacks.Lookup(ClassifyIntent(message))
}

// ClearSession drops the stored history of one sender.
func (r *Responder) ClearSession(ctx context.Context, senderID string) error {
	if err := r.history.ClearHistory(ctx, senderID); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", senderID, err)
	}
	log.FromCtx(ctx).Info().Str("sender", senderID).Msg("session cleared")
	return nil
}

type Stats struct {
	Model        string        `json:"model"`
	AIEnabled    bool          `json:"ai_enabled"`
	CacheEnabled bool          `json:"cache_enabled"`
	CacheEntries int           `json:"cache_entries"`
	RateLimited  bool          `json:"rate_limited"`
	RateUsed     int           `json:"rate_used"`
	RateLimit    int           `json:"rate_limit"`
	RateWindow   time.Duration `json:"rate_window"`
	RateResetIn  time.Duration `json:"rate_reset_in"`
}

func (r *Responder) Stats() Stats {
	s := Stats{
		AIEnabled:    r.ai != nil,
		CacheEnabled: r.cache != nil,
		RateLimited:  r.limiter != nil,
	}
	if r.ai != nil {
		s.Model = r.ai.Model()
	}
	if r.cache != nil {
		s.CacheEntries = r.cache.Len()
	}
	if r.limiter != nil {
		s.RateUsed, s.RateLimit, s.RateResetIn = r.limiter.Usage()
		s.RateWindow = r.limiter.window
	}
	return s
}
