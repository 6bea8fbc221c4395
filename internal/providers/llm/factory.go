package llm

import (
	"context"

	"github.com/sandevgo/replybot/internal/config"
	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/pkg/log"
)

// NewProvider creates the chat model client, or nil when AI is disabled and
// replies come from the fallback table only.
func NewProvider(ctx context.Context, cfg *config.Config) core.AIProvider {
	if !cfg.AIEnabled {
		log.FromCtx(ctx).Info().Msg("ai disabled, replies use the fallback table")
		return nil
	}

	log.FromCtx(ctx).Info().
		Str("base_url", cfg.AIBaseURL).
		Str("model", cfg.AIModel).
		Msg("starting llm provider")

	return NewOpenAI(Config{
		BaseURL:     cfg.AIBaseURL,
		APIKey:      cfg.AIAPIKey,
		Model:       cfg.AIModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.RequestTimeout,
	})
}
