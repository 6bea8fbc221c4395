package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/sandevgo/replybot/internal/core"
)

// Validate checks the snapshot once at startup.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(!c.AIEnabled || strings.TrimSpace(c.AIAPIKey) != "", "ai_api_key is required when ai_enabled is true")
	check(!c.AIEnabled || c.AIModel != "", "ai_model is required when ai_enabled is true")
	check(c.ReplyDelayMin >= 0, "reply_delay_min must be >= 0, got %v", c.ReplyDelayMin)
	check(c.ReplyDelayMax >= c.ReplyDelayMin, "reply_delay_max (%v) must be >= reply_delay_min (%v)", c.ReplyDelayMax, c.ReplyDelayMin)
	check(c.MaxDailyReplies >= 0, "max_daily_replies must be >= 0, got %d", c.MaxDailyReplies)
	check(c.PollInterval > 0, "poll_interval must be positive")
	check(c.DBPath != "", "db_path is required")
	check(c.DBPoolSize >= 1, "db_pool_size must be >= 1, got %d", c.DBPoolSize)
	check(c.DBAcquireTimeout > 0, "db_acquire_timeout must be positive")
	check(c.MaxRetries >= 1, "max_retries must be >= 1, got %d", c.MaxRetries)
	check(c.MaxHistoryTurns >= 0, "max_history_turns must be >= 0")
	check(c.MaxDetectionFailures >= 1, "max_detection_failures must be >= 1")
	check(c.MaxStoreFailures >= 1, "max_store_failures must be >= 1")
	check(c.OCRMinConfidence >= 0 && c.OCRMinConfidence <= 100, "ocr_min_confidence must be within [0,100]")
	check(c.DiffThreshold >= 0 && c.DiffThreshold <= 1, "diff_threshold must be within [0,1]")
	check(c.RetentionDays >= 0, "retention_days must be >= 0")

	if c.EnableCache {
		check(c.CacheSize >= 1, "cache_size must be >= 1 when enable_cache is true")
	}
	if c.EnableRateLimit {
		check(c.RateLimitMaxRequests >= 1, "rate_limit_max_requests must be >= 1")
		check(c.RateLimitTimeWindow >= 1, "rate_limit_time_window must be >= 1")
	}
	if c.RetentionDays > 0 {
		_, err := cron.ParseStandard(c.RetentionSchedule)
		check(err == nil, "retention_schedule %q: %v", c.RetentionSchedule, err)
	}

	for key := range c.FallbackResponses {
		check(key == core.FallbackDefault || core.Intent(key).Valid(), "fallback_responses: unknown intent %q", key)
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrConfig, errors.Join(errs...))
	}
	return nil
}
