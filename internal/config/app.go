package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sandevgo/replybot/internal/core"
)

const (
	DefaultConfigFile = "config.yaml"
	DefaultEnvFile    = ".env"

	defaultSystemPrompt = "你是一个友好的助手,正在代替用户回复即时消息。回复要简短、自然、礼貌,不要使用 Markdown 格式。"
)

// Config is the immutable runtime snapshot shared by every component.
// Values resolve as defaults < YAML file < .env file < process environment.
type Config struct {
	// Detection
	WindowName           string        `yaml:"window_name" env:"WINDOW_NAME"`
	PollInterval         time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	CaptureCommand       []string      `yaml:"capture_command" env:"CAPTURE_COMMAND" envSeparator:" "`
	OCRCommand           []string      `yaml:"ocr_command" env:"OCR_COMMAND" envSeparator:" "`
	OCRMinConfidence     float64       `yaml:"ocr_min_confidence" env:"OCR_MIN_CONFIDENCE"`
	DiffThreshold        float64       `yaml:"diff_threshold" env:"DIFF_THRESHOLD"`
	MarkerDetection      bool          `yaml:"marker_detection" env:"MARKER_DETECTION"`
	MaxDetectionFailures int           `yaml:"max_detection_failures" env:"MAX_DETECTION_FAILURES"`

	// Dispatch
	InputBoxX     int     `yaml:"input_box_x" env:"INPUT_BOX_X"`
	InputBoxY     int     `yaml:"input_box_y" env:"INPUT_BOX_Y"`
	ReplyDelayMin float64 `yaml:"reply_delay_min" env:"REPLY_DELAY_MIN"`
	ReplyDelayMax float64 `yaml:"reply_delay_max" env:"REPLY_DELAY_MAX"`

	// Policy
	MaxDailyReplies   int               `yaml:"max_daily_replies" env:"MAX_DAILY_REPLIES"`
	AutoReplyKeywords []string          `yaml:"auto_reply_keywords" env:"AUTO_REPLY_KEYWORDS"`
	Blacklist         []string          `yaml:"blacklist" env:"BLACKLIST"`
	Whitelist         []string          `yaml:"whitelist" env:"WHITELIST"`
	FallbackResponses map[string]string `yaml:"fallback_responses"`

	// AI
	AIEnabled        bool          `yaml:"ai_enabled" env:"AI_ENABLED"`
	AIAPIKey         string        `yaml:"ai_api_key" env:"AI_API_KEY"`
	AIModel          string        `yaml:"ai_model" env:"AI_MODEL"`
	AIBaseURL        string        `yaml:"ai_base_url" env:"AI_BASE_URL"`
	MaxTokens        int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Temperature      float32       `yaml:"temperature" env:"TEMPERATURE"`
	MaxHistoryTurns  int           `yaml:"max_history_turns" env:"MAX_HISTORY_TURNS"`
	MaxContextTokens int           `yaml:"max_context_tokens" env:"MAX_CONTEXT_TOKENS"`
	SystemPrompt     string        `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	EnableCache bool          `yaml:"enable_cache" env:"ENABLE_CACHE"`
	CacheSize   int           `yaml:"cache_size" env:"CACHE_SIZE"`
	CacheTTL    time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	// CachePerSender scopes cached replies to one sender.
	CachePerSender bool `yaml:"cache_per_sender" env:"CACHE_PER_SENDER"`

	EnableRateLimit      bool `yaml:"enable_rate_limit" env:"ENABLE_RATE_LIMIT"`
	RateLimitMaxRequests int  `yaml:"rate_limit_max_requests" env:"RATE_LIMIT_MAX_REQUESTS"`
	RateLimitTimeWindow  int  `yaml:"rate_limit_time_window" env:"RATE_LIMIT_TIME_WINDOW"`

	MaxRetries     int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" env:"RETRY_BASE_DELAY"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" env:"RETRY_MAX_DELAY"`
	ResponseBudget time.Duration `yaml:"response_budget" env:"RESPONSE_BUDGET"`

	// Storage
	DBPath           string        `yaml:"db_path" env:"DB_PATH"`
	DBPoolSize       int           `yaml:"db_pool_size" env:"DB_POOL_SIZE"`
	DBAcquireTimeout time.Duration `yaml:"db_acquire_timeout" env:"DB_ACQUIRE_TIMEOUT"`
	MaxStoreFailures int           `yaml:"max_store_failures" env:"MAX_STORE_FAILURES"`

	RetentionDays     int    `yaml:"retention_days" env:"RETENTION_DAYS"`
	RetentionSchedule string `yaml:"retention_schedule" env:"RETENTION_SCHEDULE"`

	// Logging
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFile  string `yaml:"log_file" env:"LOG_FILE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WindowName:           "WeChat",
		PollInterval:         2 * time.Second,
		OCRMinConfidence:     60,
		DiffThreshold:        0.01,
		MarkerDetection:      true,
		MaxDetectionFailures: 10,

		InputBoxX:     800,
		InputBoxY:     700,
		ReplyDelayMin: 2,
		ReplyDelayMax: 5,

		MaxDailyReplies:   100,
		AutoReplyKeywords: []string{"在吗", "你好", "在不在", "hello"},
		Blacklist:         []string{},
		Whitelist:         []string{},
		FallbackResponses: map[string]string{},

		AIEnabled:        true,
		AIModel:          "deepseek-chat",
		AIBaseURL:        "https://api.deepseek.com/v1",
		MaxTokens:        200,
		Temperature:      0.7,
		MaxHistoryTurns:  10,
		MaxContextTokens: 2000,
		SystemPrompt:     defaultSystemPrompt,
		RequestTimeout:   30 * time.Second,

		EnableCache: true,
		CacheSize:   100,
		CacheTTL:    time.Hour,

		EnableRateLimit:      true,
		RateLimitMaxRequests: 60,
		RateLimitTimeWindow:  60,

		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  10 * time.Second,
		ResponseBudget: 60 * time.Second,

		DBPath:           "replybot.db",
		DBPoolSize:       5,
		DBAcquireTimeout: 5 * time.Second,
		MaxStoreFailures: 5,

		RetentionSchedule: "@daily",

		LogLevel: "info",
	}
}

// Load resolves the configuration from path, the .env file beside it and the
// process environment, then validates it. A missing config file is not an
// error.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for read-only commands that must work
// with an incomplete configuration.
func Read(path string) (*Config, error) {
	environ, err := environment(path)
	if err != nil {
		return nil, err
	}
	return readWithEnv(path, environ)
}

func environment(path string) (map[string]string, error) {
	environ, err := readDotEnv(filepath.Join(filepath.Dir(path), DefaultEnvFile))
	if err != nil {
		return nil, err
	}
	for k, v := range env.ToMap(os.Environ()) {
		environ[k] = v
	}
	return environ, nil
}

// LoadWithEnv is Load with an explicit environment instead of the process one.
func LoadWithEnv(path string, environ map[string]string) (*Config, error) {
	cfg, err := readWithEnv(path, environ)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readWithEnv(path string, environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("%w: read %s: %w", core.ErrConfig, path, err)
	default:
		if err := cfg.decodeYAML(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", core.ErrConfig, path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", core.ErrConfig, err)
	}

	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func readDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", core.ErrConfig, path, err)
	}
	return vars, nil
}

// Redacted returns a copy safe for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.AIAPIKey != "" {
		out.AIAPIKey = maskSecret(out.AIAPIKey)
	}
	return &out
}

// YAML renders the configuration in the file format Load accepts.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// RateLimitWindow returns the limiter window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitTimeWindow) * time.Second
}

// DelayBounds returns the dispatch jitter bounds as durations.
func (c *Config) DelayBounds() (time.Duration, time.Duration) {
	toDur := func(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
	return toDur(c.ReplyDelayMin), toDur(c.ReplyDelayMax)
}
