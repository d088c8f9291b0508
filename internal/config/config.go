package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"

	"sectioner/internal/chunker"
)

// Config holds runtime configuration for every binary. Extend as needed.
type Config struct {
	// Server
	Port      int    `env:"PORT" envDefault:"8080" validate:"gt=0,lte=65535"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760" validate:"gt=0"` // 10MB in bytes

	// Content source
	ContentfulURL         string `env:"CONTENTFUL_URL" envDefault:"https://cdn.contentful.com"`
	ContentfulSpace       string `env:"CONTENTFUL_SPACE"`
	ContentfulEnvironment string `env:"CONTENTFUL_ENVIRONMENT" envDefault:"master"`
	ContentfulAccessToken string `env:"CONTENTFUL_ACCESS_TOKEN"`
	ContentType           string `env:"CONTENT_TYPE"`
	ContentField          string `env:"CONTENT_FIELD"`

	// Sectioning. Bounds are enforced by chunker.Config.Validate so the
	// caller sees a single error kind for bad sizing.
	MaxSectionLength    int `env:"MAX_SECTION_LENGTH" envDefault:"1000"`
	SentenceSearchLimit int `env:"SENTENCE_SEARCH_LIMIT" envDefault:"100"`
	SectionOverlap      int `env:"SECTION_OVERLAP" envDefault:"100"`

	// Index
	IndexProvider   string `env:"INDEX_PROVIDER" envDefault:"postgres"` // "postgres" (production database)
	DBURL           string `env:"DB_URL"`
	UploadBatchSize int    `env:"UPLOAD_BATCH_SIZE" envDefault:"1000" validate:"gt=0"`

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"nats"` // "nats" (required for inter-service communication)
	QueueURL      string `env:"QUEUE_URL"`

	// Cache
	CacheProvider   string `env:"CACHE_PROVIDER" envDefault:"noop"` // "redis" or "noop"
	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	CacheTTLSeconds int    `env:"CACHE_TTL_SECONDS" envDefault:"300" validate:"gte=0"`

	// LLM
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"openai"` // "openai" (uses OpenAI API)
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	LLMModel    string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}

var validate = validator.New()

// Validate checks the loaded configuration before any service starts.
// Sectioning parameters are checked through the chunker so callers can match
// on chunker.ErrInvalidConfig.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Chunker().Validate()
}

// Chunker maps the sectioning parameters onto a chunker.Config, keeping the
// default boundary character classes.
func (c Config) Chunker() chunker.Config {
	cfg := chunker.DefaultConfig()
	cfg.MaxSectionLength = c.MaxSectionLength
	cfg.SentenceSearchLimit = c.SentenceSearchLimit
	cfg.SectionOverlap = c.SectionOverlap
	return cfg
}
