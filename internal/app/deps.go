package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"sectioner/internal/cache"
	"sectioner/internal/config"
	"sectioner/internal/content"
	"sectioner/internal/index"
	"sectioner/internal/llm"
	"sectioner/internal/logger"
	"sectioner/internal/queue"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config  config.Config
	Log     *slog.Logger
	Fetcher content.Fetcher
	Index   index.Index
	Queue   queue.Queue
	Cache   cache.Cache
	LLM     llm.Client
}

// Build loads env, config, and shared components.
func Build() (Deps, error) {
	// A missing .env file is fine; services usually get their environment
	// from the deployment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return Deps{}, err
	}

	idx, err := buildIndex(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize index: %w", err)
	}
	q, err := buildQueue(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	c, err := buildCache(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	llmClient, err := buildLLM(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	fetcher := buildFetcher(cfg, log)

	return Deps{
		Config:  cfg,
		Log:     log,
		Fetcher: fetcher,
		Index:   idx,
		Queue:   q,
		Cache:   c,
		LLM:     llmClient,
	}, nil
}

func buildIndex(cfg config.Config, log *slog.Logger) (index.Index, error) {
	switch cfg.IndexProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when INDEX_PROVIDER=postgres")
		}
		idx, err := index.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres index")
		return idx, nil
	default:
		return nil, fmt.Errorf("invalid INDEX_PROVIDER: %s (valid option: postgres)", cfg.IndexProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid option: nats)", cfg.QueueProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when CACHE_PROVIDER=redis")
		}
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("using Redis cache")
		return c, nil
	case "noop":
		log.Info("search caching disabled")
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: redis, noop)", cfg.CacheProvider)
	}
}

// buildLLM returns nil when no API key is set so that services which never
// answer questions do not need one. Callers that serve ask requests must
// check for a nil client.
func buildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			log.Warn("llm disabled (OPENAI_API_KEY not set)")
			return nil, nil
		}
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", cfg.LLMModel)
		return client, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid option: openai)", cfg.LLMProvider)
	}
}

// buildFetcher returns nil when Contentful credentials are absent so that
// upload-only deployments do not need them. Callers that serve ingest
// requests must check for a nil fetcher.
func buildFetcher(cfg config.Config, log *slog.Logger) content.Fetcher {
	if cfg.ContentfulSpace == "" || cfg.ContentfulAccessToken == "" {
		log.Warn("content fetcher disabled (CONTENTFUL_SPACE or CONTENTFUL_ACCESS_TOKEN not set)")
		return nil
	}
	log.Info("using Contentful fetcher", "space", cfg.ContentfulSpace, "environment", cfg.ContentfulEnvironment)
	return content.NewContentfulClient(cfg.ContentfulURL, cfg.ContentfulSpace, cfg.ContentfulEnvironment, cfg.ContentfulAccessToken)
}
