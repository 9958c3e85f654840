package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	goredis "github.com/redis/go-redis/v9"

	"github.com/supportdesk-rag/server/internal/agent/graph"
	"github.com/supportdesk-rag/server/internal/agent/graph/tools"
	"github.com/supportdesk-rag/server/internal/agent/model"
	"github.com/supportdesk-rag/server/internal/core"
	"github.com/supportdesk-rag/server/internal/retriever"
	"github.com/supportdesk-rag/server/internal/server"
	"github.com/supportdesk-rag/server/internal/tracing"
	logx "github.com/supportdesk-rag/server/pkg/logger"
	pkgredis "github.com/supportdesk-rag/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the serving path,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis   pkgredis.Config
	Server  server.Config
	Tracing tracing.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Guardrail    model.GuardrailModelConfig
	Reasoning    model.ReasoningModelConfig
	Conversation model.ConversationConfig
	Search       model.SearchConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	env := core.EnvironmentFromOS()
	logx.Init(logx.LoggerOpts{Environment: env})

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}

	tracer, shutdownTracing, err := tracing.New(ctx, cfg.Tracing)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logx.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	var embeddingCache goredis.Cmdable
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New()
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to initialise Redis client")
		}
		defer rdb.Close()
		embeddingCache = rdb
		logx.Info().Msg("connected to Redis, embedding cache enabled")
	} else {
		logx.Info().Msg("no Redis URL configured, embedding cache disabled")
	}

	models, err := graph.NewChatModels(ctx, graph.ChatModelConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Guardrail: cfg.Guardrail,
		Reasoning: cfg.Reasoning,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise chat models")
	}

	cacheTTL, err := time.ParseDuration(cfg.Search.EmbeddingCacheTTL)
	if err != nil {
		logx.Fatal().Err(err).Str("value", cfg.Search.EmbeddingCacheTTL).Msg("invalid EMBEDDING_CACHE_TTL")
	}

	embedder := retriever.NewGeminiEmbedder(models.Client, cfg.Search.EmbeddingModel, embeddingCache, cacheTTL)
	search := retriever.New(retriever.Config{
		Service:     cfg.Search.Service,
		Index:       cfg.Search.Index,
		APIKey:      cfg.Search.APIKey,
		APIVersion:  cfg.Search.APIVersion,
		VectorField: cfg.Search.VectorField,
	}, embedder)

	registry := tools.NewRegistry(search)
	if err := models.BindToolsToReasoningModel(registry.Infos()); err != nil {
		logx.Fatal().Err(err).Msg("failed to bind tools")
	}

	agent, err := graph.New(ctx, graph.Config{
		GuardrailModel: models.Guardrail,
		ReasoningModel: models.Reasoning,
		Registry:       registry,
		Conversation:   cfg.Conversation,
		Tracer:         tracer,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build agent graph")
	}

	srv := server.New(cfg.Server, agent)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		logx.Fatal().Err(err).Msg("server stopped")
	case <-ctx.Done():
		logx.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("server shutdown failed")
	}
}
