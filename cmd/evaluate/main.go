package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/supportdesk-rag/server/internal/agent/graph"
	"github.com/supportdesk-rag/server/internal/agent/graph/tools"
	"github.com/supportdesk-rag/server/internal/agent/model"
	"github.com/supportdesk-rag/server/internal/core"
	"github.com/supportdesk-rag/server/internal/eval"
	"github.com/supportdesk-rag/server/internal/retriever"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

// AppConfig defines the evaluation harness configuration, sourced from
// environment variables.
type AppConfig struct {
	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Guardrail    model.GuardrailModelConfig
	Reasoning    model.ReasoningModelConfig
	Conversation model.ConversationConfig
	Search       model.SearchConfig
	Eval         model.EvalConfig
}

func main() {
	sampleSize := flag.Int("sample", 0, "sample size for the prediction pass (default from EVAL_SAMPLE_SIZE)")
	rerunDir := flag.String("run", "", "existing run directory name (e.g. run_1) to re-score instead of predicting")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: core.EnvironmentFromOS()})

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}
	if *sampleSize <= 0 {
		*sampleSize = cfg.Eval.SampleSize
	}

	retryBackoff, err := time.ParseDuration(cfg.Eval.RetryBackoff)
	if err != nil {
		logx.Fatal().Err(err).Str("value", cfg.Eval.RetryBackoff).Msg("invalid EVAL_RETRY_BACKOFF")
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

	embedder := retriever.NewGeminiEmbedder(models.Client, cfg.Search.EmbeddingModel, nil, 0)
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
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build agent graph")
	}

	evaluator := eval.NewEvaluator(agent, eval.NewModelScorer(models.Guardrail), cfg.Eval.BatchSize, retryBackoff)

	var (
		runDir  string
		records []eval.Record
	)
	if *rerunDir == "" {
		dataset, err := eval.NewLoader(cfg.Eval.DataPath).Load()
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to load dataset")
		}

		records, err = evaluator.RunPrediction(ctx, dataset, *sampleSize)
		if err != nil {
			logx.Fatal().Err(err).Msg("prediction pass failed")
		}

		runDir, err = eval.NextRunDir(cfg.Eval.RunRoot)
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to create run directory")
		}
		if err := eval.SavePredictions(runDir, records); err != nil {
			logx.Fatal().Err(err).Msg("failed to save predictions")
		}
		logx.Info().Str("run_dir", runDir).Int("records", len(records)).Msg("prediction pass saved")
	} else {
		runDir = filepath.Join(cfg.Eval.RunRoot, *rerunDir)
		records, err = eval.LoadPredictions(runDir)
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to load predictions")
		}
		logx.Info().Str("run_dir", runDir).Int("records", len(records)).Msg("re-scoring existing run")
	}

	records, err = evaluator.EvaluatePrediction(ctx, records)
	if err != nil {
		logx.Fatal().Err(err).Msg("evaluation pass failed")
	}
	if err := eval.SaveEvaluations(runDir, records); err != nil {
		logx.Fatal().Err(err).Msg("failed to save evaluations")
	}
	logx.Info().Str("run_dir", runDir).Msg("evaluation pass saved")
}
