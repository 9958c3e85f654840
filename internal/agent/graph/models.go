package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/supportdesk-rag/server/internal/agent/model"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation.
type ChatModelConfig struct {
	APIKey    string
	BaseURL   string
	Guardrail model.GuardrailModelConfig
	Reasoning model.ReasoningModelConfig
}

// ChatModels bundles the production chat models plus the underlying genai
// client, which is shared with the embedder.
type ChatModels struct {
	Client    *genai.Client
	Guardrail *gemini.ChatModel
	Reasoning *gemini.ChatModel
}

// NewChatModels creates the guardrail and reasoning chat models with the
// given configuration.
func NewChatModels(ctx context.Context, cfg ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	guardrailModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Guardrail.Model,
		Temperature: &cfg.Guardrail.Temperature,
		MaxTokens:   &cfg.Guardrail.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating guardrail model")
		return nil, fmt.Errorf("error creating guardrail model: %w", err)
	}

	reasoningModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Reasoning.Model,
		Temperature: &cfg.Reasoning.Temperature,
		MaxTokens:   &cfg.Reasoning.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating reasoning model")
		return nil, fmt.Errorf("error creating reasoning model: %w", err)
	}

	return &ChatModels{
		Client:    client,
		Guardrail: guardrailModel,
		Reasoning: reasoningModel,
	}, nil
}

// BindToolsToReasoningModel binds the tool descriptors to the reasoning model.
func (cm *ChatModels) BindToolsToReasoningModel(infos []*schema.ToolInfo) error {
	if err := cm.Reasoning.BindTools(infos); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}
	logx.Debug().Int("tools", len(infos)).Msg("bound tools to reasoning model")
	return nil
}
