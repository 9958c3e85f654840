package eval

import (
	"context"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/supportdesk-rag/server/internal/agent/graph/parsers"
	"github.com/supportdesk-rag/server/internal/agent/graph/prompts"
	"github.com/supportdesk-rag/server/internal/agent/model"
)

// Scorer grades one candidate answer against its reference answer.
type Scorer interface {
	Score(ctx context.Context, groundTruth, candidate string) (*model.CoverageScore, error)
}

// ModelScorer scores with a chat model against the coverage rubric. The
// model's output must satisfy the rubric JSON contract; anything else is a
// contract violation, never a silent default label.
type ModelScorer struct {
	model einomodel.BaseChatModel
}

func NewModelScorer(m einomodel.BaseChatModel) *ModelScorer {
	return &ModelScorer{model: m}
}

func (s *ModelScorer) Score(ctx context.Context, groundTruth, candidate string) (*model.CoverageScore, error) {
	human, err := prompts.RenderEvaluatorHuman(ctx, groundTruth, candidate)
	if err != nil {
		return nil, err
	}

	out, err := s.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(prompts.EvaluatorSystem()),
		schema.UserMessage(human),
	})
	if err != nil {
		return nil, err
	}

	return parsers.ParseCoverageScore(out.Content)
}
