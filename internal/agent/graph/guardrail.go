package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/supportdesk-rag/server/internal/agent/graph/parsers"
	"github.com/supportdesk-rag/server/internal/agent/graph/prompts"
	"github.com/supportdesk-rag/server/internal/agent/model"
	errx "github.com/supportdesk-rag/server/internal/core/error"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

// runGuardrail classifies the latest user message against the content policy.
// The classification prompt is not merged into the conversation; only the
// verdict lands in state. A failed generation or an out-of-enum verdict is
// fatal for the run.
func (g *Graph) runGuardrail(ctx context.Context, state *model.ConversationState) (Command, error) {
	latest := state.LastMessage()
	if latest == nil {
		return Command{}, errx.Validation(fmt.Errorf("no latest message"), "history must not be empty")
	}

	human, err := prompts.RenderGuardrailHuman(ctx, latest.Content)
	if err != nil {
		return Command{}, err
	}

	msgs := make([]*schema.Message, 0, len(state.Messages)+2)
	msgs = append(msgs, schema.SystemMessage(g.guardrailSystem))
	msgs = append(msgs, state.Messages...)
	msgs = append(msgs, schema.UserMessage(human))

	out, err := g.guardrailModel.Generate(ctx, msgs)
	if err != nil {
		return Command{}, fmt.Errorf("guardrail generation: %w", err)
	}

	verdict, err := parsers.ParseGuardrailVerdict(out.Content)
	if err != nil {
		return Command{}, err
	}

	if verdict.Classification == model.ClassificationAccepted {
		logx.Debug().Str("conversation_id", state.ConversationID).Msg("guardrail accepted")
		return Command{
			Goto:  NodeAgentBrain,
			Delta: model.Delta{Classification: model.ClassificationAccepted},
		}, nil
	}

	logx.Info().
		Str("conversation_id", state.ConversationID).
		Str("reason", verdict.Reason).
		Msg("guardrail rejected")
	return Command{
		Goto: NodeFriendlyRefusal,
		Delta: model.Delta{
			Classification: model.ClassificationRejected,
			RejectReason:   verdict.Reason,
		},
	}, nil
}
