package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/supportdesk-rag/server/internal/agent/graph/prompts"
	"github.com/supportdesk-rag/server/internal/agent/model"
)

// runAgentBrain runs one reasoning round: system prompt with tool
// descriptions plus the trailing history window, one completion. The output
// is either a final answer or a batch of tool-call requests; routing happens
// over the merged message count.
func (g *Graph) runAgentBrain(ctx context.Context, state *model.ConversationState, sink EventSink) (Command, error) {
	window := model.TruncateHistory(state.Messages, g.maxHistory)
	in := make([]*schema.Message, 0, len(window)+1)
	in = append(in, schema.SystemMessage(g.agentSystem))
	in = append(in, window...)

	var out *schema.Message
	var err error
	if sink != nil {
		out, err = g.generateStreaming(ctx, g.reasoningModel, in, sink)
	} else {
		out, err = g.reasoningModel.Generate(ctx, in)
	}
	if err != nil {
		return Command{}, fmt.Errorf("reasoning generation: %w", err)
	}

	ensureToolCallIDs(out)

	merged := len(state.Messages) + 1
	return Command{
		Goto:  route(merged, g.maxMessages, out),
		Delta: model.Delta{Messages: []*schema.Message{out}},
	}, nil
}

// ensureToolCallIDs synthesizes call ids when the provider omits them, so
// tool results can always be correlated with their originating request.
func ensureToolCallIDs(msg *schema.Message) {
	if msg == nil {
		return
	}
	for i := range msg.ToolCalls {
		if strings.TrimSpace(msg.ToolCalls[i].ID) == "" {
			msg.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}
}

// runFriendlyRefusal generates the single user-facing refusal message,
// conditioned on the recorded reject reason and the conversation history.
// Terminal. A generation failure here fails the run; there is no canned
// fallback message.
func (g *Graph) runFriendlyRefusal(ctx context.Context, state *model.ConversationState, sink EventSink) (Command, error) {
	human, err := prompts.RenderRefusalHuman(ctx, state.RejectReason)
	if err != nil {
		return Command{}, err
	}

	msgs := make([]*schema.Message, 0, len(state.Messages)+2)
	msgs = append(msgs, schema.SystemMessage(prompts.RefusalSystem()))
	msgs = append(msgs, state.Messages...)
	msgs = append(msgs, schema.UserMessage(human))

	var out *schema.Message
	if sink != nil {
		out, err = g.generateStreaming(ctx, g.refusalModel, msgs, sink)
	} else {
		out, err = g.refusalModel.Generate(ctx, msgs)
	}
	if err != nil {
		return Command{}, fmt.Errorf("refusal generation: %w", err)
	}

	return Command{
		Goto:  NodeEnd,
		Delta: model.Delta{Messages: []*schema.Message{out}},
	}, nil
}
