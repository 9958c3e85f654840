package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/supportdesk-rag/server/internal/agent/model"
	errx "github.com/supportdesk-rag/server/internal/core/error"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

type toolOutcome struct {
	msg   *schema.Message
	delta model.Delta
	err   error
}

// runTools executes every tool call requested in the latest reasoning round.
// Calls run concurrently with no relative ordering guarantee, but all must
// complete before control returns to the reasoning node, and their deltas are
// merged sequentially afterwards so concurrent rounds never lose ids. A
// failing call becomes a tool-error result the model can adapt to; it does
// not abort the round.
func (g *Graph) runTools(ctx context.Context, state *model.ConversationState, sink EventSink) (Command, error) {
	last := state.LastMessage()
	if last == nil || len(last.ToolCalls) == 0 {
		return Command{}, fmt.Errorf("tools node reached without pending tool calls")
	}
	calls := last.ToolCalls

	outcomes := make([]toolOutcome, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call schema.ToolCall) {
			defer wg.Done()
			outcomes[i] = g.executeToolCall(ctx, call)
		}(i, call)
	}
	wg.Wait()

	var merged model.Delta
	for i, call := range calls {
		merged.Messages = append(merged.Messages, outcomes[i].msg)
		merged.RetrievedIDs = append(merged.RetrievedIDs, outcomes[i].delta.RetrievedIDs...)

		if sink != nil {
			status := "ok"
			if outcomes[i].err != nil {
				status = "error"
			}
			event := Event{Type: EventCustom, Data: map[string]any{
				"tool":      call.Function.Name,
				"status":    status,
				"retrieved": len(outcomes[i].delta.RetrievedIDs),
			}}
			if err := sink.Send(ctx, event); err != nil {
				return Command{}, err
			}
		}
	}

	return Command{Goto: NodeAgentBrain, Delta: merged}, nil
}

func (g *Graph) executeToolCall(ctx context.Context, call schema.ToolCall) toolOutcome {
	name := call.Function.Name

	tool, ok := g.registry.Lookup(name)
	if !ok {
		// hallucinated or malformed tool call: report it back, don't crash
		err := errx.Validation(fmt.Errorf("unknown tool %q", name), "unknown tool")
		logx.Warn().Str("tool", name).Str("arguments", call.Function.Arguments).Msg("unknown tool call")
		return toolOutcome{msg: schema.ToolMessage(toolErrorPayload(err), call.ID), err: err}
	}

	result, delta, err := tool.Execute(ctx, call.Function.Arguments)
	if err != nil {
		logx.Warn().Err(err).Str("tool", name).Msg("tool call failed")
		return toolOutcome{msg: schema.ToolMessage(toolErrorPayload(err), call.ID), err: err}
	}

	return toolOutcome{msg: schema.ToolMessage(result, call.ID), delta: delta}
}

// toolErrorPayload is the compact error shape the model sees for a failed
// tool call.
func toolErrorPayload(err error) string {
	b, merr := json.Marshal(map[string]string{
		"error": errx.MessageOf(err),
		"kind":  string(errx.KindOf(err)),
	})
	if merr != nil {
		return `{"error":"tool execution failed"}`
	}
	return string(b)
}
