package graph

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/supportdesk-rag/server/internal/agent/graph/prompts"
	"github.com/supportdesk-rag/server/internal/agent/graph/tools"
	"github.com/supportdesk-rag/server/internal/agent/model"
	errx "github.com/supportdesk-rag/server/internal/core/error"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

// Node names one state of the agent state machine.
type Node string

const (
	NodeGuardrail       Node = "guardrail"
	NodeAgentBrain      Node = "agent_brain"
	NodeTools           Node = "tools"
	NodeFriendlyRefusal Node = "friendly_refusal"
	NodeEnd             Node = "end"
)

// Command is a node's return value: where to go next plus the state delta to
// merge before the transition.
type Command struct {
	Goto  Node
	Delta model.Delta
}

// Metadata identifies the caller of a run; passed through unchanged.
type Metadata struct {
	UserID         string
	ConversationID string
}

// Result is what a finished run hands back to the caller.
type Result struct {
	Messages       []*schema.Message
	RetrievedIDs   []string
	Classification model.Classification
}

// FinalAnswer returns the content of the last assistant message, empty when
// the run terminated without one (possible when the message cap is hit right
// after a tool round).
func (r *Result) FinalAnswer() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		m := r.Messages[i]
		if m != nil && m.Role == schema.Assistant && m.Content != "" {
			return m.Content
		}
	}
	return ""
}

// Config assembles a Graph. Models are injected so tests can script them;
// production wiring lives in NewChatModels.
type Config struct {
	// GuardrailModel runs the classification call. It also generates refusals
	// when RefusalModel is nil.
	GuardrailModel einomodel.BaseChatModel
	// ReasoningModel runs the tool-calling loop. Tool descriptors must
	// already be bound.
	ReasoningModel einomodel.BaseChatModel
	RefusalModel   einomodel.BaseChatModel

	Registry     *tools.Registry
	Conversation model.ConversationConfig

	// Tracer is the dependency-injected tracing handle, constructed once at
	// process start. Nil means no-op.
	Tracer trace.Tracer
}

// Graph is the agent state machine: guardrail, then either a friendly
// refusal or a bounded reasoning loop with tool rounds. One Graph serves many
// concurrent runs; per-run state lives in ConversationState only.
type Graph struct {
	guardrailModel einomodel.BaseChatModel
	reasoningModel einomodel.BaseChatModel
	refusalModel   einomodel.BaseChatModel

	registry *tools.Registry
	tracer   trace.Tracer

	maxHistory  int
	maxMessages int

	guardrailSystem string
	agentSystem     string
}

// New builds the graph and renders its static prompts.
func New(ctx context.Context, cfg Config) (*Graph, error) {
	if cfg.GuardrailModel == nil || cfg.ReasoningModel == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}

	refusalModel := cfg.RefusalModel
	if refusalModel == nil {
		refusalModel = cfg.GuardrailModel
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("agent-graph")
	}

	maxHistory := cfg.Conversation.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 20
	}
	maxMessages := cfg.Conversation.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 12
	}

	examples, err := prompts.LoadGuardrailExamples()
	if err != nil {
		return nil, err
	}
	guardrailSystem, err := prompts.RenderGuardrailSystem(ctx, prompts.FormatGuardrailExamples(examples))
	if err != nil {
		return nil, err
	}
	agentSystem, err := prompts.RenderAgentSystem(ctx, cfg.Registry.PromptDescriptions())
	if err != nil {
		return nil, err
	}

	return &Graph{
		guardrailModel:  cfg.GuardrailModel,
		reasoningModel:  cfg.ReasoningModel,
		refusalModel:    refusalModel,
		registry:        cfg.Registry,
		tracer:          tracer,
		maxHistory:      maxHistory,
		maxMessages:     maxMessages,
		guardrailSystem: guardrailSystem,
		agentSystem:     agentSystem,
	}, nil
}

// Run executes one conversation turn to the end state and returns the final
// message list plus the accumulated retrieval ids.
func (g *Graph) Run(ctx context.Context, history []*schema.Message, meta Metadata) (*Result, error) {
	return g.execute(ctx, history, meta, nil)
}

// Stream executes the same graph but forwards intermediate outputs and
// partial message tokens to the sink as they happen.
func (g *Graph) Stream(ctx context.Context, history []*schema.Message, meta Metadata, sink EventSink) (*Result, error) {
	if sink == nil {
		return nil, fmt.Errorf("stream requires an event sink")
	}
	return g.execute(ctx, history, meta, sink)
}

func (g *Graph) execute(ctx context.Context, history []*schema.Message, meta Metadata, sink EventSink) (*Result, error) {
	if len(history) == 0 {
		return nil, errx.Validation(fmt.Errorf("empty history"), "history must not be empty")
	}

	state := model.NewConversationState(
		meta.UserID,
		meta.ConversationID,
		model.TruncateHistory(history, g.maxHistory),
	)

	cur := NodeGuardrail
	for cur != NodeEnd {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nodeCtx, span := g.tracer.Start(ctx, "agent."+string(cur),
			trace.WithAttributes(
				attribute.String("conversation_id", state.ConversationID),
				attribute.Int("messages", len(state.Messages)),
			),
		)
		cmd, err := g.runNode(nodeCtx, cur, state, sink)
		if err != nil {
			span.RecordError(err)
			span.End()
			logx.Error().Err(err).Str("node", string(cur)).Str("conversation_id", state.ConversationID).Msg("node failed")
			return nil, err
		}
		span.End()

		state.Apply(cmd.Delta)
		logx.Debug().
			Str("node", string(cur)).
			Str("goto", string(cmd.Goto)).
			Int("messages", len(state.Messages)).
			Int("retrieved_ids", len(state.RetrievedIDs)).
			Msg("node completed")
		cur = cmd.Goto
	}

	return &Result{
		Messages:       state.Messages,
		RetrievedIDs:   state.RetrievedIDs,
		Classification: state.Classification,
	}, nil
}

func (g *Graph) runNode(ctx context.Context, node Node, state *model.ConversationState, sink EventSink) (Command, error) {
	switch node {
	case NodeGuardrail:
		return g.runGuardrail(ctx, state)
	case NodeAgentBrain:
		return g.runAgentBrain(ctx, state, sink)
	case NodeTools:
		return g.runTools(ctx, state, sink)
	case NodeFriendlyRefusal:
		return g.runFriendlyRefusal(ctx, state, sink)
	}
	return Command{}, fmt.Errorf("unknown node %q", node)
}

// route is the pure transition taken after a reasoning round. mergedCount is
// the message count once the round's output is merged. The cap check comes
// first: past the cap the run ends even if the latest output requests tools,
// which keeps the loop bound independent of model behavior.
func route(mergedCount, maxMessages int, latest *schema.Message) Node {
	if mergedCount > maxMessages {
		return NodeEnd
	}
	if latest != nil && len(latest.ToolCalls) > 0 {
		return NodeTools
	}
	return NodeEnd
}
