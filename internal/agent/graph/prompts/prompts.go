package prompts

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/agent_system.txt
var agentSystemPrompt string

//go:embed template/guardrails_system.txt
var guardrailsSystemPrompt string

//go:embed template/guardrails_human.txt
var guardrailsHumanPrompt string

//go:embed template/refusal_system.txt
var refusalSystemPrompt string

//go:embed template/refusal_human.txt
var refusalHumanPrompt string

//go:embed template/evaluator_system.txt
var evaluatorSystemPrompt string

//go:embed template/evaluator_human.txt
var evaluatorHumanPrompt string

//go:embed guardrails_examples.json
var guardrailExamplesJSON []byte

// GuardrailExample is one few-shot classification example loaded from static
// configuration.
type GuardrailExample struct {
	Query          string `json:"query"`
	Classification string `json:"classification"`
	Reason         string `json:"reason"`
}

// LoadGuardrailExamples decodes the embedded few-shot examples.
func LoadGuardrailExamples() ([]GuardrailExample, error) {
	var examples []GuardrailExample
	if err := json.Unmarshal(guardrailExamplesJSON, &examples); err != nil {
		return nil, fmt.Errorf("decode guardrail examples: %w", err)
	}
	return examples, nil
}

// FormatGuardrailExamples renders the few-shot examples as a prompt block.
func FormatGuardrailExamples(examples []GuardrailExample) string {
	var b strings.Builder
	for _, ex := range examples {
		fmt.Fprintf(&b, "- query: %q -> %s (%s)\n", ex.Query, ex.Classification, ex.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

// render formats one template via the Eino prompt component, which also
// triggers prompt callbacks.
func render(ctx context.Context, tmpl string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(tmpl),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// RenderAgentSystem renders the reasoning system prompt with the textual tool
// descriptions derived from the declared tool schemas.
func RenderAgentSystem(ctx context.Context, toolDescriptions string) (string, error) {
	return render(ctx, agentSystemPrompt, map[string]any{"ToolDescriptions": toolDescriptions})
}

// RenderGuardrailSystem renders the classification policy with its few-shot
// examples.
func RenderGuardrailSystem(ctx context.Context, examples string) (string, error) {
	return render(ctx, guardrailsSystemPrompt, map[string]any{"Examples": examples})
}

// RenderGuardrailHuman renders the classification request for the latest user
// message.
func RenderGuardrailHuman(ctx context.Context, inputUser string) (string, error) {
	return render(ctx, guardrailsHumanPrompt, map[string]any{"InputUser": inputUser})
}

// RefusalSystem is the static refusal-generation system prompt.
func RefusalSystem() string {
	return refusalSystemPrompt
}

// RenderRefusalHuman renders the refusal request conditioned on the guardrail
// reject reason.
func RenderRefusalHuman(ctx context.Context, rejectReason string) (string, error) {
	return render(ctx, refusalHumanPrompt, map[string]any{"RejectReason": rejectReason})
}

// EvaluatorSystem is the static rubric-scoring system prompt.
func EvaluatorSystem() string {
	return evaluatorSystemPrompt
}

// RenderEvaluatorHuman renders one rubric-scoring request.
func RenderEvaluatorHuman(ctx context.Context, groundTruth, candidate string) (string, error) {
	return render(ctx, evaluatorHumanPrompt, map[string]any{
		"GroundTruth": groundTruth,
		"Candidate":   candidate,
	})
}
