package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGuardrailExamples(t *testing.T) {
	examples, err := LoadGuardrailExamples()
	require.NoError(t, err)
	require.NotEmpty(t, examples)

	for _, ex := range examples {
		assert.NotEmpty(t, ex.Query)
		assert.Contains(t, []string{"accepted", "rejected"}, ex.Classification)
		assert.NotEmpty(t, ex.Reason)
	}
}

func TestRenderGuardrailSystem(t *testing.T) {
	examples, err := LoadGuardrailExamples()
	require.NoError(t, err)

	out, err := RenderGuardrailSystem(context.Background(), FormatGuardrailExamples(examples))
	require.NoError(t, err)

	assert.Contains(t, out, examples[0].Query)
	// the JSON output contract must survive templating verbatim
	assert.Contains(t, out, `"classification"`)
	assert.NotContains(t, out, "{{", "unexpanded template variable")
}

func TestRenderGuardrailHuman(t *testing.T) {
	out, err := RenderGuardrailHuman(context.Background(), "how long is the warranty?")
	require.NoError(t, err)
	assert.Contains(t, out, "how long is the warranty?")
}

func TestRenderAgentSystem(t *testing.T) {
	out, err := RenderAgentSystem(context.Background(), "general_search(query: string) -> str")
	require.NoError(t, err)
	assert.Contains(t, out, "general_search(query: string) -> str")
	assert.NotContains(t, out, "{{")
}

func TestRenderRefusalHuman(t *testing.T) {
	out, err := RenderRefusalHuman(context.Background(), "asks for product prices")
	require.NoError(t, err)
	assert.Contains(t, out, "asks for product prices")
	assert.Contains(t, out, "<reject_reason>")
}

func TestRenderEvaluatorHuman(t *testing.T) {
	out, err := RenderEvaluatorHuman(context.Background(), "the reference", "the candidate")
	require.NoError(t, err)
	assert.Contains(t, out, "ground_truth: the reference")
	assert.Contains(t, out, "candidate: the candidate")
}

func TestStaticPrompts(t *testing.T) {
	assert.True(t, strings.Contains(EvaluatorSystem(), `"analysis"`))
	assert.NotEmpty(t, RefusalSystem())
}
