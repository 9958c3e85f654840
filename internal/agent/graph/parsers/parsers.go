package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supportdesk-rag/server/internal/agent/model"
	errx "github.com/supportdesk-rag/server/internal/core/error"
)

// maxContentLen guards against pathological model outputs.
const maxContentLen = 64 * 1024

// extractJSON pulls the first JSON object out of a model response, tolerating
// markdown code fences and surrounding prose.
func extractJSON(content string) (string, error) {
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return content[start : end+1], nil
}

// ParseGuardrailVerdict decodes and validates the guardrail classification
// output. Any value outside the two-element enum, or a missing reason, is a
// contract violation: the structured-output contract was broken and there is
// no silent default.
func ParseGuardrailVerdict(content string) (*model.GuardrailVerdict, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, errx.ContractViolation(err, "guardrail output is not valid JSON")
	}

	var verdict model.GuardrailVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, errx.ContractViolation(err, "guardrail output is not valid JSON")
	}
	if !verdict.Classification.Valid() {
		return nil, errx.ContractViolation(
			fmt.Errorf("classification %q outside enum", verdict.Classification),
			"guardrail classification outside enum",
		)
	}
	if strings.TrimSpace(verdict.Reason) == "" {
		return nil, errx.ContractViolation(
			fmt.Errorf("empty reason"),
			"guardrail reason missing",
		)
	}
	return &verdict, nil
}

// ParseCoverageScore decodes and validates one rubric-scoring output against
// the four-way coverage enum.
func ParseCoverageScore(content string) (*model.CoverageScore, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, errx.ContractViolation(err, "evaluator output is not valid JSON")
	}

	var score model.CoverageScore
	if err := json.Unmarshal([]byte(raw), &score); err != nil {
		return nil, errx.ContractViolation(err, "evaluator output is not valid JSON")
	}
	if !score.Label.Valid() {
		return nil, errx.ContractViolation(
			fmt.Errorf("evaluation %q outside enum", score.Label),
			"coverage label outside enum",
		)
	}
	return &score, nil
}
