package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk-rag/server/internal/agent/model"
	errx "github.com/supportdesk-rag/server/internal/core/error"
)

func TestParseGuardrailVerdict(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		want     model.Classification
		wantReas string
	}{
		{
			name:     "plain JSON",
			content:  `{"classification": "accepted", "reason": "warranty question"}`,
			want:     model.ClassificationAccepted,
			wantReas: "warranty question",
		},
		{
			name:     "fenced JSON",
			content:  "```json\n{\"classification\": \"rejected\", \"reason\": \"asks for prices\"}\n```",
			want:     model.ClassificationRejected,
			wantReas: "asks for prices",
		},
		{
			name:     "surrounding prose",
			content:  "Here is my verdict: {\"classification\": \"accepted\", \"reason\": \"in scope\"} hope that helps",
			want:     model.ClassificationAccepted,
			wantReas: "in scope",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := ParseGuardrailVerdict(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, verdict.Classification)
			assert.Equal(t, tt.wantReas, verdict.Reason)
		})
	}
}

func TestParseGuardrailVerdictContractViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not JSON", content: "I cannot classify this."},
		{name: "malformed JSON", content: `{"classification": "accepted", "reason":`},
		{name: "classification outside enum", content: `{"classification": "unsure", "reason": "hmm"}`},
		{name: "missing reason", content: `{"classification": "rejected", "reason": "  "}`},
		{name: "empty", content: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGuardrailVerdict(tt.content)
			require.Error(t, err)
			assert.Equal(t, errx.KindContractViolation, errx.KindOf(err))
		})
	}
}

func TestParseCoverageScore(t *testing.T) {
	score, err := ParseCoverageScore(`{"analysis": "covers everything", "evaluation": "all"}`)
	require.NoError(t, err)
	assert.Equal(t, model.CoverageAll, score.Label)
	assert.Equal(t, "covers everything", score.Analysis)

	for _, label := range model.CoverageLabels {
		score, err := ParseCoverageScore(`{"analysis": "x", "evaluation": "` + string(label) + `"}`)
		require.NoError(t, err)
		assert.Equal(t, label, score.Label)
	}
}

func TestParseCoverageScoreOutsideEnum(t *testing.T) {
	_, err := ParseCoverageScore(`{"analysis": "x", "evaluation": "partial"}`)
	require.Error(t, err)
	assert.Equal(t, errx.KindContractViolation, errx.KindOf(err))
}
