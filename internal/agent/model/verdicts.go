package model

// GuardrailVerdict is the structured output of the guardrail classification
// call. Reason is always populated; it is ignored on acceptance and feeds the
// refusal generation on rejection.
type GuardrailVerdict struct {
	Classification Classification `json:"classification"`
	Reason         string         `json:"reason"`
}

// CoverageLabel is the four-way rubric grading how much of a reference
// answer's content is present in a candidate answer.
type CoverageLabel string

const (
	CoverageNone CoverageLabel = "none"
	CoverageFew  CoverageLabel = "few"
	CoverageMost CoverageLabel = "most"
	CoverageAll  CoverageLabel = "all"
)

// Valid reports whether the label is one of the four rubric categories.
func (l CoverageLabel) Valid() bool {
	switch l {
	case CoverageNone, CoverageFew, CoverageMost, CoverageAll:
		return true
	}
	return false
}

// CoverageLabels lists the rubric categories in ascending coverage order.
var CoverageLabels = []CoverageLabel{CoverageNone, CoverageFew, CoverageMost, CoverageAll}

// CoverageScore is the structured output of one rubric-scoring call.
type CoverageScore struct {
	Analysis string        `json:"analysis"`
	Label    CoverageLabel `json:"evaluation"`
}
