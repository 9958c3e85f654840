package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/supportdesk-rag/server/internal/agent/model"
)

// Prediction is what one agent run produced for a dataset question.
type Prediction struct {
	Answer     string   `json:"answer"`
	ContentIDs []string `json:"ids_content"`
}

// Evaluation is the persisted rubric verdict for one prediction.
type Evaluation struct {
	Analysis string              `json:"analysis"`
	Score    model.CoverageLabel `json:"score"`
}

// Record is one golden-dataset entry, progressively enriched by the
// prediction and evaluation passes.
type Record struct {
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	Result     *Prediction `json:"result,omitempty"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}

// Loader reads golden datasets from disk.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads a JSON array dataset.
func (l *Loader) Load() ([]Record, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", l.path, err)
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", l.path, err)
	}
	return records, nil
}

// LoadJSONL reads a dataset with one JSON record per line. Blank lines are
// skipped.
func (l *Loader) LoadJSONL() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", l.path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("parse dataset %s line %d: %w", l.path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", l.path, err)
	}
	return records, nil
}
