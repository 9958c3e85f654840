package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/supportdesk-rag/server/internal/agent/graph"
	"github.com/supportdesk-rag/server/internal/agent/model"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

// Offline runs share one fixed identity; the serving path never sees it.
const (
	evalUserID         = "1"
	evalConversationID = "1"
)

// AgentRunner is the slice of the agent graph the harness needs.
type AgentRunner interface {
	Run(ctx context.Context, history []*schema.Message, meta graph.Metadata) (*graph.Result, error)
}

// Evaluator drives the two offline passes: prediction (agent runs over a
// dataset sample) and evaluation (rubric scoring of each prediction).
type Evaluator struct {
	agent  AgentRunner
	scorer Scorer

	// BatchSize bounds in-flight agent runs; batches run sequentially.
	BatchSize int
	// RetryBackoff is the pause after a failed batch before its one retry.
	RetryBackoff time.Duration
	// Rand drives sampling; defaults to a time-seeded source.
	Rand *rand.Rand
}

func NewEvaluator(agent AgentRunner, scorer Scorer, batchSize int, retryBackoff time.Duration) *Evaluator {
	if batchSize <= 0 {
		batchSize = 4
	}
	return &Evaluator{
		agent:        agent,
		scorer:       scorer,
		BatchSize:    batchSize,
		RetryBackoff: retryBackoff,
		Rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RunPrediction samples up to sampleSize records without replacement and runs
// the agent over each, filling Result. A failed batch is retried once after
// the back-off; a second failure skips that batch and the pass continues.
func (e *Evaluator) RunPrediction(ctx context.Context, dataset []Record, sampleSize int) ([]Record, error) {
	if len(dataset) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}

	sampled := sampleRecords(dataset, sampleSize, e.Rand)
	if len(sampled) < sampleSize {
		logx.Warn().Int("dataset", len(dataset)).Int("requested", sampleSize).Msg("dataset smaller than sample size, taking all records")
	}

	batches := partition(sampled, e.BatchSize)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := e.runBatch(ctx, batch); err != nil {
			logx.Warn().Err(err).Int("batch", i).Dur("backoff", e.RetryBackoff).Msg("batch failed, backing off before retry")
			if err := sleep(ctx, e.RetryBackoff); err != nil {
				return nil, err
			}
			if err := e.runBatch(ctx, batch); err != nil {
				logx.Error().Err(err).Int("batch", i).Msg("batch failed after retry, skipping")
			}
		}
	}

	return sampled, nil
}

// runBatch runs the agent concurrently over one batch and returns the first
// failure, if any. Successful records keep their Result even when a sibling
// fails.
func (e *Evaluator) runBatch(ctx context.Context, batch []Record) error {
	errs := make([]error, len(batch))
	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.predict(ctx, &batch[i])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) predict(ctx context.Context, rec *Record) error {
	result, err := e.agent.Run(ctx,
		[]*schema.Message{schema.UserMessage(rec.Question)},
		graph.Metadata{UserID: evalUserID, ConversationID: evalConversationID},
	)
	if err != nil {
		return err
	}
	rec.Result = &Prediction{
		Answer:     result.FinalAnswer(),
		ContentIDs: result.RetrievedIDs,
	}
	return nil
}

// EvaluatePrediction scores every predicted record against the rubric. A
// scoring failure (including a label outside the rubric enum) voids that
// record's evaluation and the pass continues; it never downgrades to a
// default label.
func (e *Evaluator) EvaluatePrediction(ctx context.Context, records []Record) ([]Record, error) {
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &records[i]
		if rec.Result == nil {
			continue
		}

		score, err := e.scorer.Score(ctx, rec.Answer, rec.Result.Answer)
		if err != nil {
			logx.Warn().Err(err).Int("record", i).Msg("rubric scoring failed, skipping record")
			continue
		}
		rec.Evaluation = &Evaluation{Analysis: score.Analysis, Score: score.Label}
	}

	summary := Summarize(records)
	logx.Info().
		Int("none", summary[model.CoverageNone]).
		Int("few", summary[model.CoverageFew]).
		Int("most", summary[model.CoverageMost]).
		Int("all", summary[model.CoverageAll]).
		Msg("evaluation summary")

	return records, nil
}

// Summarize counts evaluated records per rubric label.
func Summarize(records []Record) map[model.CoverageLabel]int {
	counts := make(map[model.CoverageLabel]int, len(model.CoverageLabels))
	for _, rec := range records {
		if rec.Evaluation != nil {
			counts[rec.Evaluation.Score]++
		}
	}
	return counts
}

// sampleRecords picks min(n, len(records)) records without replacement.
func sampleRecords(records []Record, n int, rng *rand.Rand) []Record {
	shuffled := make([]Record, len(records))
	copy(shuffled, records)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

// partition splits records into consecutive batches of at most size; the last
// batch holds the remainder.
func partition(records []Record, size int) [][]Record {
	var batches [][]Record
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NextRunDir creates and returns data/evaluations/run_N, where N is one past
// the number of existing run directories.
func NextRunDir(root string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create run root %s: %w", root, err)
	}
	existing, err := filepath.Glob(filepath.Join(root, "run_*"))
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, fmt.Sprintf("run_%d", len(existing)+1))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir %s: %w", dir, err)
	}
	return dir, nil
}

// SavePredictions writes the prediction pass output into the run directory.
func SavePredictions(runDir string, records []Record) error {
	return writeRecords(filepath.Join(runDir, "predictions_results.json"), records)
}

// SaveEvaluations writes the evaluation pass output into the run directory.
func SaveEvaluations(runDir string, records []Record) error {
	return writeRecords(filepath.Join(runDir, "evaluations_results.json"), records)
}

// LoadPredictions reads a previous prediction pass back for re-scoring.
func LoadPredictions(runDir string) ([]Record, error) {
	return NewLoader(filepath.Join(runDir, "predictions_results.json")).Load()
}

func writeRecords(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
