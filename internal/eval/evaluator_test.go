package eval

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk-rag/server/internal/agent/graph"
	"github.com/supportdesk-rag/server/internal/agent/model"
)

type fakeAgent struct {
	mu       sync.Mutex
	calls    int
	failUpTo int // calls numbered 1..failUpTo return an error
}

func (f *fakeAgent) Run(_ context.Context, history []*schema.Message, meta graph.Metadata) (*graph.Result, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if n <= f.failUpTo {
		return nil, fmt.Errorf("quota exceeded")
	}
	return &graph.Result{
		Messages: []*schema.Message{
			history[0],
			{Role: schema.Assistant, Content: "answer to: " + history[0].Content},
		},
		RetrievedIDs:   []string{"doc-1", "doc-2"},
		Classification: model.ClassificationAccepted,
	}, nil
}

type fakeScorer struct {
	labels map[string]model.CoverageLabel
	err    error
}

func (f *fakeScorer) Score(_ context.Context, groundTruth, _ string) (*model.CoverageScore, error) {
	if f.err != nil {
		return nil, f.err
	}
	label, ok := f.labels[groundTruth]
	if !ok {
		label = model.CoverageMost
	}
	return &model.CoverageScore{Analysis: "compared", Label: label}, nil
}

func makeDataset(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			Question: fmt.Sprintf("question %d", i),
			Answer:   fmt.Sprintf("answer %d", i),
		}
	}
	return records
}

func TestPartition(t *testing.T) {
	batches := partition(makeDataset(250), 4)
	require.Len(t, batches, 63)
	for _, b := range batches[:62] {
		assert.Len(t, b, 4)
	}
	assert.Len(t, batches[62], 2)

	assert.Len(t, partition(makeDataset(4), 4), 1)
	assert.Empty(t, partition(nil, 4))
}

func TestSampleRecords(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	sampled := sampleRecords(makeDataset(10), 3, rng)
	assert.Len(t, sampled, 3)

	// without replacement: no question appears twice
	sampled = sampleRecords(makeDataset(50), 50, rng)
	seen := make(map[string]bool)
	for _, rec := range sampled {
		assert.False(t, seen[rec.Question])
		seen[rec.Question] = true
	}

	// smaller dataset than sample size takes everything
	assert.Len(t, sampleRecords(makeDataset(5), 300, rng), 5)
}

func TestRunPrediction(t *testing.T) {
	agent := &fakeAgent{}
	ev := NewEvaluator(agent, nil, 4, 0)
	ev.Rand = rand.New(rand.NewSource(7))

	records, err := ev.RunPrediction(context.Background(), makeDataset(10), 10)
	require.NoError(t, err)
	require.Len(t, records, 10)

	for _, rec := range records {
		require.NotNil(t, rec.Result)
		assert.Equal(t, "answer to: "+rec.Question, rec.Result.Answer)
		assert.Equal(t, []string{"doc-1", "doc-2"}, rec.Result.ContentIDs)
	}
	assert.Equal(t, 10, agent.calls)
}

func TestRunPredictionRetriesFailedBatch(t *testing.T) {
	// the whole first batch fails once, then the retry succeeds
	agent := &fakeAgent{failUpTo: 4}
	ev := NewEvaluator(agent, nil, 4, 0)
	ev.Rand = rand.New(rand.NewSource(7))

	records, err := ev.RunPrediction(context.Background(), makeDataset(8), 8)
	require.NoError(t, err)

	predicted := 0
	for _, rec := range records {
		if rec.Result != nil {
			predicted++
		}
	}
	assert.Equal(t, 8, predicted, "retried batch fills in its predictions")
	assert.Equal(t, 12, agent.calls, "4 failures + 4 retries + 4 second batch")
}

func TestRunPredictionSkipsBatchAfterSecondFailure(t *testing.T) {
	// first batch fails on both attempts
	agent := &fakeAgent{failUpTo: 8}
	ev := NewEvaluator(agent, nil, 4, 0)
	ev.Rand = rand.New(rand.NewSource(7))

	records, err := ev.RunPrediction(context.Background(), makeDataset(8), 8)
	require.NoError(t, err, "a skipped batch does not fail the pass")

	predicted := 0
	for _, rec := range records {
		if rec.Result != nil {
			predicted++
		}
	}
	assert.Equal(t, 4, predicted, "only the second batch carries predictions")
}

func TestRunPredictionEmptyDataset(t *testing.T) {
	ev := NewEvaluator(&fakeAgent{}, nil, 4, 0)
	_, err := ev.RunPrediction(context.Background(), nil, 10)
	require.Error(t, err)
}

func TestEvaluatePrediction(t *testing.T) {
	scorer := &fakeScorer{labels: map[string]model.CoverageLabel{
		"answer 0": model.CoverageAll,
		"answer 1": model.CoverageNone,
	}}
	ev := NewEvaluator(&fakeAgent{}, scorer, 4, 0)

	records := makeDataset(3)
	records[0].Result = &Prediction{Answer: "full answer"}
	records[1].Result = &Prediction{Answer: "unrelated"}
	// records[2] has no prediction (its batch was skipped)

	out, err := ev.EvaluatePrediction(context.Background(), records)
	require.NoError(t, err)

	require.NotNil(t, out[0].Evaluation)
	assert.Equal(t, model.CoverageAll, out[0].Evaluation.Score)
	assert.Equal(t, "compared", out[0].Evaluation.Analysis)
	require.NotNil(t, out[1].Evaluation)
	assert.Equal(t, model.CoverageNone, out[1].Evaluation.Score)
	assert.Nil(t, out[2].Evaluation, "unpredicted records are never scored")
}

func TestEvaluatePredictionSkipsFailedScores(t *testing.T) {
	ev := NewEvaluator(&fakeAgent{}, &fakeScorer{err: fmt.Errorf("label outside enum")}, 4, 0)

	records := makeDataset(2)
	records[0].Result = &Prediction{Answer: "a"}
	records[1].Result = &Prediction{Answer: "b"}

	out, err := ev.EvaluatePrediction(context.Background(), records)
	require.NoError(t, err)
	assert.Nil(t, out[0].Evaluation)
	assert.Nil(t, out[1].Evaluation)
}

func TestSummarize(t *testing.T) {
	records := []Record{
		{Evaluation: &Evaluation{Score: model.CoverageAll}},
		{Evaluation: &Evaluation{Score: model.CoverageAll}},
		{Evaluation: &Evaluation{Score: model.CoverageFew}},
		{},
	}
	counts := Summarize(records)
	assert.Equal(t, 2, counts[model.CoverageAll])
	assert.Equal(t, 1, counts[model.CoverageFew])
	assert.Equal(t, 0, counts[model.CoverageNone])
}

func TestNextRunDir(t *testing.T) {
	root := t.TempDir()

	first, err := NextRunDir(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "run_1"), first)

	second, err := NextRunDir(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "run_2"), second)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	records := []Record{{
		Question: "q",
		Answer:   "a",
		Result:   &Prediction{Answer: "predicted", ContentIDs: []string{"c1"}},
	}}

	require.NoError(t, SavePredictions(dir, records))
	loaded, err := LoadPredictions(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, records[0], loaded[0])
}

func TestLoaderJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"question": "q1", "answer": "a1"},
		{"question": "q2", "answer": "a2"}
	]`), 0o644))

	records, err := NewLoader(path).Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "q1", records[0].Question)
	assert.Equal(t, "a2", records[1].Answer)
}

func TestLoaderJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"question": "q1", "answer": "a1"}`+"\n\n"+`{"question": "q2", "answer": "a2"}`+"\n",
	), 0o644))

	records, err := NewLoader(path).LoadJSONL()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "q2", records[1].Question)
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.json")).Load()
	require.Error(t, err)
}
