package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk-rag/server/internal/agent/model"
	errx "github.com/supportdesk-rag/server/internal/core/error"
)

type fakeSearcher struct {
	docs    []model.RetrievedDocument
	err     error
	query   string
	top     int
	filters map[string]any
}

func (f *fakeSearcher) Search(_ context.Context, query string, top int, filters map[string]any) ([]model.RetrievedDocument, error) {
	f.query = query
	f.top = top
	f.filters = filters
	return f.docs, f.err
}

func TestRegistryClosedSet(t *testing.T) {
	r := NewRegistry(&fakeSearcher{})

	general, ok := r.Lookup(ToolGeneralSearch)
	require.True(t, ok)
	assert.Equal(t, ToolGeneralSearch, general.Name())

	domain, ok := r.Lookup(ToolDomainSearch)
	require.True(t, ok)
	assert.Equal(t, ToolDomainSearch, domain.Name())

	_, ok = r.Lookup("delete_index")
	assert.False(t, ok)

	assert.Len(t, r.Infos(), 2)
}

func TestGeneralSearchExecute(t *testing.T) {
	searcher := &fakeSearcher{docs: []model.RetrievedDocument{
		{ContentID: "c1", Domain: "manuals", Content: "how to reset"},
		{ContentID: "c2", Domain: "warranties", Content: "two years"},
	}}
	r := NewRegistry(searcher)
	tool, _ := r.Lookup(ToolGeneralSearch)

	result, delta, err := tool.Execute(context.Background(), `{"query": "reset router"}`)
	require.NoError(t, err)

	assert.Equal(t, "reset router", searcher.query)
	assert.Equal(t, 20, searcher.top)
	assert.Nil(t, searcher.filters)
	assert.Equal(t, []string{"c1", "c2"}, delta.RetrievedIDs)

	var docs []model.RetrievedDocument
	require.NoError(t, json.Unmarshal([]byte(result), &docs))
	assert.Len(t, docs, 2)
}

func TestGeneralSearchValidation(t *testing.T) {
	r := NewRegistry(&fakeSearcher{})
	tool, _ := r.Lookup(ToolGeneralSearch)

	_, _, err := tool.Execute(context.Background(), `{"query": "  "}`)
	require.Error(t, err)
	assert.Equal(t, errx.KindValidation, errx.KindOf(err))

	_, _, err = tool.Execute(context.Background(), `not json`)
	require.Error(t, err)
	assert.Equal(t, errx.KindValidation, errx.KindOf(err))
}

func TestDomainSearchExecute(t *testing.T) {
	searcher := &fakeSearcher{docs: []model.RetrievedDocument{{ContentID: "w1"}}}
	r := NewRegistry(searcher)
	tool, _ := r.Lookup(ToolDomainSearch)

	_, delta, err := tool.Execute(context.Background(), `{"query": "warranty length", "domain": "warranties"}`)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"domain": "warranties"}, searcher.filters)
	assert.Equal(t, []string{"w1"}, delta.RetrievedIDs)
}

func TestDomainSearchUnknownDomain(t *testing.T) {
	r := NewRegistry(&fakeSearcher{})
	tool, _ := r.Lookup(ToolDomainSearch)

	_, _, err := tool.Execute(context.Background(), `{"query": "q", "domain": "pricing"}`)
	require.Error(t, err)
	assert.Equal(t, errx.KindValidation, errx.KindOf(err))
}

func TestDomainSearchPropagatesSearcherError(t *testing.T) {
	searcher := &fakeSearcher{err: errx.Retrieval(errors.New("backend down"), "search backend unavailable")}
	r := NewRegistry(searcher)
	tool, _ := r.Lookup(ToolDomainSearch)

	_, _, err := tool.Execute(context.Background(), `{"query": "q", "domain": "manuals"}`)
	require.Error(t, err)
	assert.Equal(t, errx.KindRetrieval, errx.KindOf(err))
}

func TestPromptDescriptions(t *testing.T) {
	r := NewRegistry(&fakeSearcher{})
	out := r.PromptDescriptions()

	assert.Contains(t, out, "general_search(query: string) -> str:")
	assert.Contains(t, out, "domain_search(")
	assert.Contains(t, out, "Args:")
}
