package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/supportdesk-rag/server/internal/agent/model"
	errx "github.com/supportdesk-rag/server/internal/core/error"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

// generalSearch queries the whole knowledge base with no filter.
type generalSearch struct {
	searcher Searcher
}

type generalSearchInput struct {
	Query string `json:"query"`
}

func (t *generalSearch) Name() string { return ToolGeneralSearch }

func (t *generalSearch) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolGeneralSearch,
		Desc: "Use this tool to search for information in the knowledge base.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "Search phrase",
				Required: true,
			},
		}),
	}
}

func (t *generalSearch) Execute(ctx context.Context, arguments string) (string, model.Delta, error) {
	var in generalSearchInput
	if err := json.Unmarshal([]byte(arguments), &in); err != nil {
		return "", model.Delta{}, errx.Validation(err, "malformed tool arguments")
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", model.Delta{}, errx.Validation(fmt.Errorf("query is required"), "query is required")
	}

	docs, err := t.searcher.Search(ctx, in.Query, searchTop, nil)
	if err != nil {
		return "", model.Delta{}, err
	}

	result, err := json.Marshal(docs)
	if err != nil {
		return "", model.Delta{}, fmt.Errorf("marshal search results: %w", err)
	}

	logx.Debug().Str("tool", ToolGeneralSearch).Int("results", len(docs)).Msg("tool executed")
	return string(result), model.Delta{RetrievedIDs: model.ContentIDs(docs)}, nil
}
