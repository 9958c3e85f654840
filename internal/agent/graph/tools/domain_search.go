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

// Domains enumerates the index partitions the model may filter on.
var Domains = []string{"manuals", "warranties"}

// domainSearch queries one domain partition of the knowledge base.
type domainSearch struct {
	searcher Searcher
}

type domainSearchInput struct {
	Query  string `json:"query"`
	Domain string `json:"domain"`
}

func (t *domainSearch) Name() string { return ToolDomainSearch }

func (t *domainSearch) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolDomainSearch,
		Desc: "Use this tool to search for information in the knowledge base filtered by domain.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "Search phrase",
				Required: true,
			},
			"domain": {
				Type:     "string",
				Desc:     "Search domain: use 'manuals' for product manual queries and 'warranties' for warranty queries",
				Enum:     Domains,
				Required: true,
			},
		}),
	}
}

func (t *domainSearch) Execute(ctx context.Context, arguments string) (string, model.Delta, error) {
	var in domainSearchInput
	if err := json.Unmarshal([]byte(arguments), &in); err != nil {
		return "", model.Delta{}, errx.Validation(err, "malformed tool arguments")
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", model.Delta{}, errx.Validation(fmt.Errorf("query is required"), "query is required")
	}
	if !validDomain(in.Domain) {
		return "", model.Delta{}, errx.Validation(
			fmt.Errorf("unknown domain %q", in.Domain),
			fmt.Sprintf("domain must be one of %s", strings.Join(Domains, ", ")),
		)
	}

	docs, err := t.searcher.Search(ctx, in.Query, searchTop, map[string]any{"domain": in.Domain})
	if err != nil {
		return "", model.Delta{}, err
	}

	result, err := json.Marshal(docs)
	if err != nil {
		return "", model.Delta{}, fmt.Errorf("marshal search results: %w", err)
	}

	logx.Debug().Str("tool", ToolDomainSearch).Str("domain", in.Domain).Int("results", len(docs)).Msg("tool executed")
	return string(result), model.Delta{RetrievedIDs: model.ContentIDs(docs)}, nil
}

func validDomain(domain string) bool {
	for _, d := range Domains {
		if d == domain {
			return true
		}
	}
	return false
}
