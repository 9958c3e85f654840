package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/supportdesk-rag/server/internal/agent/model"
)

const (
	ToolGeneralSearch = "general_search"
	ToolDomainSearch  = "domain_search"

	// searchTop is the fixed result count both retrieval tools request.
	searchTop = 20
)

// Searcher is the retrieval capability the tools run against.
type Searcher interface {
	Search(ctx context.Context, query string, top int, filters map[string]any) ([]model.RetrievedDocument, error)
}

// Tool is one callable action exposed to the model. Execute returns the
// serialized tool result plus a state delta carrying the retrieved content
// ids; it never appends messages itself — the tools node owns the
// tool-result message so it can tag it with the originating call id.
type Tool interface {
	Name() string
	Info() *schema.ToolInfo
	Execute(ctx context.Context, arguments string) (string, model.Delta, error)
}

// Registry is the closed set of tools. No reflection, no open registration:
// the two retrieval variants are enumerated here and nowhere else.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

func NewRegistry(searcher Searcher) *Registry {
	all := []Tool{
		&generalSearch{searcher: searcher},
		&domainSearch{searcher: searcher},
	}
	byName := make(map[string]Tool, len(all))
	for _, t := range all {
		byName[t.Name()] = t
	}
	return &Registry{tools: all, byName: byName}
}

// Lookup resolves a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Infos returns the tool descriptors to bind to the chat model.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, t.Info())
	}
	return infos
}

// PromptDescriptions renders every tool as a textual signature block for the
// reasoning system prompt, derived from the same declared schema the model
// receives as tool descriptors.
func (r *Registry) PromptDescriptions() string {
	blocks := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		blocks = append(blocks, formatToolForPrompt(t.Info()))
	}
	return strings.Join(blocks, "\n\n")
}

func formatToolForPrompt(info *schema.ToolInfo) string {
	params, err := info.ParamsOneOf.ToOpenAPIV3()
	if err != nil || params == nil {
		return fmt.Sprintf("%s() -> str:\n    %s", info.Name, info.Desc)
	}

	required := make(map[string]bool, len(params.Required))
	for _, name := range params.Required {
		required[name] = true
	}

	var signature []string
	var docs []string
	// required params first, then optional, for a stable readable signature
	ordered := make([]string, 0, len(params.Properties))
	ordered = append(ordered, params.Required...)
	for name := range params.Properties {
		if !required[name] {
			ordered = append(ordered, name)
		}
	}
	for _, name := range ordered {
		ref, ok := params.Properties[name]
		if !ok || ref.Value == nil {
			continue
		}
		if required[name] {
			signature = append(signature, fmt.Sprintf("%s: %s", name, ref.Value.Type))
		} else {
			signature = append(signature, fmt.Sprintf("%s: %s = None", name, ref.Value.Type))
		}
		docs = append(docs, fmt.Sprintf("%s: %s", name, ref.Value.Description))
	}

	return fmt.Sprintf("%s(%s) -> str:\n    %s\n\n    Args:\n        %s\n\n    Returns:\n        str result.",
		info.Name,
		strings.Join(signature, ", "),
		strings.TrimSpace(info.Desc),
		strings.Join(docs, "\n        "),
	)
}
