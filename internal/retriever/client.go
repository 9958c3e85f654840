package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/supportdesk-rag/server/internal/agent/model"
	errx "github.com/supportdesk-rag/server/internal/core/error"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

// Config locates the search index. Endpoint is derived from the service name
// when empty, matching the hosted-service URL scheme.
type Config struct {
	Service     string
	Endpoint    string
	Index       string
	APIKey      string
	APIVersion  string
	VectorField string
}

// Client issues hybrid (lexical + vector) queries against the document search
// backend and normalises the results. It does not retry; retries belong to
// the orchestration layer.
type Client struct {
	httpc       *http.Client
	endpoint    string
	index       string
	apiKey      string
	apiVersion  string
	vectorField string
	embedder    Embedder
}

func New(cfg Config, embedder Embedder) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.search.windows.net", cfg.Service)
	}
	return &Client{
		httpc:       &http.Client{Timeout: 30 * time.Second},
		endpoint:    strings.TrimRight(endpoint, "/"),
		index:       cfg.Index,
		apiKey:      cfg.APIKey,
		apiVersion:  cfg.APIVersion,
		vectorField: cfg.VectorField,
		embedder:    embedder,
	}
}

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
	Fields string    `json:"fields"`
}

type searchRequest struct {
	Search        string        `json:"search"`
	Top           int           `json:"top"`
	Filter        string        `json:"filter,omitempty"`
	VectorQueries []vectorQuery `json:"vectorQueries"`
}

type searchResponse struct {
	Value []model.RetrievedDocument `json:"value"`
}

// Search runs a hybrid query: the text goes in as-is for lexical matching and
// is embedded for the nearest-neighbour half. Results are deduplicated by
// content id, first occurrence wins.
func (c *Client) Search(ctx context.Context, query string, top int, filters map[string]any) ([]model.RetrievedDocument, error) {
	filter, err := BuildFilter(filters)
	if err != nil {
		return nil, err
	}

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	reqBody := searchRequest{
		Search: query,
		Top:    top,
		Filter: filter,
		VectorQueries: []vectorQuery{{
			Kind:   "vector",
			Vector: vector,
			K:      top,
			Fields: c.vectorField,
		}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errx.Retrieval(err, "encode search request")
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", c.endpoint, c.index, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errx.Retrieval(err, "build search request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errx.Retrieval(err, "search backend unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logx.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("search backend returned error")
		return nil, errx.Retrieval(fmt.Errorf("search backend status %d", resp.StatusCode), "search backend error")
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errx.Retrieval(err, "decode search response")
	}

	docs := DedupeByContentID(out.Value)
	logx.Debug().Str("query", query).Int("hits", len(out.Value)).Int("unique", len(docs)).Msg("search completed")
	return docs, nil
}

// BuildFilter converts a filter mapping to an OData expression. A string
// value becomes an equality predicate; a slice of strings becomes an OR group
// over that field; entries are joined with "and" in lexical key order. Empty
// slices are skipped. Any other value type is a configuration error.
//
//	{"category": "health", "region": ["north", "south"]}
//	-> "category eq 'health' and (region eq 'north' or region eq 'south')"
func BuildFilter(filters map[string]any) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var expressions []string
	for _, key := range keys {
		switch value := filters[key].(type) {
		case string:
			expressions = append(expressions, fmt.Sprintf("%s eq '%s'", key, value))
		case []string:
			if len(value) == 0 {
				continue
			}
			parts := make([]string, 0, len(value))
			for _, v := range value {
				parts = append(parts, fmt.Sprintf("%s eq '%s'", key, v))
			}
			expressions = append(expressions, "("+strings.Join(parts, " or ")+")")
		default:
			return "", errx.Configuration(
				fmt.Errorf("filter %s has unsupported type %T", key, value),
				"unsupported filter value type",
			)
		}
	}

	return strings.Join(expressions, " and "), nil
}

// DedupeByContentID drops documents whose content id was already seen,
// keeping the first occurrence.
func DedupeByContentID(docs []model.RetrievedDocument) []model.RetrievedDocument {
	seen := make(map[string]struct{}, len(docs))
	out := make([]model.RetrievedDocument, 0, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.ContentID]; dup {
			continue
		}
		seen[d.ContentID] = struct{}{}
		out = append(out, d)
	}
	return out
}
