package retriever

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	errx "github.com/supportdesk-rag/server/internal/core/error"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

// Embedder turns query text into the vector half of a hybrid search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbedder embeds queries with the Gemini embedding model, with an
// optional Redis cache in front keyed by the query hash. Cache failures are
// logged and ignored; only the embedding call itself can fail the request.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	cache  redis.Cmdable
	ttl    time.Duration
}

// NewGeminiEmbedder builds an embedder. cache may be nil to disable caching.
func NewGeminiEmbedder(client *genai.Client, model string, cache redis.Cmdable, ttl time.Duration) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model, cache: cache, ttl: ttl}
}

func (e *GeminiEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.cacheKey(text)
	if e.cache != nil {
		if raw, err := e.cache.Get(ctx, key).Result(); err == nil {
			var vec []float32
			if err := json.Unmarshal([]byte(raw), &vec); err == nil && len(vec) > 0 {
				return vec, nil
			}
			logx.Warn().Str("key", key).Msg("discarding undecodable cached embedding")
		} else if err != redis.Nil {
			logx.Warn().Err(err).Str("key", key).Msg("embedding cache read failed")
		}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, errx.Retrieval(err, "embedding request failed")
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errx.Retrieval(fmt.Errorf("empty embedding for model %s", e.model), "embedding request failed")
	}
	vec := resp.Embeddings[0].Values

	if e.cache != nil {
		if b, err := json.Marshal(vec); err == nil {
			if err := e.cache.Set(ctx, key, b, e.ttl).Err(); err != nil {
				logx.Warn().Err(err).Str("key", key).Msg("embedding cache write failed")
			}
		}
	}
	return vec, nil
}

var _ Embedder = (*GeminiEmbedder)(nil)
