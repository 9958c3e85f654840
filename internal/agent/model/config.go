package model

// ================ Config ================

// GuardrailModelConfig drives the single-shot classification model. The same
// model also generates refusals and rubric scores, so it runs cooler than the
// reasoning model.
type GuardrailModelConfig struct {
	Model       string  `envconfig:"GUARDRAIL_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"GUARDRAIL_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"GUARDRAIL_TEMPERATURE" default:"0.1"`
}

// ReasoningModelConfig drives the tool-calling reasoning model.
type ReasoningModelConfig struct {
	Model       string  `envconfig:"REASONING_MODEL" default:"gemini-2.5-pro"`
	MaxTokens   int     `envconfig:"REASONING_MAX_TOKENS" default:"4096"`
	Temperature float32 `envconfig:"REASONING_TEMPERATURE" default:"0.7"`
}

// ConversationConfig bounds a single run.
type ConversationConfig struct {
	// MaxHistory is how many trailing history messages enter the run.
	MaxHistory int `envconfig:"CONVERSATION_MAX_HISTORY" default:"20"`
	// MaxMessages is the hard cap on accumulated messages; once exceeded the
	// reasoning loop terminates regardless of pending tool calls.
	MaxMessages int `envconfig:"CONVERSATION_MAX_MESSAGES" default:"12"`
}

// SearchConfig locates the knowledge index and the embedding model used for
// the vector half of hybrid queries.
type SearchConfig struct {
	Service     string `envconfig:"AZURE_SEARCH_SERVICE" required:"true"`
	Index       string `envconfig:"AZURE_SEARCH_INDEX" required:"true"`
	APIKey      string `envconfig:"AZURE_SEARCH_KEY" required:"true"`
	APIVersion  string `envconfig:"AZURE_SEARCH_API_VERSION" default:"2024-07-01"`
	VectorField string `envconfig:"MAIN_VECTOR_FIELD" default:"content_vector"`

	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	// EmbeddingCacheTTL bounds how long query embeddings stay in Redis.
	EmbeddingCacheTTL string `envconfig:"EMBEDDING_CACHE_TTL" default:"24h"`
}

// EvalConfig drives the offline evaluation harness.
type EvalConfig struct {
	DataPath     string `envconfig:"EVAL_DATA_PATH" default:"data/golden_dataset.json"`
	RunRoot      string `envconfig:"EVAL_RUN_ROOT" default:"data/evaluations"`
	SampleSize   int    `envconfig:"EVAL_SAMPLE_SIZE" default:"300"`
	BatchSize    int    `envconfig:"EVAL_BATCH_SIZE" default:"4"`
	RetryBackoff string `envconfig:"EVAL_RETRY_BACKOFF" default:"60s"`
}
