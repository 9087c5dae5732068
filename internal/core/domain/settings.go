package domain

import "time"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size. Zero derives it from the model.
	Dimensions int

	// BatchSize bounds chunks per provider call.
	BatchSize int

	// BatchConcurrency bounds concurrent batches per document.
	BatchConcurrency int

	// MaxRetries bounds retries per batch.
	MaxRetries int

	// InitialBackoff is the first retry delay. It doubles per attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the total retry duration of one batch.
	MaxBackoff time.Duration

	// RequestsPerSecond throttles provider calls. Zero disables throttling.
	RequestsPerSecond float64

	// QueryCacheSize is the LRU size for query embeddings.
	QueryCacheSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if e.Provider != AIProviderOllama && e.Provider != AIProviderOpenAI {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ResolvedDimensions returns Dimensions or the known size for Model.
func (e EmbeddingSettings) ResolvedDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	return EmbeddingDimensions()[e.Model]
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// MaxContextTokens bounds the packed retrieval context.
	MaxContextTokens int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ExtractionSettings configures the partitioner.
type ExtractionSettings struct {
	Strategy ExtractionStrategy

	// MaxFallbacks bounds retries of a failing page with the alternate strategy.
	MaxFallbacks int

	// OCRURL is the OCR service endpoint. Empty disables OCR.
	OCRURL string

	// OCRTimeout bounds one page's OCR call.
	OCRTimeout time.Duration
}

// ChunkingSettings configures the chunker.
type ChunkingSettings struct {
	MaxTokens     int
	OverlapTokens int
}

// Reranker names.
const (
	RerankerNone    = "none"
	RerankerLexical = "lexical"
	RerankerLLM     = "llm"
)

// RerankSettings selects the optional rerank stage.
type RerankSettings struct {
	// Method is RerankerNone, RerankerLexical or RerankerLLM.
	Method string
}

// ClusteringSettings configures the semantic clusterer.
type ClusteringSettings struct {
	Threshold float64
}

// PipelineSettings configures the indexing worker pool.
type PipelineSettings struct {
	// Workers bounds documents indexed concurrently.
	Workers int

	// LockTTL bounds how long a distributed document lock is held.
	LockTTL time.Duration
}

// StorageSettings selects the index backends.
type StorageSettings struct {
	// DataDir holds the sqlite database.
	DataDir string

	// VectorBackend is "sqlite", "pgvector" or "memory".
	VectorBackend string

	// PostgresDSN is required for the pgvector backend.
	PostgresDSN string

	// RedisAddr enables the distributed document lock when set.
	RedisAddr string
}

// ServerSettings configures the HTTP surfaces.
type ServerSettings struct {
	Addr string
}

// Settings holds all application settings.
type Settings struct {
	Extraction ExtractionSettings
	Chunking   ChunkingSettings
	Embedding  EmbeddingSettings
	Retrieval  RetrievalConfig
	Rerank     RerankSettings
	Clustering ClusteringSettings
	Pipeline   PipelineSettings
	Storage    StorageSettings
	LLM        LLMSettings
	Server     ServerSettings
}

// DefaultSettings returns settings with the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		Extraction: ExtractionSettings{
			Strategy:     StrategyAuto,
			MaxFallbacks: 1,
			OCRTimeout:   60 * time.Second,
		},
		Chunking: ChunkingSettings{
			MaxTokens:     512,
			OverlapTokens: 32,
		},
		Embedding: EmbeddingSettings{
			Provider:          AIProviderOllama,
			Model:             "nomic-embed-text",
			BatchSize:         32,
			BatchConcurrency:  2,
			MaxRetries:        3,
			InitialBackoff:    200 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			RequestsPerSecond: 0,
			QueryCacheSize:    256,
		},
		Retrieval: DefaultRetrievalConfig(),
		Rerank: RerankSettings{
			Method: RerankerLexical,
		},
		Clustering: ClusteringSettings{
			Threshold: DefaultClusterThreshold,
		},
		Pipeline: PipelineSettings{
			Workers: 4,
			LockTTL: 10 * time.Minute,
		},
		Storage: StorageSettings{
			VectorBackend: "sqlite",
		},
		LLM: LLMSettings{
			Provider:         AIProviderOllama,
			Model:            "llama3.2",
			MaxContextTokens: 6000,
		},
		Server: ServerSettings{
			Addr: "127.0.0.1:8080",
		},
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
