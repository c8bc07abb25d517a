// Package config loads ragserve configuration from defaults, an optional
// config.toml, and RAGSERVE_-prefixed environment variables.
package config

import "time"

// Config is the fully resolved ragserve configuration.
type Config struct {
	API         APIConfig
	Embedding   EmbeddingConfig
	VectorStore VectorStoreConfig
	Generation  GenerationConfig
	Chunking    ChunkingConfig
	Corpus      CorpusConfig
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	// Listen is the address the API server binds to.
	Listen string
}

// EmbeddingConfig configures the embedding model adapter.
type EmbeddingConfig struct {
	// Target is the base URL of the embedding runtime.
	Target string

	// Model is the embedding model identifier.
	Model string

	// Dimensions is the fixed output dimensionality of the embedding model.
	Dimensions int
}

// VectorStoreConfig configures the vector index backend.
type VectorStoreConfig struct {
	// Provider selects the index implementation: "memory", "sqlitevec" or "qdrant".
	Provider string

	// Target is the endpoint for remote providers (qdrant host:port).
	Target string

	// Collection is the collection name for remote providers.
	Collection string
}

// GenerationConfig configures the shared text-generation engine.
type GenerationConfig struct {
	// Target is the base URL of the model runtime.
	Target string

	// Model is the generation model identifier.
	Model string

	// Timeout is the wall-clock budget for a single generation, measured
	// from the moment the request enters the engine (permit wait included).
	Timeout time.Duration

	// MaxConcurrent caps simultaneous inferences.
	MaxConcurrent int

	// MaxInputTokens is the prompt truncation budget.
	MaxInputTokens int

	// GPUMemoryLimitMB is the accelerator memory ceiling passed to the
	// runtime at load time. Zero means no ceiling.
	GPUMemoryLimitMB int

	// ReleaseCacheAfterCall releases accelerator caches after each
	// generation to bound peak memory across repeated calls.
	ReleaseCacheAfterCall bool
}

// ChunkingConfig configures document splitting at ingestion.
type ChunkingConfig struct {
	// Size is the target chunk length in characters.
	Size int

	// Overlap is the number of characters shared between adjacent chunks.
	Overlap int
}

// CorpusConfig selects the document isolation mode.
type CorpusConfig struct {
	// Isolation is "pooled" (one shared index, scope filter) or
	// "isolated" (one exclusive index per document).
	Isolation string
}

// NewDefaultConfig returns a Config populated with sane defaults.
func NewDefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Listen: ":8080",
		},
		Embedding: EmbeddingConfig{
			Target:     "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		VectorStore: VectorStoreConfig{
			Provider:   "memory",
			Target:     "localhost:6334",
			Collection: "ragserve",
		},
		Generation: GenerationConfig{
			Target:                "http://localhost:11434",
			Model:                 "qwen2.5:3b",
			Timeout:               60 * time.Second,
			MaxConcurrent:         2,
			MaxInputTokens:        2048,
			ReleaseCacheAfterCall: true,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 100,
		},
		Corpus: CorpusConfig{
			Isolation: "pooled",
		},
	}
}
