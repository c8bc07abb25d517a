package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load creates a Config from defaults, an optional config.toml in configDir,
// and environment variables.
//
// Config precedence (highest to lowest):
//  1. Environment variables (RAGSERVE_GENERATION_TIMEOUT, RAGSERVE_API_LISTEN, ...)
//  2. config.toml file values
//  3. Defaults from NewDefaultConfig()
func Load(configDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("RAGSERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Embedding: EmbeddingConfig{
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetInt("embedding.dimensions"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Collection: v.GetString("vector_store.collection"),
		},
		Generation: GenerationConfig{
			Target:                v.GetString("generation.target"),
			Model:                 v.GetString("generation.model"),
			Timeout:               v.GetDuration("generation.timeout"),
			MaxConcurrent:         v.GetInt("generation.max_concurrent"),
			MaxInputTokens:        v.GetInt("generation.max_input_tokens"),
			GPUMemoryLimitMB:      v.GetInt("generation.gpu_memory_limit_mb"),
			ReleaseCacheAfterCall: v.GetBool("generation.release_cache_after_call"),
		},
		Chunking: ChunkingConfig{
			Size:    v.GetInt("chunking.size"),
			Overlap: v.GetInt("chunking.overlap"),
		},
		Corpus: CorpusConfig{
			Isolation: v.GetString("corpus.isolation"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers defaults from NewDefaultConfig() into viper using
// dotted-key notation. This keeps NewDefaultConfig as the single source of truth.
func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("api.listen", d.API.Listen)

	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)

	v.SetDefault("generation.target", d.Generation.Target)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.timeout", d.Generation.Timeout)
	v.SetDefault("generation.max_concurrent", d.Generation.MaxConcurrent)
	v.SetDefault("generation.max_input_tokens", d.Generation.MaxInputTokens)
	v.SetDefault("generation.gpu_memory_limit_mb", d.Generation.GPUMemoryLimitMB)
	v.SetDefault("generation.release_cache_after_call", d.Generation.ReleaseCacheAfterCall)

	v.SetDefault("chunking.size", d.Chunking.Size)
	v.SetDefault("chunking.overlap", d.Chunking.Overlap)

	v.SetDefault("corpus.isolation", d.Corpus.Isolation)
}

func validate(cfg *Config) error {
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Generation.MaxConcurrent <= 0 {
		return fmt.Errorf("generation.max_concurrent must be positive, got %d", cfg.Generation.MaxConcurrent)
	}
	if cfg.Generation.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be positive, got %s", cfg.Generation.Timeout)
	}
	switch cfg.Corpus.Isolation {
	case "pooled", "isolated":
	default:
		return fmt.Errorf("corpus.isolation must be %q or %q, got %q", "pooled", "isolated", cfg.Corpus.Isolation)
	}
	switch cfg.VectorStore.Provider {
	case "memory", "sqlitevec", "qdrant":
	default:
		return fmt.Errorf("unsupported vector store provider: %q", cfg.VectorStore.Provider)
	}
	return nil
}
