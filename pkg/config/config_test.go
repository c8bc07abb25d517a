package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.API.Listen != ":8080" {
		t.Errorf("expected default api.listen :8080, got %q", cfg.API.Listen)
	}
	if cfg.Generation.MaxConcurrent != 2 {
		t.Errorf("expected default max_concurrent 2, got %d", cfg.Generation.MaxConcurrent)
	}
	if cfg.Generation.MaxInputTokens != 2048 {
		t.Errorf("expected default max_input_tokens 2048, got %d", cfg.Generation.MaxInputTokens)
	}
	if cfg.Generation.Timeout != 60*time.Second {
		t.Errorf("expected default timeout 60s, got %s", cfg.Generation.Timeout)
	}
	if cfg.Corpus.Isolation != "pooled" {
		t.Errorf("expected default isolation pooled, got %q", cfg.Corpus.Isolation)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RAGSERVE_GENERATION_MAX_CONCURRENT", "4")
	t.Setenv("RAGSERVE_GENERATION_TIMEOUT", "15s")
	t.Setenv("RAGSERVE_VECTOR_STORE_PROVIDER", "qdrant")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Generation.MaxConcurrent != 4 {
		t.Errorf("env override not applied, got %d", cfg.Generation.MaxConcurrent)
	}
	if cfg.Generation.Timeout != 15*time.Second {
		t.Errorf("env override not applied, got %s", cfg.Generation.Timeout)
	}
	if cfg.VectorStore.Provider != "qdrant" {
		t.Errorf("env override not applied, got %q", cfg.VectorStore.Provider)
	}
}

func TestLoadRejectsBadIsolation(t *testing.T) {
	t.Setenv("RAGSERVE_CORPUS_ISOLATION", "sharded")

	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for invalid isolation mode")
	}
}

func TestLoadRejectsBadProvider(t *testing.T) {
	t.Setenv("RAGSERVE_VECTOR_STORE_PROVIDER", "faiss")

	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
