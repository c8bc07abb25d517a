package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
)

// MockEmbedderDimensions is the fixed dimensionality of MockEmbedder vectors.
const MockEmbedderDimensions = 16

// MockEmbedder is a test embedder that returns deterministic embeddings:
// identical texts always map to identical vectors, so a chunk is the top
// result for a query with its own text.
type MockEmbedder struct {
	// Embeddings overrides the derived vector for specific texts.
	Embeddings map[string][]float32

	// FailOn causes EmbedBatch to return an error when any input matches.
	FailOn string

	// Calls counts EmbedBatch invocations.
	Calls int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.Calls++

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if m.FailOn != "" && text == m.FailOn {
			return nil, fmt.Errorf("mock embedding failure for: %s", text)
		}
		if emb, ok := m.Embeddings[text]; ok {
			out = append(out, emb)
			continue
		}
		out = append(out, deriveVector(text))
	}
	return out, nil
}

func (m *MockEmbedder) Dimensions() int {
	return MockEmbedderDimensions
}

func (m *MockEmbedder) Close() error {
	return nil
}

// deriveVector maps text to a pseudo one-hot vector keyed by its hash.
func deriveVector(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	v := make([]float32, MockEmbedderDimensions)
	v[h.Sum32()%MockEmbedderDimensions] = 1
	v[(h.Sum32()>>8)%MockEmbedderDimensions] += 0.5
	return v
}
