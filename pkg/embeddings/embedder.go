// Package embeddings
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding is returned when embedding generation fails.
var ErrEmbedding = errors.New("embedding failed")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// EmbedBatch converts texts into vector embeddings, one per input, in
	// input order. Every returned vector has Dimensions() elements. A
	// failure on any input fails the whole batch; partial results are
	// never returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed output dimensionality of the model.
	Dimensions() int

	// Close releases any resources held by the embedder.
	Close() error
}
