// Package memory provides an in-process vector index using brute-force
// cosine similarity. It is the default backend: the whole corpus lives in
// memory and nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/helixbyte/ragserve/pkg/vector"
)

// Index implements vector.Index with a linear scan over stored chunks.
// The scope filter is applied before scoring, so filtered searches never
// starve on topK.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	chunks     []vector.Chunk
	logger     *zap.Logger
}

// NewIndex creates an empty in-memory index for vectors of the given
// dimensionality.
func NewIndex(dimensions int, logger *zap.Logger) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &Index{dimensions: dimensions, logger: logger}, nil
}

// Add appends chunks to the index.
func (ix *Index) Add(_ context.Context, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for _, ch := range chunks {
		if len(ch.Embedding) != ix.dimensions {
			return fmt.Errorf("%w: chunk %s/%d has %d dimensions, index has %d",
				vector.ErrDimensionMismatch, ch.DocumentID, ch.Sequence, len(ch.Embedding), ix.dimensions)
		}
	}

	ix.mu.Lock()
	ix.chunks = append(ix.chunks, chunks...)
	ix.mu.Unlock()

	ix.logger.Debug("added chunks to memory index",
		zap.Int("count", len(chunks)),
	)

	return nil
}

// Search scores every admitted chunk against the query embedding and returns
// the topK by cosine similarity.
func (ix *Index) Search(_ context.Context, embedding []float32, topK int, filter *vector.Filter) ([]vector.Match, error) {
	if len(embedding) != ix.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, len(embedding), ix.dimensions)
	}
	if topK <= 0 {
		topK = 10
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := make([]vector.Match, 0, len(ix.chunks))
	for _, ch := range ix.chunks {
		if !filter.Allows(ch.DocumentID) {
			continue
		}
		matches = append(matches, vector.Match{
			Chunk: ch,
			Score: cosine(ch.Embedding, embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK < len(matches) {
		matches = matches[:topK]
	}

	return matches, nil
}

// Count reports the number of stored chunks.
func (ix *Index) Count(_ context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks), nil
}

// Close releases resources held by the index.
func (ix *Index) Close() error {
	return nil
}

// cosine computes the cosine similarity of two equal-length vectors.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ vector.Index = (*Index)(nil)
