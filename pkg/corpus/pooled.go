package corpus

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helixbyte/ragserve/pkg/chunker"
	"github.com/helixbyte/ragserve/pkg/embeddings"
	"github.com/helixbyte/ragserve/pkg/registry"
	"github.com/helixbyte/ragserve/pkg/vector"
)

// Pooled stores every document in one shared index and scopes retrieval with
// a document-id filter (filter-before-search is delegated to the index
// implementation).
type Pooled struct {
	embedder embeddings.Embedder
	index    vector.Index
	registry *registry.Registry
	logger   *zap.Logger

	// mu makes the index insert and the registry entry commit as one
	// unit: searches take the read side, so an in-flight ingestion is
	// invisible until both have landed.
	mu sync.RWMutex
}

// NewPooled creates a pooled corpus over the given shared index.
func NewPooled(embedder embeddings.Embedder, index vector.Index, reg *registry.Registry, logger *zap.Logger) *Pooled {
	return &Pooled{
		embedder: embedder,
		index:    index,
		registry: reg,
		logger:   logger,
	}
}

// Ingest embeds the chunks, inserts them into the shared index and registers
// the document.
func (p *Pooled) Ingest(ctx context.Context, filename string, chunks []chunker.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: %s", chunker.ErrNoChunks, filename)
	}

	vecs, err := p.embedder.EmbedBatch(ctx, chunkTexts(chunks))
	if err != nil {
		return "", fmt.Errorf("embedding %d chunks of %s: %w", len(chunks), filename, err)
	}

	docID := uuid.NewString()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.index.Add(ctx, toVectorChunks(docID, chunks, vecs)); err != nil {
		return "", fmt.Errorf("indexing %s: %w", filename, err)
	}

	if err := p.registry.Register(registry.Document{
		ID:            docID,
		Filename:      filename,
		ChunkCount:    len(chunks),
		MeanEmbedding: meanEmbedding(vecs),
	}); err != nil {
		return "", err
	}

	p.logger.Info("document ingested",
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
	)

	return docID, nil
}

// Retrieve searches the shared index, filtered to the scope when given.
func (p *Pooled) Retrieve(ctx context.Context, query string, topK int, scope []string) ([]vector.Match, error) {
	vecs, err := p.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var filter *vector.Filter
	if len(scope) > 0 {
		filter = &vector.Filter{DocumentIDs: scope}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	matches, err := p.index.Search(ctx, vecs[0], topK, filter)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	return matches, nil
}

// Close releases the shared index.
func (p *Pooled) Close() error {
	return p.index.Close()
}

var _ Corpus = (*Pooled)(nil)
