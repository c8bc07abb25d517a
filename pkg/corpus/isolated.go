package corpus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helixbyte/ragserve/pkg/chunker"
	"github.com/helixbyte/ragserve/pkg/embeddings"
	"github.com/helixbyte/ragserve/pkg/registry"
	"github.com/helixbyte/ragserve/pkg/vector"
)

// IndexFactory creates an exclusive index for one document session.
type IndexFactory func(ctx context.Context, name string) (vector.Index, error)

// Isolated gives every document its own exclusive index, so one tenant's
// retrieval can never touch another's content. Scoped searches hit only the
// named sessions; unrestricted searches fan out and merge by score.
type Isolated struct {
	embedder embeddings.Embedder
	factory  IndexFactory
	registry *registry.Registry
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]vector.Index
}

// NewIsolated creates an isolated corpus. The factory is called once per
// ingested document.
func NewIsolated(embedder embeddings.Embedder, factory IndexFactory, reg *registry.Registry, logger *zap.Logger) *Isolated {
	return &Isolated{
		embedder: embedder,
		factory:  factory,
		registry: reg,
		logger:   logger,
		sessions: make(map[string]vector.Index),
	}
}

// Ingest embeds the chunks into a freshly created exclusive index. The
// session becomes visible to Retrieve only after the index is fully
// populated and the document registered.
func (s *Isolated) Ingest(ctx context.Context, filename string, chunks []chunker.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: %s", chunker.ErrNoChunks, filename)
	}

	vecs, err := s.embedder.EmbedBatch(ctx, chunkTexts(chunks))
	if err != nil {
		return "", fmt.Errorf("embedding %d chunks of %s: %w", len(chunks), filename, err)
	}

	docID := uuid.NewString()

	index, err := s.factory(ctx, docID)
	if err != nil {
		return "", fmt.Errorf("creating session index for %s: %w", filename, err)
	}

	if err := index.Add(ctx, toVectorChunks(docID, chunks, vecs)); err != nil {
		index.Close()
		return "", fmt.Errorf("indexing %s: %w", filename, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Register(registry.Document{
		ID:            docID,
		Filename:      filename,
		ChunkCount:    len(chunks),
		MeanEmbedding: meanEmbedding(vecs),
	}); err != nil {
		index.Close()
		return "", err
	}
	s.sessions[docID] = index

	s.logger.Info("document ingested into exclusive session",
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
	)

	return docID, nil
}

// Retrieve searches the scoped sessions and merges matches by score.
// Unknown session ids are skipped, yielding no matches for them.
func (s *Isolated) Retrieve(ctx context.Context, query string, topK int, scope []string) ([]vector.Match, error) {
	vecs, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	s.mu.RLock()
	targets := make([]vector.Index, 0, len(s.sessions))
	if len(scope) == 0 {
		for _, ix := range s.sessions {
			targets = append(targets, ix)
		}
	} else {
		for _, id := range scope {
			if ix, ok := s.sessions[id]; ok {
				targets = append(targets, ix)
			}
		}
	}
	s.mu.RUnlock()

	var merged []vector.Match
	for _, ix := range targets {
		matches, err := ix.Search(ctx, vecs[0], topK, nil)
		if err != nil {
			return nil, fmt.Errorf("searching session index: %w", err)
		}
		merged = append(merged, matches...)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if topK > 0 && topK < len(merged) {
		merged = merged[:topK]
	}

	return merged, nil
}

// Close releases every session index.
func (s *Isolated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for id, ix := range s.sessions {
		if err := ix.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.sessions, id)
	}
	return firstErr
}

var _ Corpus = (*Isolated)(nil)
