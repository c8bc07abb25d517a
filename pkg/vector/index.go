// Package vector provides interfaces and implementations for vector storage
// and similarity search over document chunks.
package vector

import "context"

// Chunk is a stored span of document text with its embedding and metadata.
type Chunk struct {
	// Text is the chunk content.
	Text string

	// DocumentID identifies the document the chunk belongs to.
	DocumentID string

	// Sequence is the chunk's position within its document.
	Sequence int

	// Embedding is the vector representation of Text.
	Embedding []float32
}

// Match is a search result with similarity score.
type Match struct {
	Chunk

	// Score is the similarity score (higher = more similar).
	Score float32
}

// Filter restricts a search to a subset of the index.
type Filter struct {
	// DocumentIDs limits matches to chunks of the listed documents.
	// Empty means unrestricted.
	DocumentIDs []string
}

// Allows reports whether the filter admits the given document id.
// A nil filter or an empty id set admits everything.
func (f *Filter) Allows(documentID string) bool {
	if f == nil || len(f.DocumentIDs) == 0 {
		return true
	}
	for _, id := range f.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}

// Index handles storage and similarity retrieval of chunk embeddings.
type Index interface {
	// Add appends chunks with their embeddings to the index. The first
	// call initializes the index; later calls are incremental. Previously
	// returned matches stay valid.
	Add(ctx context.Context, chunks []Chunk) error

	// Search finds the topK most similar chunks to the given embedding,
	// optionally restricted by filter. Requesting more results than the
	// index holds returns everything available. Zero matches after
	// filtering is an empty result, not an error.
	Search(ctx context.Context, embedding []float32, topK int, filter *Filter) ([]Match, error)

	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the index.
	Close() error
}
