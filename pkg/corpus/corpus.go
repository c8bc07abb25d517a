// Package corpus manages ingested document content behind one retrieval
// interface, hiding whether documents share a single filtered index
// (pooled mode) or each own an exclusive index (isolated mode).
package corpus

import (
	"context"

	"github.com/helixbyte/ragserve/pkg/chunker"
	"github.com/helixbyte/ragserve/pkg/vector"
)

// Corpus ingests chunked documents and retrieves relevant chunks, scoped to
// one or more document ids or unrestricted.
type Corpus interface {
	// Ingest embeds and stores the chunks of one document and registers
	// it, atomically with respect to Retrieve: readers never observe a
	// partially ingested document. Returns the new document id.
	Ingest(ctx context.Context, filename string, chunks []chunker.Chunk) (string, error)

	// Retrieve returns the topK chunks most similar to query, restricted
	// to the given document ids (empty scope means unrestricted). Unknown
	// scope ids yield no matches rather than an error.
	Retrieve(ctx context.Context, query string, topK int, scope []string) ([]vector.Match, error)

	// Close releases underlying index resources.
	Close() error
}

// meanEmbedding averages chunk embeddings into a document-level vector.
func meanEmbedding(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	mean := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i := range v {
			mean[i] += v[i]
		}
	}
	n := float32(len(vecs))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

// toVectorChunks pairs chunk texts with their embeddings for index insertion.
func toVectorChunks(docID string, chunks []chunker.Chunk, vecs [][]float32) []vector.Chunk {
	out := make([]vector.Chunk, len(chunks))
	for i, ch := range chunks {
		out[i] = vector.Chunk{
			Text:       ch.Text,
			DocumentID: docID,
			Sequence:   ch.Sequence,
			Embedding:  vecs[i],
		}
	}
	return out
}

// chunkTexts extracts the ordered text payloads.
func chunkTexts(chunks []chunker.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return texts
}
