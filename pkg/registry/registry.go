// Package registry tracks ingested documents and their aggregate embeddings.
// All state is in-memory; nothing survives a restart.
package registry

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	// ErrConflict is returned when registering a document id that already exists.
	ErrConflict = errors.New("document id already registered")

	// ErrInsufficientData is returned when an operation needs more
	// documents than are registered.
	ErrInsufficientData = errors.New("not enough documents registered")
)

// Document is an ingested document's registry entry. Immutable once registered.
type Document struct {
	// ID is the opaque document identifier.
	ID string

	// Filename is the original source file name.
	Filename string

	// ChunkCount is the number of chunks the document produced.
	ChunkCount int

	// MeanEmbedding is the arithmetic mean of the document's chunk embeddings.
	MeanEmbedding []float32
}

// Info is the listing view of a document.
type Info struct {
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
}

// Registry is a concurrency-safe in-memory document registry.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{docs: make(map[string]Document)}
}

// Register adds a document entry. Registering an id twice fails with
// ErrConflict; entries are never silently overwritten.
func (r *Registry) Register(doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[doc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrConflict, doc.ID)
	}

	r.docs[doc.ID] = doc
	return nil
}

// Get returns the document with the given id, if registered.
func (r *Registry) Get(id string) (Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	return doc, ok
}

// Len reports the number of registered documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// List returns the registered documents keyed by id.
func (r *Registry) List() map[string]Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Info, len(r.docs))
	for id, doc := range r.docs {
		out[id] = Info{Filename: doc.Filename, ChunkCount: doc.ChunkCount}
	}
	return out
}

// PairwiseSimilarity computes the cosine similarity of every document pair's
// mean embeddings. The result is symmetric with a unit diagonal. Fails with
// ErrInsufficientData when fewer than two documents are registered.
func (r *Registry) PairwiseSimilarity() (map[string]map[string]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.docs) < 2 {
		return nil, fmt.Errorf("%w: have %d, need at least 2", ErrInsufficientData, len(r.docs))
	}

	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}

	matrix := make(map[string]map[string]float64, len(ids))
	for _, id := range ids {
		matrix[id] = make(map[string]float64, len(ids))
	}

	for i, a := range ids {
		matrix[a][a] = 1.0
		for _, b := range ids[i+1:] {
			sim := cosine(r.docs[a].MeanEmbedding, r.docs[b].MeanEmbedding)
			matrix[a][b] = sim
			matrix[b][a] = sim
		}
	}

	return matrix, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		na += float64(v) * float64(v)
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
