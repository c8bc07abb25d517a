package vector

import "errors"

var (
	// ErrNotFound is returned when a chunk is not found in the index.
	ErrNotFound = errors.New("chunk not found")

	// ErrDimensionMismatch is returned when an embedding's dimensionality
	// does not match the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
