// Package chunker splits source documents into ordered, bounded-length text
// chunks for embedding and retrieval. Text extraction from binary formats
// (PDF and friends) is delegated to an ExtractFunc so the splitter itself
// stays format-agnostic.
package chunker

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrFileNotFound is returned when the source file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrNoChunks is returned when a document yields no text chunks.
	ErrNoChunks = errors.New("no text chunks generated from the document")
)

// Chunk is a contiguous span of document text, the unit of retrieval.
type Chunk struct {
	// Text is the chunk content.
	Text string

	// Sequence is the zero-based position of the chunk within its document.
	Sequence int
}

// Chunker produces ordered chunks from a source file.
type Chunker interface {
	Chunk(path string) ([]Chunk, error)
}

// ExtractFunc extracts plain text from a source file.
type ExtractFunc func(path string) (string, error)

// TextChunker splits extracted text into overlapping character windows,
// snapping window edges to whitespace where possible.
type TextChunker struct {
	size    int
	overlap int
	extract ExtractFunc
}

// Config holds configuration for the TextChunker.
type Config struct {
	// Size is the target chunk length in characters (defaults to 1000).
	Size int

	// Overlap is the number of characters shared between adjacent chunks
	// (defaults to 100).
	Overlap int

	// Extract overrides text extraction. Defaults to reading the file as
	// plain text.
	Extract ExtractFunc
}

// NewTextChunker creates a TextChunker from the given config.
func NewTextChunker(cfg Config) *TextChunker {
	size := cfg.Size
	if size <= 0 {
		size = 1000
	}

	overlap := cfg.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 100
	}

	extract := cfg.Extract
	if extract == nil {
		extract = readPlainText
	}

	return &TextChunker{size: size, overlap: overlap, extract: extract}
}

// Chunk extracts text from the file at path and splits it into ordered chunks.
func (c *TextChunker) Chunk(path string) ([]Chunk, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("statting %s: %w", path, err)
	}

	text, err := c.extract(path)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", path, err)
	}

	chunks := c.split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, path)
	}

	return chunks, nil
}

// split windows text into chunks of roughly c.size runes with c.overlap runes
// of overlap, preferring to break at whitespace.
func (c *TextChunker) split(text string) []Chunk {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	seq := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Walk back to the nearest whitespace so words stay intact.
			cut := end
			for cut > start && !isSpace(runes[cut-1]) {
				cut--
			}
			if cut > start {
				end = cut
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Text: piece, Sequence: seq})
			seq++
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func readPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var _ Chunker = (*TextChunker)(nil)
