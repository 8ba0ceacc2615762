// Package indexer provides document chunking and ingestion into the vector index.
package indexer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/devflow/internal/models"
)

const (
	// DefaultChunkSize is the window length in words.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the number of words shared by consecutive windows.
	DefaultChunkOverlap = 50
)

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
// Overlap must be smaller than size so every window advances.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrConfiguration, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", models.ErrConfiguration, chunkSize, chunkOverlap)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Size returns the window length in words.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the overlap in words.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Split returns the chunk texts for text. Windows start every size-overlap words and the
// last one may be shorter. Text that fits in one window is returned as a single chunk.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= c.chunkSize {
		return []string{strings.Join(words, " ")}
	}
	step := c.chunkSize - c.chunkOverlap
	chunks := make([]string, 0, len(words)/step+1)
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		if chunk := strings.Join(words[i:end], " "); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
