// Package models defines core data structures for sources, chunks, and retrieval results.
package models

import "time"

// Payload keys stored alongside every chunk vector.
const (
	PayloadText        = "text"
	PayloadTitle       = "title"
	PayloadURL         = "url"
	PayloadSourceID    = "source_id"
	PayloadSourceType  = "source_type"
	PayloadChunkIndex  = "chunk_index"
	PayloadTotalChunks = "total_chunks"
)

// Document is a catalog row describing one ingested piece of content.
type Document struct {
	ID             string    `json:"id" db:"id"`
	SourceID       int64     `json:"source_id" db:"source_id"`
	Title          string    `json:"title" db:"title"`
	URL            string    `json:"url" db:"url"`
	ContentPreview string    `json:"content_preview" db:"content_preview"`
	IndexedAt      time.Time `json:"indexed_at" db:"indexed_at"`
}

// Chunk is a contiguous window of a document's words together with its indexed metadata.
type Chunk struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	SourceID    int64  `json:"source_id"`
	SourceType  string `json:"source_type"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

// Payload returns the metadata map stored with the chunk vector.
func (c *Chunk) Payload() map[string]any {
	return map[string]any{
		PayloadText:        c.Text,
		PayloadTitle:       c.Title,
		PayloadURL:         c.URL,
		PayloadSourceID:    c.SourceID,
		PayloadSourceType:  c.SourceType,
		PayloadChunkIndex:  int64(c.ChunkIndex),
		PayloadTotalChunks: int64(c.TotalChunks),
	}
}

// DocumentInput is the input for ingesting one piece of text.
type DocumentInput struct {
	Text       string `json:"text"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
	SourceID   int64  `json:"source_id"`
	SourceType string `json:"source_type"`
}
