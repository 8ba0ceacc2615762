package models

import "time"

// Source types recorded in the catalog.
const (
	SourceManual    = "manual"
	SourceUpload    = "upload"
	SourceDirectory = "directory"
	SourceFile      = "file"
	SourceBookmarks = "bookmarks"
	SourceWeb       = "web"
)

// Source statuses.
const (
	StatusIndexing = "indexing"
	StatusIndexed  = "indexed"
	StatusFailed   = "failed"
)

// Source is a catalog entry for something the user asked to index.
type Source struct {
	ID            int64      `json:"id" db:"id"`
	Type          string     `json:"type" db:"type"`
	Path          string     `json:"path" db:"path"`
	Name          string     `json:"name" db:"name"`
	Status        string     `json:"status" db:"status"`
	IndexedAt     *time.Time `json:"indexed_at,omitempty" db:"indexed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	DocumentCount int        `json:"document_count" db:"-"`
}

// Stats summarizes the catalog and vector index.
type Stats struct {
	IndexedSources int    `json:"indexed_sources"`
	TotalDocuments int    `json:"total_documents"`
	TotalSearches  int    `json:"total_searches"`
	VectorCount    int    `json:"vector_count"`
	IndexBackend   string `json:"index_backend,omitempty"`
}
