// Package storage defines the persistence interface for the source catalog.
package storage

import (
	"context"

	"github.com/hyperjump/devflow/internal/models"
)

// Storage records what was indexed: sources, their documents, and search history.
// The vector index never reads from it.
type Storage interface {
	// Source operations
	CreateSource(ctx context.Context, sourceType, path, name string) (*models.Source, error)
	UpdateSourceStatus(ctx context.Context, id int64, status string) error
	GetSource(ctx context.Context, id int64) (*models.Source, error)
	FindSourceByPath(ctx context.Context, sourceType, path string) (*models.Source, error)
	ListSources(ctx context.Context) ([]*models.Source, error)
	DeleteSource(ctx context.Context, id int64) error

	// Document operations
	AddDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context, sourceID int64) ([]*models.Document, error)
	FindDocumentByURL(ctx context.Context, url string) (*models.Document, error)
	DeleteDocumentsByURL(ctx context.Context, url string) (int, error)

	// Search history
	AddSearch(ctx context.Context, query string, resultsCount int) error

	// Stats
	Stats(ctx context.Context) (*models.Stats, error)

	Close() error
}
