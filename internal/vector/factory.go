package vector

import (
	"context"
	"fmt"

	"github.com/hyperjump/devflow/internal/models"
	"go.uber.org/zap"
)

// IndexType represents the backend used for the vector index.
type IndexType string

const (
	// IndexTypeFlat uses in-memory brute-force search with no durability.
	IndexTypeFlat IndexType = "flat"
	// IndexTypePersistent is the flat index with an atomic file snapshot.
	IndexTypePersistent IndexType = "persistent"
	// IndexTypeQdrant stores vectors in a remote Qdrant collection.
	IndexTypeQdrant IndexType = "qdrant"
)

// Options selects and configures a backend.
type Options struct {
	Type       string
	Dimensions int
	Metric     Metric
	// Path is the snapshot file for the persistent backend.
	Path   string
	Qdrant QdrantConfig
	Logger *zap.Logger
}

// NewVectorIndex creates a vector index of the configured type.
// Supported types: "flat", "persistent" (default), "qdrant". The persistent backend loads its
// snapshot; a corrupt snapshot fails with models.ErrPersistence so the caller can decide to
// fall back to NewPersistentFlat.
func NewVectorIndex(ctx context.Context, opts Options) (VectorIndex, error) {
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", models.ErrConfiguration, opts.Dimensions)
	}
	metric := opts.Metric
	if metric == 0 {
		metric = MetricCosine
	}
	switch IndexType(opts.Type) {
	case IndexTypeFlat:
		return NewFlatIndex(opts.Dimensions, metric)
	case IndexTypePersistent, "":
		return LoadPersistentFlat(opts.Path, opts.Dimensions, metric)
	case IndexTypeQdrant:
		return NewQdrantIndex(ctx, opts.Qdrant, opts.Dimensions, metric, WithQdrantLogger(opts.Logger))
	default:
		return nil, fmt.Errorf("%w: unknown index type %q (supported: flat, persistent, qdrant)", models.ErrConfiguration, opts.Type)
	}
}
