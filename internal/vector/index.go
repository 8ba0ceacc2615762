// Package vector provides vector indexes that store (id, vector, payload) records and answer
// k-nearest-neighbor queries under a fixed distance metric.
package vector

import "context"

// VectorIndex defines vector storage and similarity search. Every backend honors the same
// contract: fixed dimension, upsert on duplicate IDs, results ascending by distance.
// Local backends break distance ties by insertion order; remote backends use the service's order.
type VectorIndex interface {
	// Add inserts or replaces records. Fails with models.ErrDimensionMismatch, leaving the
	// index unchanged, if any vector has the wrong length.
	Add(ctx context.Context, records []Record) error
	// Search returns up to k hits ascending by distance. Local backends keep insertion order
	// for equal distances; remote backends return ties in whatever order the service reports.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	// DeleteByFilter removes every record whose payload[key] equals value and returns the count.
	DeleteByFilter(ctx context.Context, key string, value any) (int, error)
	// Persist writes a durable snapshot. A no-op for backends without local state.
	Persist(ctx context.Context) error
	// Count returns the number of stored records, or an error when it cannot be determined.
	Count(ctx context.Context) (int, error)
	// Size is Count for display; a backend that cannot count reports 0.
	Size() int
	Dimensions() int
	Metric() Metric
	Type() string
	Close() error
}

// Record is a stored vector with its metadata.
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is a single search result. Smaller distance means more similar.
type Hit struct {
	ID       string  `json:"id"`
	Payload  Payload `json:"payload"`
	Distance float64 `json:"distance"`
}
