// Package embedding provides text embedding providers and caching.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/devflow/internal/models"
)

// Embedder produces vector embeddings for text. Implementations are long-lived and safe for
// concurrent use; failures are wrapped with models.ErrEmbeddingProvider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// DefaultBatchSize bounds the number of texts sent to a provider in one call.
const DefaultBatchSize = 64

// batched splits texts into groups of at most size and concatenates the results in order.
// Any failing group fails the whole call.
func batched(ctx context.Context, texts []string, size int, embed func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		if err := ctx.Err(); err != nil {
			return nil, ProviderError(err)
		}
		end := min(start+size, len(texts))
		vecs, err := embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", models.ErrEmbeddingProvider, len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// checkDimensions verifies that every vector has the declared length.
func checkDimensions(vecs [][]float32, dimensions int) error {
	for i, v := range vecs {
		if len(v) != dimensions {
			return fmt.Errorf("embedding %d has %d components, expected %d", i, len(v), dimensions)
		}
	}
	return nil
}

// ProviderError marks err as an embedding provider failure. Already marked errors are
// returned unchanged.
func ProviderError(err error) error {
	if err == nil || errors.Is(err, models.ErrEmbeddingProvider) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrEmbeddingProvider, err)
}
