// Package search answers queries against the vector index: raw ranked retrieval and
// generated answers grounded in the retrieved chunks.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/devflow/internal/embedding"
	"github.com/hyperjump/devflow/internal/generator"
	"github.com/hyperjump/devflow/internal/models"
	"github.com/hyperjump/devflow/internal/storage"
	"github.com/hyperjump/devflow/internal/vector"
	"go.uber.org/zap"
)

// Engine retrieves the chunks nearest to a query.
type Engine struct {
	embedder    embedding.Embedder
	vectorIndex vector.VectorIndex
	generator   *generator.Generator
	history     storage.Storage
	logger      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithGenerator enables Ask.
func WithGenerator(g *generator.Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithHistory records every answered query in the catalog's search history.
func WithHistory(s storage.Storage) Option {
	return func(e *Engine) { e.history = s }
}

// NewEngine creates a search engine over vectorIndex using embedder for queries.
func NewEngine(embedder embedding.Embedder, vectorIndex vector.VectorIndex, opts ...Option) *Engine {
	e := &Engine{embedder: embedder, vectorIndex: vectorIndex, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query embeds text and returns up to k chunks ordered by ascending distance, ranked from 1.
// A blank query, a non-positive k or an empty index returns an empty list without embedding.
// An index that cannot report its size is an error, never an empty result.
func (e *Engine) Query(ctx context.Context, text string, k int) ([]*models.RetrievedChunk, error) {
	results := []*models.RetrievedChunk{}
	if strings.TrimSpace(text) == "" || k <= 0 {
		return results, nil
	}
	n, err := e.vectorIndex.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector count failed: %w", err)
	}
	if n == 0 {
		return results, nil
	}
	queryEmbedding, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", embedding.ProviderError(err))
	}
	hits, err := e.vectorIndex.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	for i, hit := range hits {
		results = append(results, &models.RetrievedChunk{
			ID:       hit.ID,
			Text:     hit.Payload.String(models.PayloadText),
			Title:    hit.Payload.String(models.PayloadTitle),
			URL:      hit.Payload.String(models.PayloadURL),
			Distance: hit.Distance,
			Rank:     i + 1,
			Payload:  hit.Payload,
		})
	}
	return results, nil
}

// Search validates query and runs Query, reporting timing.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.QueryResponse, error) {
	start := time.Now()
	if err := ProcessQuery(query); err != nil {
		return nil, err
	}
	results, err := e.Query(ctx, query.Query, query.NResults)
	if err != nil {
		return nil, err
	}
	return &models.QueryResponse{
		Query:     query.Query,
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// Ask retrieves context for query and generates an answer citing it. The query is recorded
// in the search history when one is configured; a history failure is logged, not returned.
func (e *Engine) Ask(ctx context.Context, query *models.SearchQuery) (*models.Answer, error) {
	if e.generator == nil {
		return nil, fmt.Errorf("%w: no answer generator configured", models.ErrConfiguration)
	}
	if err := ProcessQuery(query); err != nil {
		return nil, err
	}
	chunks, err := e.Query(ctx, query.Query, query.NResults)
	if err != nil {
		return nil, err
	}
	answer, err := e.generator.Answer(ctx, query.Query, chunks)
	if err != nil {
		return nil, err
	}
	if e.history != nil {
		if err := e.history.AddSearch(ctx, query.Query, len(chunks)); err != nil {
			e.logger.Warn("failed to record search", zap.Error(err))
		}
	}
	e.logger.Debug("query answered", zap.String("query", query.Query), zap.Int("chunks", len(chunks)))
	return answer, nil
}
