package generator

import (
	"context"
	"fmt"

	"github.com/hyperjump/devflow/internal/models"
	"github.com/hyperjump/devflow/pkg/utils"
	"go.uber.org/zap"
)

// previewLength bounds the chunk text quoted in a source citation.
const previewLength = 200

// Generator answers questions from retrieved chunks.
type Generator struct {
	llm    LLM
	logger *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the generator logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a generator around llm.
func New(llm LLM, opts ...Option) *Generator {
	g := &Generator{llm: llm, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the underlying model name.
func (g *Generator) Model() string {
	return g.llm.Model()
}

// Answer builds a prompt from chunks, in rank order, and asks the model. With no chunks it
// returns NoContextAnswer without a model call.
func (g *Generator) Answer(ctx context.Context, query string, chunks []*models.RetrievedChunk) (*models.Answer, error) {
	answer := &models.Answer{Query: query, Model: g.llm.Model(), Sources: Sources(chunks)}
	if len(chunks) == 0 {
		answer.Answer = NoContextAnswer
		return answer, nil
	}
	contexts := make([]string, len(chunks))
	for i, ch := range chunks {
		contexts[i] = ch.Text
	}
	text, err := g.llm.Complete(ctx, BuildPrompt(query, contexts))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	g.logger.Debug("answer generated", zap.String("model", answer.Model), zap.Int("sources", len(chunks)))
	answer.Answer = text
	return answer, nil
}

// Sources converts chunks into citations, numbered in the same order as the prompt.
func Sources(chunks []*models.RetrievedChunk) []models.SourceRef {
	refs := make([]models.SourceRef, len(chunks))
	for i, ch := range chunks {
		refs[i] = models.SourceRef{Title: ch.Title, URL: ch.URL, Preview: utils.Truncate(ch.Text, previewLength)}
	}
	return refs
}
