package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/devflow/internal/docid"
	"github.com/hyperjump/devflow/internal/embedding"
	"github.com/hyperjump/devflow/internal/extract"
	"github.com/hyperjump/devflow/internal/models"
	"github.com/hyperjump/devflow/internal/vector"
	"go.uber.org/zap"
)

// ErrExtensionNotAllowed is returned by FileDocument for files outside the allowed extensions.
// It also matches models.ErrUnsupportedType.
var ErrExtensionNotAllowed = errors.New("extension not allowed")

// Indexer chunks, embeds, and stores documents in the vector index, and removes them by source.
type Indexer struct {
	embedder    embedding.Embedder
	vectorIndex vector.VectorIndex
	chunker     *Chunker
	extractor   *extract.Extractor
	logger      *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (chunks indexed, source removed, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithExtractor sets the extractor used by IngestFile. Without one, files are read as plain text.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer creates an indexer. The embedder dimension must match the index dimension.
func NewIndexer(embedder embedding.Embedder, vectorIndex vector.VectorIndex, chunker *Chunker, opts ...IndexerOption) (*Indexer, error) {
	if embedder == nil || vectorIndex == nil || chunker == nil {
		return nil, fmt.Errorf("%w: indexer requires an embedder, a vector index, and a chunker", models.ErrConfiguration)
	}
	if d := embedder.Dimensions(); d != vectorIndex.Dimensions() {
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, index expects %d", models.ErrConfiguration, d, vectorIndex.Dimensions())
	}
	idx := &Indexer{
		embedder:    embedder,
		vectorIndex: vectorIndex,
		chunker:     chunker,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Chunks splits a document into chunks with deterministic IDs and payload metadata.
// A missing URL falls back to "<source_type>_<source_id>" so chunk IDs stay stable.
func (idx *Indexer) Chunks(input *models.DocumentInput) []*models.Chunk {
	texts := idx.chunker.Split(Preprocess(input.Text))
	url := input.URL
	if url == "" {
		url = fmt.Sprintf("%s_%d", input.SourceType, input.SourceID)
	}
	chunks := make([]*models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &models.Chunk{
			ID:          docid.ChunkID(url, i),
			Text:        text,
			Title:       input.Title,
			URL:         input.URL,
			SourceID:    input.SourceID,
			SourceType:  input.SourceType,
			ChunkIndex:  i,
			TotalChunks: len(texts),
		}
	}
	return chunks
}

// Ingest chunks input, embeds every chunk in one batched call, and adds them to the index in
// one Add. Nothing is added if embedding fails. Returns the number of chunks indexed.
func (idx *Indexer) Ingest(ctx context.Context, input *models.DocumentInput) (int, error) {
	chunks := idx.Chunks(input)
	if len(chunks) == 0 {
		idx.logger.Debug("indexer skipping empty document", zap.String("title", input.Title), zap.Int64("source_id", input.SourceID))
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", embedding.ProviderError(err))
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d embeddings for %d chunks", models.ErrEmbeddingProvider, len(embeddings), len(chunks))
	}
	records := make([]vector.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = vector.Record{ID: ch.ID, Vector: embeddings[i], Payload: ch.Payload()}
	}
	if err := idx.vectorIndex.Add(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to index vectors: %w", err)
	}
	idx.logger.Debug("indexer document indexed",
		zap.String("title", input.Title),
		zap.Int64("source_id", input.SourceID),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// RemoveSource deletes every chunk tagged with sourceID and returns how many were removed.
func (idx *Indexer) RemoveSource(ctx context.Context, sourceID int64) (int, error) {
	n, err := idx.vectorIndex.DeleteByFilter(ctx, models.PayloadSourceID, sourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from vector index: %w", err)
	}
	idx.logger.Debug("indexer source removed", zap.Int64("source_id", sourceID), zap.Int("chunks", n))
	return n, nil
}

// RemoveURL deletes every chunk whose payload url is url, whichever source holds it.
func (idx *Indexer) RemoveURL(ctx context.Context, url string) (int, error) {
	n, err := idx.vectorIndex.DeleteByFilter(ctx, models.PayloadURL, url)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from vector index: %w", err)
	}
	idx.logger.Debug("indexer url removed", zap.String("url", url), zap.Int("chunks", n))
	return n, nil
}

// FileDocument reads and extracts a file into a DocumentInput keyed by its canonical URL.
// If allowedExts is non-empty, the extension must be in the list (case-insensitive).
func (idx *Indexer) FileDocument(path string, allowedExts []string) (*models.DocumentInput, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !ExtensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("%w: %w: %q", models.ErrUnsupportedType, ErrExtensionNotAllowed, ext)
	}
	info, err := os.Stat(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %s", models.ErrNotFound, absPath)
	}
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", models.ErrConfiguration, absPath)
	}
	text, err := idx.extractContent(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	return &models.DocumentInput{
		Text:  text,
		Title: filepath.Base(absPath),
		URL:   docid.FileURL(absPath),
	}, nil
}

func (idx *Indexer) extractContent(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and leading dots.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
