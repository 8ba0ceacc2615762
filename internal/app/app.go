// Package app wires configuration into the running DevFlow components.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/devflow/internal/config"
	"github.com/hyperjump/devflow/internal/connectors"
	"github.com/hyperjump/devflow/internal/embedding"
	"github.com/hyperjump/devflow/internal/extract"
	"github.com/hyperjump/devflow/internal/generator"
	"github.com/hyperjump/devflow/internal/indexer"
	"github.com/hyperjump/devflow/internal/ingest"
	"github.com/hyperjump/devflow/internal/models"
	"github.com/hyperjump/devflow/internal/search"
	"github.com/hyperjump/devflow/internal/storage"
	"github.com/hyperjump/devflow/internal/vector"
	"github.com/hyperjump/devflow/internal/watcher"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Config      *config.Config
	Logger      *zap.Logger
	Storage     storage.Storage
	Embedder    embedding.Embedder
	VectorIndex vector.VectorIndex
	Indexer     *indexer.Indexer
	Generator   *generator.Generator // nil when no generator API key is configured
	Web         *connectors.WebClient
	Engine      *search.Engine
	Ingest      *ingest.Service
}

// New builds every component from cfg. Components that fail to open are closed before
// the error is returned.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close(context.WithoutCancel(ctx))
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	c.Embedder, err = newEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}

	c.VectorIndex, err = newVectorIndex(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("vector index initialized",
		zap.String("type", c.VectorIndex.Type()),
		zap.Int("size", c.VectorIndex.Size()),
		zap.Int("dimensions", c.VectorIndex.Dimensions()))

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	extractor := extract.NewExtractor()
	c.Indexer, err = indexer.NewIndexer(c.Embedder, c.VectorIndex, chunker,
		indexer.WithExtractor(extractor), indexer.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	c.Web = connectors.NewWebClient(connectors.WebConfig{
		SearchURL:         cfg.Web.SearchURL,
		APIKey:            cfg.Web.APIKey,
		MaxContentLength:  cfg.Web.MaxContentLength,
		Timeout:           cfg.Web.Timeout,
		RequestsPerSecond: cfg.Web.RequestsPerSecond,
	}, logger)

	engineOpts := []search.Option{search.WithLogger(logger), search.WithHistory(store)}
	if cfg.Generator.APIKey != "" {
		chat, err := generator.NewChatClient(generator.ChatConfig{
			APIKey:      cfg.Generator.APIKey,
			BaseURL:     cfg.Generator.BaseURL,
			Model:       cfg.Generator.Model,
			Temperature: cfg.Generator.Temperature,
			Timeout:     cfg.Generator.Timeout,
		})
		if err != nil {
			return nil, err
		}
		c.Generator = generator.New(chat, generator.WithLogger(logger))
		engineOpts = append(engineOpts, search.WithGenerator(c.Generator))
	} else {
		logger.Info("answer generation disabled", zap.String("api_key_env", cfg.Generator.APIKeyEnv))
	}
	c.Engine = search.NewEngine(c.Embedder, c.VectorIndex, engineOpts...)

	c.Ingest = ingest.NewService(store, c.Indexer, extractor,
		ingest.WithLogger(logger),
		ingest.WithWebClient(c.Web),
		ingest.WithExtensions(cfg.Watch.Extensions))
	return c, nil
}

func newEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.Provider {
	case "mock":
		base = embedding.NewMockEmbedder(cfg.Dimensions)
	case "onnx":
		onnx, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("onnx embedder unavailable, using mock embeddings",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			base = embedding.NewMockEmbedder(cfg.Dimensions)
		} else {
			base = onnx
		}
	case "openai":
		openai, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			BatchSize:         cfg.BatchSize,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		base = openai
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q (supported: mock, onnx, openai)",
			models.ErrConfiguration, cfg.Provider)
	}
	if cfg.CacheSize <= 0 {
		return base, nil
	}
	cached, err := embedding.NewCachedEmbedder(base, cfg.CacheSize)
	if err != nil {
		_ = base.Close()
		return nil, err
	}
	return cached, nil
}

func newVectorIndex(ctx context.Context, cfg *config.Config, logger *zap.Logger) (vector.VectorIndex, error) {
	metric, err := vector.ParseMetric(cfg.Vector.Metric)
	if err != nil {
		return nil, err
	}
	opts := vector.Options{
		Type:       cfg.Vector.Backend,
		Dimensions: cfg.Embedding.Dimensions,
		Metric:     metric,
		Path:       cfg.Storage.IndexPath,
		Qdrant: vector.QdrantConfig{
			URL:        cfg.Vector.Qdrant.URL,
			APIKey:     cfg.Vector.Qdrant.APIKey,
			Collection: cfg.Vector.Qdrant.Collection,
			Timeout:    cfg.Vector.Qdrant.Timeout,
		},
		Logger: logger,
	}
	idx, err := vector.NewVectorIndex(ctx, opts)
	if err == nil {
		return idx, nil
	}
	if !errors.Is(err, models.ErrPersistence) {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Warn("vector snapshot unusable, starting with an empty index (re-ingest sources to rebuild)",
		zap.String("path", cfg.Storage.IndexPath), zap.Error(err))
	return vector.NewPersistentFlat(cfg.Storage.IndexPath, cfg.Embedding.Dimensions, metric)
}

// NewWatcher returns a watcher over the configured directories whose events sync the
// changed file's source.
func (c *Components) NewWatcher() *watcher.Watcher {
	handler := watcher.HandlerFuncs{
		Changed: func(ctx context.Context, path string) error {
			res, err := c.Ingest.SyncFile(ctx, path)
			if err == nil && res != nil {
				c.Logger.Info("file synced", zap.String("path", path), zap.Int("chunks", res.Chunks))
			}
			return err
		},
		Removed: c.Ingest.RemoveFile,
	}
	return watcher.New(
		c.Config.Watch.Directories,
		c.Config.Watch.Extensions,
		c.Config.Watch.RecursiveOrDefault(),
		handler,
		watcher.WithLogger(c.Logger),
	)
}

// RunAutosave persists the vector index every interval until ctx is cancelled. Indexes that
// report no changes since their last snapshot are skipped.
func (c *Components) RunAutosave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d, ok := c.VectorIndex.(interface{ Dirty() bool }); ok && !d.Dirty() {
				continue
			}
			if err := c.VectorIndex.Persist(ctx); err != nil {
				c.Logger.Warn("vector index autosave failed", zap.Error(err))
			}
		}
	}
}

// Close persists the vector index and releases every component.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	if c.VectorIndex != nil {
		if err := c.VectorIndex.Persist(ctx); err != nil {
			errs = append(errs, fmt.Errorf("persist vector index: %w", err))
		}
		if err := c.VectorIndex.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Embedder != nil {
		if err := c.Embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Storage != nil {
		if err := c.Storage.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
