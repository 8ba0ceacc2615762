// Package ingest runs the catalog-aware ingestion flows: every flow records a source, feeds
// the indexer and records one document row per ingested item.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/devflow/internal/connectors"
	"github.com/hyperjump/devflow/internal/docid"
	"github.com/hyperjump/devflow/internal/extract"
	"github.com/hyperjump/devflow/internal/indexer"
	"github.com/hyperjump/devflow/internal/models"
	"github.com/hyperjump/devflow/internal/storage"
	"github.com/hyperjump/devflow/pkg/utils"
	"go.uber.org/zap"
)

// previewLength bounds the content preview stored with each document row.
const previewLength = 200

// Result summarizes one ingestion.
type Result struct {
	SourceID  int64 `json:"source_id"`
	Documents int   `json:"documents"`
	Chunks    int   `json:"chunks"`
	Skipped   int   `json:"skipped,omitempty"`
}

// Service ties the source catalog to the indexer.
type Service struct {
	store      storage.Storage
	indexer    *indexer.Indexer
	extractor  *extract.Extractor
	web        *connectors.WebClient
	extensions []string
	logger     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWebClient enables web ingestion and bookmark scraping.
func WithWebClient(w *connectors.WebClient) Option {
	return func(s *Service) { s.web = w }
}

// WithExtensions sets the file extensions accepted by directory and file ingestion.
func WithExtensions(exts []string) Option {
	return func(s *Service) {
		if len(exts) > 0 {
			s.extensions = exts
		}
	}
}

// NewService creates an ingestion service. The extractor is used for uploads and files.
func NewService(store storage.Storage, idx *indexer.Indexer, extractor *extract.Extractor, opts ...Option) *Service {
	s := &Service{
		store:      store,
		indexer:    idx,
		extractor:  extractor,
		extensions: connectors.DefaultExtensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extensions returns the file extensions accepted by directory and file ingestion.
func (s *Service) Extensions() []string {
	return s.extensions
}

// run creates a source, calls fill, and finalizes the source status. When fill fails, any
// chunks already indexed for the source are removed and the source is marked failed.
func (s *Service) run(ctx context.Context, sourceType, path, name string, fill func(src *models.Source, res *Result) error) (*Result, error) {
	src, err := s.store.CreateSource(ctx, sourceType, path, name)
	if err != nil {
		return nil, err
	}
	res := &Result{SourceID: src.ID}
	if err := fill(src, res); err != nil {
		// Cleanup must run even when ctx was cancelled mid-ingest.
		cleanupCtx := context.WithoutCancel(ctx)
		if _, rmErr := s.indexer.RemoveSource(cleanupCtx, src.ID); rmErr != nil {
			s.logger.Warn("failed to remove chunks of failed source", zap.Int64("source_id", src.ID), zap.Error(rmErr))
		}
		if stErr := s.store.UpdateSourceStatus(cleanupCtx, src.ID, models.StatusFailed); stErr != nil {
			s.logger.Warn("failed to mark source failed", zap.Int64("source_id", src.ID), zap.Error(stErr))
		}
		return res, fmt.Errorf("ingest %s source %d: %w", sourceType, src.ID, err)
	}
	if err := s.store.UpdateSourceStatus(ctx, src.ID, models.StatusIndexed); err != nil {
		return res, err
	}
	s.logger.Info("source indexed",
		zap.Int64("source_id", src.ID),
		zap.String("type", sourceType),
		zap.Int("documents", res.Documents),
		zap.Int("chunks", res.Chunks))
	return res, nil
}

// ingestDocument indexes input under src and records its document row. A URL belongs to
// one source at a time: chunks and rows recorded for it earlier, under any source, are
// dropped first so chunk IDs derived from the URL never straddle two sources.
func (s *Service) ingestDocument(ctx context.Context, src *models.Source, input *models.DocumentInput, res *Result) error {
	input.SourceID = src.ID
	input.SourceType = src.Type
	if input.URL != "" {
		if err := s.releaseURL(ctx, input.URL, src.ID); err != nil {
			return err
		}
	}
	n, err := s.indexer.Ingest(ctx, input)
	if err != nil {
		return err
	}
	if err := s.store.AddDocument(ctx, &models.Document{
		ID:             docid.DocumentID(input.Text),
		SourceID:       src.ID,
		Title:          input.Title,
		URL:            input.URL,
		ContentPreview: utils.Truncate(input.Text, previewLength),
	}); err != nil {
		return err
	}
	res.Documents++
	res.Chunks += n
	return nil
}

// AddText ingests a manually entered document.
func (s *Service) AddText(ctx context.Context, title, content, url string) (*Result, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content cannot be empty", models.ErrConfiguration)
	}
	return s.run(ctx, models.SourceManual, url, title, func(src *models.Source, res *Result) error {
		return s.ingestDocument(ctx, src, &models.DocumentInput{Text: content, Title: title, URL: url}, res)
	})
}

// releaseURL removes the chunks and document rows recorded for url.
func (s *Service) releaseURL(ctx context.Context, url string, newOwner int64) error {
	prev, err := s.store.FindDocumentByURL(ctx, url)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	n, err := s.indexer.RemoveURL(ctx, url)
	if err != nil {
		return err
	}
	if _, err := s.store.DeleteDocumentsByURL(ctx, url); err != nil {
		return err
	}
	if prev.SourceID != newOwner {
		s.logger.Info("document moved between sources",
			zap.String("url", url),
			zap.Int64("from_source", prev.SourceID),
			zap.Int64("to_source", newOwner),
			zap.Int("chunks", n))
	}
	return nil
}

// AddUpload extracts an uploaded PDF, DOCX or TXT file and ingests it with the file name as title.
func (s *Service) AddUpload(ctx context.Context, filename string, content []byte) (*Result, error) {
	text, _, err := s.extractor.ProcessUpload(filename, content)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(filename)
	return s.run(ctx, models.SourceUpload, name, name, func(src *models.Source, res *Result) error {
		return s.ingestDocument(ctx, src, &models.DocumentInput{Text: text, Title: name}, res)
	})
}

// AddFile ingests one local file as its own source.
func (s *Service) AddFile(ctx context.Context, path string) (*Result, error) {
	doc, err := s.indexer.FileDocument(path, s.extensions)
	if err != nil {
		return nil, err
	}
	absPath, _ := filepath.Abs(path)
	return s.run(ctx, models.SourceFile, absPath, doc.Title, func(src *models.Source, res *Result) error {
		return s.ingestDocument(ctx, src, doc, res)
	})
}

// AddDirectory ingests every supported file under dir as one source. Files that cannot be
// read or extracted are skipped and counted.
func (s *Service) AddDirectory(ctx context.Context, dir string, recursive bool) (*Result, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("%w: directory %s", models.ErrNotFound, absDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", models.ErrConfiguration, absDir)
	}
	entries, err := connectors.ScanDirectory(absDir, recursive, s.extensions)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, models.SourceDirectory, absDir, filepath.Base(absDir), func(src *models.Source, res *Result) error {
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := s.indexer.FileDocument(entry.Path, nil)
			if err != nil {
				s.logger.Warn("skipping file", zap.String("path", entry.Path), zap.Error(err))
				res.Skipped++
				continue
			}
			if err := s.ingestDocument(ctx, src, doc, res); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddBookmarks ingests a Chrome bookmarks file as one source. With scrape set and a web client
// configured, each bookmarked page's text is appended to its title and URL.
func (s *Service) AddBookmarks(ctx context.Context, path string, scrape bool) (*Result, error) {
	bookmarks, err := connectors.LoadChromeBookmarks(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", models.ErrNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}
	absPath, _ := filepath.Abs(path)
	return s.run(ctx, models.SourceBookmarks, absPath, filepath.Base(absPath), func(src *models.Source, res *Result) error {
		for _, b := range bookmarks {
			text := b.Text()
			if scrape && s.web != nil {
				content, err := s.web.Scrape(ctx, b.URL)
				if err != nil {
					s.logger.Debug("bookmark scrape failed", zap.String("url", b.URL), zap.Error(err))
				} else if content != "" {
					text += "\n" + content
				}
			}
			if err := s.ingestDocument(ctx, src, &models.DocumentInput{Text: text, Title: b.Title, URL: b.URL}, res); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddWeb searches the web for query and ingests the scraped results as one source.
func (s *Service) AddWeb(ctx context.Context, query string, count int) (*Result, error) {
	if s.web == nil {
		return nil, fmt.Errorf("%w: web search is not configured", models.ErrConfiguration)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", models.ErrConfiguration)
	}
	results, err := s.web.SearchAndScrape(ctx, query, count)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, models.SourceWeb, query, "Web: "+query, func(src *models.Source, res *Result) error {
		for _, r := range results {
			text := r.Title + "\n" + r.Description + "\n" + r.Content
			if err := s.ingestDocument(ctx, src, &models.DocumentInput{Text: text, Title: r.Title, URL: r.URL}, res); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteSource removes a source's chunks from the index and then its catalog rows. It returns
// the number of chunks removed.
func (s *Service) DeleteSource(ctx context.Context, id int64) (int, error) {
	if _, err := s.store.GetSource(ctx, id); err != nil {
		return 0, err
	}
	n, err := s.indexer.RemoveSource(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := s.store.DeleteSource(ctx, id); err != nil {
		return n, err
	}
	s.logger.Info("source deleted", zap.Int64("source_id", id), zap.Int("chunks", n))
	return n, nil
}

// SyncFile brings the index in line with a file on disk. An unchanged file that is already
// indexed is left alone. A file indexed as part of another source, such as a directory, is
// re-indexed in place under that source; otherwise the previous file source is replaced. It
// returns nil when nothing was done.
func (s *Service) SyncFile(ctx context.Context, path string) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	owner, doc, err := s.fileOwner(ctx, absPath)
	if err != nil {
		return nil, err
	}
	if owner != nil && owner.Type != models.SourceFile {
		if doc.IndexedAt.After(info.ModTime()) {
			return nil, nil
		}
		return s.refreshDocument(ctx, owner, absPath)
	}
	prev, err := s.store.FindSourceByPath(ctx, models.SourceFile, absPath)
	switch {
	case errors.Is(err, models.ErrNotFound):
		prev = nil
	case err != nil:
		return nil, err
	}
	if prev != nil && prev.Status == models.StatusIndexed && prev.IndexedAt != nil && prev.IndexedAt.After(info.ModTime()) {
		return nil, nil
	}
	if prev != nil {
		if _, err := s.DeleteSource(ctx, prev.ID); err != nil {
			return nil, err
		}
	}
	return s.AddFile(ctx, absPath)
}

// RemoveFile drops a file that no longer exists: its own source is deleted, and a file indexed
// as part of another source loses its chunks and document row.
func (s *Service) RemoveFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	owner, _, err := s.fileOwner(ctx, absPath)
	if err != nil {
		return err
	}
	if owner != nil && owner.Type != models.SourceFile {
		url := docid.FileURL(absPath)
		n, err := s.indexer.RemoveURL(ctx, url)
		if err != nil {
			return err
		}
		if _, err := s.store.DeleteDocumentsByURL(ctx, url); err != nil {
			return err
		}
		s.logger.Info("file removed from source", zap.String("path", absPath), zap.Int64("source_id", owner.ID), zap.Int("chunks", n))
		return nil
	}
	prev, err := s.store.FindSourceByPath(ctx, models.SourceFile, absPath)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.DeleteSource(ctx, prev.ID)
	return err
}

// fileOwner returns the source currently holding the document for absPath, or nil.
func (s *Service) fileOwner(ctx context.Context, absPath string) (*models.Source, *models.Document, error) {
	doc, err := s.store.FindDocumentByURL(ctx, docid.FileURL(absPath))
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	owner, err := s.store.GetSource(ctx, doc.SourceID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return owner, doc, nil
}

// refreshDocument re-indexes one file under the source that already holds it.
func (s *Service) refreshDocument(ctx context.Context, owner *models.Source, absPath string) (*Result, error) {
	res := &Result{SourceID: owner.ID}
	doc, err := s.indexer.FileDocument(absPath, s.extensions)
	if err != nil {
		return res, err
	}
	if err := s.ingestDocument(ctx, owner, doc, res); err != nil {
		return res, fmt.Errorf("refresh %s in source %d: %w", absPath, owner.ID, err)
	}
	s.logger.Info("file refreshed", zap.String("path", absPath), zap.Int64("source_id", owner.ID), zap.Int("chunks", res.Chunks))
	return res, nil
}
