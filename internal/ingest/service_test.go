package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/devflow/internal/connectors"
	"github.com/hyperjump/devflow/internal/embedding"
	"github.com/hyperjump/devflow/internal/extract"
	"github.com/hyperjump/devflow/internal/indexer"
	"github.com/hyperjump/devflow/internal/models"
	"github.com/hyperjump/devflow/internal/storage"
	"github.com/hyperjump/devflow/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyEmbedder fails every batch after the first okBatches.
type flakyEmbedder struct {
	*embedding.MockEmbedder
	okBatches int32
	batches   atomic.Int32
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.batches.Add(1) > f.okBatches {
		return nil, errors.New("quota exceeded")
	}
	return f.MockEmbedder.EmbedBatch(ctx, texts)
}

// cancellingEmbedder cancels the ingest context on its cancelAt-th batch.
type cancellingEmbedder struct {
	*embedding.MockEmbedder
	cancel   context.CancelFunc
	cancelAt int32
	batches  atomic.Int32
}

func (c *cancellingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.batches.Add(1) == c.cancelAt {
		c.cancel()
		return nil, ctx.Err()
	}
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

type fixture struct {
	svc   *Service
	store *storage.SQLiteStorage
	index *vector.FlatIndex
}

func newFixture(t *testing.T, emb embedding.Embedder, opts ...Option) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	index, err := vector.NewFlatIndex(4, vector.MetricCosine)
	require.NoError(t, err)
	chunker, err := indexer.NewChunker(5, 1)
	require.NoError(t, err)
	ex := extract.NewExtractor()
	idx, err := indexer.NewIndexer(emb, index, chunker, indexer.WithExtractor(ex))
	require.NoError(t, err)
	return &fixture{svc: NewService(store, idx, ex, opts...), store: store, index: index}
}

func TestAddText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.NewMockEmbedder(4))

	res, err := f.svc.AddText(ctx, "Fox", "the quick brown fox jumps over the lazy dog", "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, f.index.Size())

	src, err := f.store.GetSource(ctx, res.SourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIndexed, src.Status)
	assert.Equal(t, models.SourceManual, src.Type)
	assert.Equal(t, "Fox", src.Name)

	docs, err := f.store.ListDocuments(ctx, res.SourceID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "the quick brown fox jumps over the lazy dog", docs[0].ContentPreview)

	_, err = f.svc.AddText(ctx, "Empty", "   ", "")
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestAddUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.NewMockEmbedder(4))

	res, err := f.svc.AddUpload(ctx, "notes.txt", []byte("uploaded words here"))
	require.NoError(t, err)
	src, err := f.store.GetSource(ctx, res.SourceID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceUpload, src.Type)
	assert.Equal(t, "notes.txt", src.Name)

	_, err = f.svc.AddUpload(ctx, "image.png", []byte{0x89})
	assert.ErrorIs(t, err, models.ErrUnsupportedType)
}

func TestAddDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("alpha beta gamma"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("one two three four five six seven"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.bin"), []byte("ignored"), 0600))

	f := newFixture(t, embedding.NewMockEmbedder(4))
	res, err := f.svc.AddDirectory(ctx, dir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 3, res.Chunks)

	sources, err := f.store.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, 2, sources[0].DocumentCount)

	_, err = f.svc.AddDirectory(ctx, filepath.Join(dir, "missing"), true)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAddFile_takesOverDirectoryDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(aPath, []byte("alpha beta gamma"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("one two three four five six seven"), 0600))

	f := newFixture(t, embedding.NewMockEmbedder(4))
	dirRes, err := f.svc.AddDirectory(ctx, dir, false)
	require.NoError(t, err)
	require.Equal(t, 3, f.index.Size())

	fileRes, err := f.svc.AddFile(ctx, aPath)
	require.NoError(t, err)
	assert.Equal(t, 3, f.index.Size())
	dirDocs, err := f.store.ListDocuments(ctx, dirRes.SourceID)
	require.NoError(t, err)
	require.Len(t, dirDocs, 1)
	assert.Equal(t, "b.txt", dirDocs[0].Title)

	removed, err := f.svc.DeleteSource(ctx, fileRes.SourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, f.index.Size())

	src, err := f.store.GetSource(ctx, dirRes.SourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIndexed, src.Status)
	hits, err := f.index.Search(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		id, _ := h.Payload.Int(models.PayloadSourceID)
		assert.Equal(t, dirRes.SourceID, id)
	}
}

func TestSyncFile_refreshesFileInsideDirectorySource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(aPath, []byte("alpha beta gamma"), 0600))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(aPath, past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("one two three four five six seven"), 0600))

	f := newFixture(t, embedding.NewMockEmbedder(4))
	dirRes, err := f.svc.AddDirectory(ctx, dir, false)
	require.NoError(t, err)

	unchanged, err := f.svc.SyncFile(ctx, aPath)
	require.NoError(t, err)
	assert.Nil(t, unchanged)

	// Grows from one chunk to three.
	require.NoError(t, os.WriteFile(aPath, []byte("one two three four five six seven eight nine"), 0600))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(aPath, later, later))
	res, err := f.svc.SyncFile(ctx, aPath)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, dirRes.SourceID, res.SourceID)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 5, f.index.Size())
	_, err = f.store.FindSourceByPath(ctx, models.SourceFile, aPath)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Shrinks back to one chunk; the two trailing chunks must go.
	require.NoError(t, os.WriteFile(aPath, []byte("short text"), 0600))
	later = later.Add(time.Hour)
	require.NoError(t, os.Chtimes(aPath, later, later))
	_, err = f.svc.SyncFile(ctx, aPath)
	require.NoError(t, err)
	assert.Equal(t, 3, f.index.Size())

	sources, err := f.store.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, 2, sources[0].DocumentCount)

	require.NoError(t, os.Remove(aPath))
	require.NoError(t, f.svc.RemoveFile(ctx, aPath))
	assert.Equal(t, 2, f.index.Size())
	docs, err := f.store.ListDocuments(ctx, dirRes.SourceID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestAddDirectory_failureRemovesPartialChunks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, fmt.Sprintf("f%d.txt", i))
		require.NoError(t, os.WriteFile(name, []byte(fmt.Sprintf("file number %d", i)), 0600))
	}
	f := newFixture(t, &flakyEmbedder{MockEmbedder: embedding.NewMockEmbedder(4), okBatches: 1})

	res, err := f.svc.AddDirectory(ctx, dir, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrEmbeddingProvider)
	assert.Equal(t, 0, f.index.Size())

	src, err := f.store.GetSource(ctx, res.SourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, src.Status)
}

func TestAddDirectory_cancelRemovesPartialChunks(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, fmt.Sprintf("f%d.txt", i))
		require.NoError(t, os.WriteFile(name, []byte(fmt.Sprintf("file number %d", i)), 0600))
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, &cancellingEmbedder{MockEmbedder: embedding.NewMockEmbedder(4), cancel: cancel, cancelAt: 2})

	res, err := f.svc.AddDirectory(ctx, dir, false)
	require.Error(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, 0, f.index.Size(), "chunks of the first file must not outlive the failed source")

	src, err := f.store.GetSource(context.Background(), res.SourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, src.Status)
}

func TestAddBookmarks(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "Bookmarks")
	require.NoError(t, os.WriteFile(path, []byte(`{"roots":{"bookmark_bar":{"type":"folder","children":[
		{"type":"url","name":"Go","url":"https://go.dev"},
		{"type":"url","name":"Qdrant","url":"https://qdrant.tech"}]}}}`), 0600))

	f := newFixture(t, embedding.NewMockEmbedder(4))
	res, err := f.svc.AddBookmarks(ctx, path, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 2, f.index.Size())

	_, err = f.svc.AddBookmarks(ctx, filepath.Join(t.TempDir(), "nope"), false)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAddWeb(t *testing.T) {
	ctx := context.Background()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			fmt.Fprintf(w, `{"web":{"results":[{"title":"Page","url":"%s/page","description":"desc"}]}}`, srv.URL)
			return
		}
		fmt.Fprint(w, `<html><body><p>scraped body text</p></body></html>`)
	}))
	defer srv.Close()

	f := newFixture(t, embedding.NewMockEmbedder(4))
	_, err := f.svc.AddWeb(ctx, "golang", 3)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	web := connectors.NewWebClient(connectors.WebConfig{SearchURL: srv.URL + "/search", APIKey: "k"}, nil)
	f = newFixture(t, embedding.NewMockEmbedder(4), WithWebClient(web))
	res, err := f.svc.AddWeb(ctx, "golang", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)

	src, err := f.store.GetSource(ctx, res.SourceID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceWeb, src.Type)
	assert.Equal(t, "Web: golang", src.Name)
}

func TestDeleteSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.NewMockEmbedder(4))
	keep, err := f.svc.AddText(ctx, "Keep", "keep these words", "")
	require.NoError(t, err)
	drop, err := f.svc.AddText(ctx, "Drop", "one two three four five six seven", "")
	require.NoError(t, err)

	n, err := f.svc.DeleteSource(ctx, drop.SourceID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, keep.Chunks, f.index.Size())

	_, err = f.store.GetSource(ctx, drop.SourceID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.DeleteSource(ctx, drop.SourceID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSyncFileAndRemoveFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("first version"), 0600))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	f := newFixture(t, embedding.NewMockEmbedder(4))
	res, err := f.svc.SyncFile(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, res)

	again, err := f.svc.SyncFile(ctx, path)
	require.NoError(t, err)
	assert.Nil(t, again, "unchanged file should not be re-indexed")

	require.NoError(t, os.WriteFile(path, []byte("second version with more words"), 0600))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	updated, err := f.svc.SyncFile(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.NotEqual(t, res.SourceID, updated.SourceID)
	assert.Equal(t, updated.Chunks, f.index.Size())

	require.NoError(t, f.svc.RemoveFile(ctx, path))
	assert.Equal(t, 0, f.index.Size())
	sources, err := f.store.ListSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, sources)

	assert.NoError(t, f.svc.RemoveFile(ctx, path))
}
