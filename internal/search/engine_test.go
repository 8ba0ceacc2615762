package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/devflow/internal/embedding"
	"github.com/hyperjump/devflow/internal/generator"
	"github.com/hyperjump/devflow/internal/indexer"
	"github.com/hyperjump/devflow/internal/models"
	"github.com/hyperjump/devflow/internal/storage"
	"github.com/hyperjump/devflow/internal/vector"
)

type echoLLM struct{ calls int }

func (l *echoLLM) Complete(_ context.Context, prompt string) (string, error) {
	l.calls++
	return "answer", nil
}

func (l *echoLLM) Model() string { return "echo" }

type brokenEmbedder struct{ *embedding.MockEmbedder }

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}

func setup(t *testing.T) (*embedding.MockEmbedder, *vector.FlatIndex, *indexer.Indexer) {
	t.Helper()
	emb := embedding.NewMockEmbedder(4)
	vecIndex, err := vector.NewFlatIndex(4, vector.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	chunker, err := indexer.NewChunker(5, 1)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := indexer.NewIndexer(emb, vecIndex, chunker)
	if err != nil {
		t.Fatal(err)
	}
	return emb, vecIndex, idx
}

func TestEngine_Query(t *testing.T) {
	ctx := context.Background()
	emb, vecIndex, idx := setup(t)
	if _, err := idx.Ingest(ctx, &models.DocumentInput{
		Text: "the quick brown fox jumps over the lazy dog", Title: "Fox", URL: "u", SourceID: 1, SourceType: models.SourceManual,
	}); err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(emb, vecIndex)

	results, err := engine.Query(ctx, "dog", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Text != "dog" || results[0].Rank != 1 || results[0].Title != "Fox" || results[0].URL != "u" {
		t.Errorf("unexpected top result %+v", results[0])
	}
	if results[0].Distance > results[1].Distance || results[1].Rank != 2 {
		t.Errorf("results not ordered by distance: %v, %v", results[0].Distance, results[1].Distance)
	}
	if results[0].Payload[models.PayloadSourceType] != models.SourceManual {
		t.Errorf("payload = %v", results[0].Payload)
	}

	all, _ := engine.Query(ctx, "dog", 10)
	if len(all) != 3 {
		t.Errorf("k larger than index should return all %d chunks, got %d", vecIndex.Size(), len(all))
	}
}

func TestEngine_QueryFailsWhenIndexCannotCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":{"config":{"params":{"vectors":{"size":4,"distance":"Cosine"}}}}}`))
			return
		}
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := context.Background()
	remote, err := vector.NewQdrantIndex(ctx, vector.QdrantConfig{URL: srv.URL, Collection: "docs"}, 4, vector.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	emb := embedding.NewMockEmbedder(4)
	results, err := NewEngine(emb, remote).Query(ctx, "hello", 3)
	if !errors.Is(err, models.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil on failure", results)
	}
	if emb.Calls() != 0 {
		t.Errorf("embedder called %d times, want 0", emb.Calls())
	}
}

func TestEngine_QueryShortCircuits(t *testing.T) {
	ctx := context.Background()
	emb, vecIndex, idx := setup(t)
	engine := NewEngine(emb, vecIndex)

	before := emb.Calls()
	results, err := engine.Query(ctx, "anything", 5)
	if err != nil || results == nil || len(results) != 0 {
		t.Fatalf("empty index: %v, %v", results, err)
	}
	if _, err := idx.Ingest(ctx, &models.DocumentInput{Text: "hello world", SourceID: 1}); err != nil {
		t.Fatal(err)
	}
	if emb.Calls() != before+1 {
		t.Fatal("ingest should embed once")
	}
	before = emb.Calls()
	for _, q := range []string{"", "   \t"} {
		results, err = engine.Query(ctx, q, 5)
		if err != nil || len(results) != 0 {
			t.Errorf("blank query %q: %v, %v", q, results, err)
		}
	}
	if emb.Calls() != before {
		t.Error("blank queries must not call the embedder")
	}
}

func TestEngine_QueryEmbeddingError(t *testing.T) {
	ctx := context.Background()
	_, vecIndex, idx := setup(t)
	_, _ = idx.Ingest(ctx, &models.DocumentInput{Text: "hello world", SourceID: 1})

	engine := NewEngine(brokenEmbedder{embedding.NewMockEmbedder(4)}, vecIndex)
	if _, err := engine.Query(ctx, "hello", 1); !errors.Is(err, models.ErrEmbeddingProvider) {
		t.Errorf("err = %v, want ErrEmbeddingProvider", err)
	}
}

func TestEngine_Search(t *testing.T) {
	ctx := context.Background()
	emb, vecIndex, idx := setup(t)
	_, _ = idx.Ingest(ctx, &models.DocumentInput{Text: "machine learning algorithms", SourceID: 1})
	engine := NewEngine(emb, vecIndex)

	resp, err := engine.Search(ctx, &models.SearchQuery{Query: "  machine learning  "})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "machine learning" || resp.Total != 1 || len(resp.Results) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if _, err := engine.Search(ctx, &models.SearchQuery{Query: " "}); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("blank request err = %v", err)
	}
}

func TestEngine_Ask(t *testing.T) {
	ctx := context.Background()
	emb, vecIndex, idx := setup(t)
	_, _ = idx.Ingest(ctx, &models.DocumentInput{Text: "machine learning algorithms", Title: "ML", SourceID: 1})

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := NewEngine(emb, vecIndex).Ask(ctx, &models.SearchQuery{Query: "ml"}); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("Ask without generator err = %v", err)
	}

	llm := &echoLLM{}
	engine := NewEngine(emb, vecIndex, WithGenerator(generator.New(llm)), WithHistory(store))
	answer, err := engine.Ask(ctx, &models.SearchQuery{Query: "machine learning", NResults: 3})
	if err != nil {
		t.Fatal(err)
	}
	if answer.Answer != "answer" || len(answer.Sources) != 1 || answer.Sources[0].Title != "ML" || llm.calls != 1 {
		t.Errorf("unexpected answer %+v", answer)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSearches != 1 {
		t.Errorf("TotalSearches = %d, want 1", stats.TotalSearches)
	}
}
