package vector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hyperjump/devflow/internal/models"
)

func orthogonal4() []Record {
	return []Record{
		{ID: "e0", Vector: []float32{1, 0, 0, 0}, Payload: Payload{"source_id": 1}},
		{ID: "e1", Vector: []float32{0, 1, 0, 0}, Payload: Payload{"source_id": 1}},
		{ID: "e2", Vector: []float32{0, 0, 1, 0}, Payload: Payload{"source_id": 2}},
		{ID: "e3", Vector: []float32{0, 0, 0, 1}, Payload: Payload{"source_id": 3}},
	}
}

func TestFlatIndex_AddSearch(t *testing.T) {
	for _, metric := range []Metric{MetricCosine, MetricL2} {
		t.Run(metric.String(), func(t *testing.T) {
			idx, err := NewFlatIndex(4, metric)
			if err != nil {
				t.Fatal(err)
			}
			defer idx.Close()
			ctx := context.Background()
			if err := idx.Add(ctx, orthogonal4()); err != nil {
				t.Fatal(err)
			}
			if idx.Size() != 4 {
				t.Errorf("Size=%d", idx.Size())
			}
			hits, err := idx.Search(ctx, []float32{0, 0, 1, 0}, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != 2 {
				t.Fatalf("expected 2 hits, got %d", len(hits))
			}
			if hits[0].ID != "e2" || hits[0].Distance != 0 {
				t.Errorf("top hit = %s at %v, want e2 at 0", hits[0].ID, hits[0].Distance)
			}
			if hits[1].Distance < hits[0].Distance {
				t.Error("hits not ascending by distance")
			}
		})
	}
}

func TestFlatIndex_TieBreakByInsertion(t *testing.T) {
	idx, _ := NewFlatIndex(2, MetricL2)
	ctx := context.Background()
	_ = idx.Add(ctx, []Record{
		{ID: "first", Vector: []float32{1, 0}},
		{ID: "second", Vector: []float32{-1, 0}},
		{ID: "third", Vector: []float32{0, 1}},
	})
	hits, err := idx.Search(ctx, []float32{0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if hits[i].ID != want {
			t.Errorf("hit %d = %s, want %s", i, hits[i].ID, want)
		}
	}
}

func TestFlatIndex_KLargerThanSize(t *testing.T) {
	idx, _ := NewFlatIndex(4, MetricCosine)
	ctx := context.Background()
	_ = idx.Add(ctx, orthogonal4())
	hits, _ := idx.Search(ctx, []float32{1, 0, 0, 0}, 10)
	if len(hits) != 4 {
		t.Errorf("expected 4 hits, got %d", len(hits))
	}
	hits, _ = idx.Search(ctx, []float32{1, 0, 0, 0}, 0)
	if len(hits) != 0 {
		t.Errorf("k=0 should return no hits, got %d", len(hits))
	}
}

func TestFlatIndex_EmptySearch(t *testing.T) {
	idx, _ := NewFlatIndex(3, MetricCosine)
	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("expected empty non-nil result, got %v", hits)
	}
}

func TestFlatIndex_DimensionGuard(t *testing.T) {
	idx, _ := NewFlatIndex(3, MetricCosine)
	ctx := context.Background()
	_ = idx.Add(ctx, []Record{{ID: "a", Vector: []float32{1, 0, 0}}})

	err := idx.Add(ctx, []Record{
		{ID: "b", Vector: []float32{0, 1, 0}},
		{ID: "c", Vector: []float32{0, 1}},
	})
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Fatalf("Add err = %v, want ErrDimensionMismatch", err)
	}
	if idx.Size() != 1 {
		t.Errorf("failed Add must not change size, got %d", idx.Size())
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("Search err = %v, want ErrDimensionMismatch", err)
	}
}

func TestFlatIndex_Upsert(t *testing.T) {
	idx, _ := NewFlatIndex(2, MetricL2)
	ctx := context.Background()
	_ = idx.Add(ctx, []Record{
		{ID: "a", Vector: []float32{1, 0}, Payload: Payload{"v": 1}},
		{ID: "b", Vector: []float32{0, 1}},
	})
	if err := idx.Add(ctx, []Record{{ID: "a", Vector: []float32{5, 5}, Payload: Payload{"v": 2}}}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Errorf("upsert should not grow index, size=%d", idx.Size())
	}
	hits, _ := idx.Search(ctx, []float32{5, 5}, 1)
	if hits[0].ID != "a" || hits[0].Distance != 0 {
		t.Errorf("upserted vector not searchable: %+v", hits[0])
	}
	if v, _ := hits[0].Payload.Int("v"); v != 2 {
		t.Errorf("payload not replaced: %v", hits[0].Payload)
	}
}

func TestFlatIndex_DeleteByFilter(t *testing.T) {
	idx, _ := NewFlatIndex(4, MetricCosine)
	ctx := context.Background()
	_ = idx.Add(ctx, orthogonal4())

	n, err := idx.DeleteByFilter(ctx, "source_id", int64(1))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if idx.Size() != 2 {
		t.Errorf("Size=%d, want 2", idx.Size())
	}
	for _, q := range [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}} {
		hits, _ := idx.Search(ctx, q, 4)
		for _, h := range hits {
			if h.Payload.Matches("source_id", 1) {
				t.Errorf("deleted record %s still returned", h.ID)
			}
		}
	}
	n, _ = idx.DeleteByFilter(ctx, "source_id", 99)
	if n != 0 {
		t.Errorf("no-match delete removed %d", n)
	}
	n, _ = idx.DeleteByFilter(ctx, "missing", 2)
	if n != 0 {
		t.Errorf("missing key delete removed %d", n)
	}
	// Upsert after delete reuses the rebuilt positions.
	_ = idx.Add(ctx, []Record{{ID: "e3", Vector: []float32{0, 0, 0, 1}, Payload: Payload{"source_id": 4}}})
	if idx.Size() != 2 {
		t.Errorf("Size=%d after upsert, want 2", idx.Size())
	}
}

func TestFlatIndex_ThreeSourcesDeleteOne(t *testing.T) {
	idx, _ := NewFlatIndex(2, MetricCosine)
	ctx := context.Background()
	_ = idx.Add(ctx, []Record{
		{ID: "a", Vector: []float32{1, 0}, Payload: Payload{"source_id": 1}},
		{ID: "b", Vector: []float32{0, 1}, Payload: Payload{"source_id": 1}},
		{ID: "c", Vector: []float32{1, 1}, Payload: Payload{"source_id": 2}},
	})
	if n, _ := idx.DeleteByFilter(ctx, "source_id", 1); n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if idx.Size() != 1 {
		t.Fatalf("Size=%d, want 1", idx.Size())
	}
	hits, _ := idx.Search(ctx, []float32{1, 0}, 1)
	if got, _ := hits[0].Payload.Int("source_id"); got != 2 {
		t.Errorf("remaining source_id=%d, want 2", got)
	}
}

func TestFlatIndex_Concurrent(t *testing.T) {
	idx, _ := NewFlatIndex(2, MetricL2)
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := string(rune('a'+w)) + string(rune('a'+i%26))
				_ = idx.Add(ctx, []Record{{ID: id, Vector: []float32{float32(w), float32(i)}, Payload: Payload{"w": w}}})
				if _, err := idx.Search(ctx, []float32{0, 0}, 3); err != nil {
					t.Error(err)
				}
				if i%10 == 0 {
					_, _ = idx.DeleteByFilter(ctx, "w", w)
				}
			}
		}(w)
	}
	wg.Wait()
	hits, _ := idx.Search(ctx, []float32{0, 0}, idx.Size())
	seen := make(map[string]bool)
	for _, h := range hits {
		if seen[h.ID] {
			t.Errorf("duplicate id %s", h.ID)
		}
		seen[h.ID] = true
	}
}

func TestNewFlatIndex_Invalid(t *testing.T) {
	if _, err := NewFlatIndex(0, MetricCosine); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("zero dimension err = %v", err)
	}
	if _, err := NewFlatIndex(3, Metric(9)); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("bad metric err = %v", err)
	}
}
