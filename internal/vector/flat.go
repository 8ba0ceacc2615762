package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/devflow/internal/models"
)

// FlatIndex is an in-memory vector index using brute-force search.
// Deletion rebuilds the record slice, O(remaining size) per call; batch deletions where possible.
type FlatIndex struct {
	dimensions int
	metric     Metric
	records    []Record
	positions  map[string]int
	version    uint64
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty in-memory index with the given dimension and metric.
func NewFlatIndex(dimensions int, metric Metric) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", models.ErrConfiguration, dimensions)
	}
	if !metric.valid() {
		return nil, fmt.Errorf("%w: invalid metric %s", models.ErrConfiguration, metric)
	}
	return &FlatIndex{
		dimensions: dimensions,
		metric:     metric,
		records:    make([]Record, 0),
		positions:  make(map[string]int),
	}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Dimensions returns the fixed vector length.
func (f *FlatIndex) Dimensions() int { return f.dimensions }

// Metric returns the distance metric.
func (f *FlatIndex) Metric() Metric { return f.metric }

// Add inserts or replaces records. All vectors are validated before the index is touched.
// A replaced record keeps its original insertion position.
func (f *FlatIndex) Add(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record id must not be empty", models.ErrConfiguration)
		}
		if len(r.Vector) != f.dimensions {
			return fmt.Errorf("%w: record %s has %d components, expected %d", models.ErrDimensionMismatch, r.ID, len(r.Vector), f.dimensions)
		}
	}
	if len(records) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		vec := make([]float32, f.dimensions)
		copy(vec, r.Vector)
		rec := Record{ID: r.ID, Vector: vec, Payload: r.Payload.Clone()}
		if pos, ok := f.positions[r.ID]; ok {
			f.records[pos] = rec
			continue
		}
		f.positions[r.ID] = len(f.records)
		f.records = append(f.records, rec)
	}
	f.version++
	return nil
}

// Search returns the k records nearest to query, ascending by distance. Equal distances are
// ordered by insertion.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d components, expected %d", models.ErrDimensionMismatch, len(query), f.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.records) == 0 {
		return []Hit{}, nil
	}
	type scored struct {
		pos      int
		distance float64
	}
	scores := make([]scored, len(f.records))
	for i, rec := range f.records {
		scores[i] = scored{pos: i, distance: f.metric.Distance(query, rec.Vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].distance < scores[j].distance })
	if k > len(scores) {
		k = len(scores)
	}
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		rec := f.records[scores[i].pos]
		hits[i] = Hit{ID: rec.ID, Payload: rec.Payload.Clone(), Distance: scores[i].distance}
	}
	return hits, nil
}

// DeleteByFilter removes every record whose payload[key] equals value by rebuilding the slice.
func (f *FlatIndex) DeleteByFilter(ctx context.Context, key string, value any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := make([]Record, 0, len(f.records))
	removed := 0
	for _, rec := range f.records {
		if rec.Payload.Matches(key, value) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	if removed == 0 {
		return 0, nil
	}
	f.records = kept
	f.positions = make(map[string]int, len(kept))
	for i, rec := range kept {
		f.positions[rec.ID] = i
	}
	f.version++
	return removed, nil
}

// Persist is a no-op for the in-memory index.
func (f *FlatIndex) Persist(ctx context.Context) error {
	return nil
}

// Size returns the number of records in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.records)
}

// Count returns the number of records. It fails only when ctx is done.
func (f *FlatIndex) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return f.Size(), nil
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

// snapshot returns the records in insertion order and the version they belong to.
// Records are treated as immutable once stored, so the slice header copy is enough.
func (f *FlatIndex) snapshot() ([]Record, uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out, f.version
}

// replace swaps in records loaded from storage. Callers have already validated dimensions.
func (f *FlatIndex) replace(records []Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
	f.positions = make(map[string]int, len(records))
	for i, rec := range records {
		f.positions[rec.ID] = i
	}
}

func (f *FlatIndex) currentVersion() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}
