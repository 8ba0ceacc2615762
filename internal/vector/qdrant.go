package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/devflow/internal/models"
	"go.uber.org/zap"
)

// recordIDKey stores the caller's record ID in the point payload, since Qdrant point IDs
// must be unsigned integers or UUIDs.
const recordIDKey = "_record_id"

// QdrantConfig configures the remote index.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantIndex is a VectorIndex backed by a Qdrant collection over its REST API.
// Qdrant does not guarantee an order for equal scores, so ties may not follow insertion order.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	dimensions int
	metric     Metric
	client     *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// QdrantOption configures a QdrantIndex.
type QdrantOption func(*QdrantIndex)

// WithQdrantLogger sets the logger.
func WithQdrantLogger(logger *zap.Logger) QdrantOption {
	return func(q *QdrantIndex) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) QdrantOption {
	return func(q *QdrantIndex) {
		if client != nil {
			q.client = client
		}
	}
}

// NewQdrantIndex connects to Qdrant and creates the collection if it does not exist. An
// existing collection must have the same vector size and distance.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, dimensions int, metric Metric, opts ...QdrantOption) (*QdrantIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", models.ErrConfiguration, dimensions)
	}
	if !metric.valid() {
		return nil, fmt.Errorf("%w: invalid metric %s", models.ErrConfiguration, metric)
	}
	if cfg.URL == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant url and collection are required", models.ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	q := &QdrantIndex{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimensions: dimensions,
		metric:     metric,
		client:     &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if err := q.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// Type returns the index type identifier.
func (q *QdrantIndex) Type() string { return string(IndexTypeQdrant) }

// Dimensions returns the collection vector size.
func (q *QdrantIndex) Dimensions() int { return q.dimensions }

// Metric returns the distance metric.
func (q *QdrantIndex) Metric() Metric { return q.metric }

func (q *QdrantIndex) distanceName() string {
	if q.metric == MetricL2 {
		return "Euclid"
	}
	return "Cosine"
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodGet, q.collectionPath(""), nil, &info)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusNotFound {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     q.dimensions,
				"distance": q.distanceName(),
			},
		}
		if _, err := q.do(ctx, http.MethodPut, q.collectionPath(""), body, nil); err != nil {
			return fmt.Errorf("create collection %s: %w", q.collection, err)
		}
		q.logger.Info("created qdrant collection", zap.String("collection", q.collection), zap.Int("dimensions", q.dimensions))
		return nil
	}
	vec := info.Result.Config.Params.Vectors
	if vec.Size != q.dimensions {
		return fmt.Errorf("%w: collection %s has vector size %d, expected %d", models.ErrConfiguration, q.collection, vec.Size, q.dimensions)
	}
	if vec.Distance != "" && !strings.EqualFold(vec.Distance, q.distanceName()) {
		return fmt.Errorf("%w: collection %s uses %s distance, expected %s", models.ErrConfiguration, q.collection, vec.Distance, q.distanceName())
	}
	return nil
}

// PointID maps a record ID to the deterministic UUID used as the Qdrant point ID.
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

// Add upserts records as points. Qdrant replaces points with the same ID.
func (q *QdrantIndex) Add(ctx context.Context, records []Record) error {
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record id must not be empty", models.ErrConfiguration)
		}
		if len(r.Vector) != q.dimensions {
			return fmt.Errorf("%w: record %s has %d components, expected %d", models.ErrDimensionMismatch, r.ID, len(r.Vector), q.dimensions)
		}
	}
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		payload := r.Payload.Clone()
		payload[recordIDKey] = r.ID
		points[i] = map[string]any{
			"id":      PointID(r.ID),
			"vector":  r.Vector,
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	if _, err := q.do(ctx, http.MethodPut, q.collectionPath("/points?wait=true"), body, nil); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// Search queries the collection and converts scores to distances on the local scale.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != q.dimensions {
		return nil, fmt.Errorf("%w: query has %d components, expected %d", models.ErrDimensionMismatch, len(query), q.dimensions)
	}
	if k <= 0 {
		return []Hit{}, nil
	}
	req := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any             `json:"id"`
			Score   float64         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	if _, err := q.do(ctx, http.MethodPost, q.collectionPath("/points/search"), req, &resp); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		payload := Payload{}
		if len(r.Payload) > 0 && string(r.Payload) != "null" {
			p, err := decodePayload(r.Payload)
			if err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}
			payload = p
		}
		id := payload.String(recordIDKey)
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		delete(payload, recordIDKey)
		hits = append(hits, Hit{ID: id, Payload: payload, Distance: q.toDistance(r.Score)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits, nil
}

// toDistance converts a Qdrant score: cosine similarity becomes 1 - score, Euclid distance is squared.
func (q *QdrantIndex) toDistance(score float64) float64 {
	if q.metric == MetricL2 {
		return score * score
	}
	return math.Max(0, 1-score)
}

func matchFilter(key string, value any) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": key, "match": map[string]any{"value": normalizeValue(value)}},
		},
	}
}

// DeleteByFilter counts matching points, then deletes them with the same filter.
func (q *QdrantIndex) DeleteByFilter(ctx context.Context, key string, value any) (int, error) {
	n, err := q.count(ctx, matchFilter(key, value))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	body := map[string]any{"filter": matchFilter(key, value)}
	if _, err := q.do(ctx, http.MethodPost, q.collectionPath("/points/delete?wait=true"), body, nil); err != nil {
		return 0, fmt.Errorf("delete points: %w", err)
	}
	return n, nil
}

func (q *QdrantIndex) count(ctx context.Context, filter map[string]any) (int, error) {
	body := map[string]any{"exact": true}
	if filter != nil {
		body["filter"] = filter
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := q.do(ctx, http.MethodPost, q.collectionPath("/points/count"), body, &resp); err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return resp.Result.Count, nil
}

// Count returns the exact point count of the collection.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	return q.count(ctx, nil)
}

// Size returns the exact point count. Errors are logged and reported as 0.
func (q *QdrantIndex) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	n, err := q.Count(ctx)
	if err != nil {
		q.logger.Warn("qdrant count failed", zap.Error(err))
		return 0
	}
	return n
}

// Persist is a no-op; Qdrant owns durability.
func (q *QdrantIndex) Persist(ctx context.Context) error {
	return nil
}

// Close releases idle connections.
func (q *QdrantIndex) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

func (q *QdrantIndex) collectionPath(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", q.url, q.collection, suffix)
}

// do sends a JSON request and decodes the response into out. The status code is returned
// even on error so callers can branch on 404.
func (q *QdrantIndex) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant %s %s: %v", models.ErrPersistence, method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%w: qdrant %s %s failed: %s: %s", models.ErrPersistence, method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
