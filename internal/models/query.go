package models

import "fmt"

const (
	// DefaultQueryLimit is used when a request does not name a result count.
	DefaultQueryLimit = 5
	// MaxQueryLimit caps the number of chunks retrieved per query.
	MaxQueryLimit = 100
)

// SearchQuery represents a retrieval request.
type SearchQuery struct {
	Query    string `json:"query"`
	NResults int    `json:"n_results,omitempty"`
}

// Validate ensures the query is non-empty and clamps NResults into [1, MaxQueryLimit].
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrConfiguration)
	}
	if q.NResults <= 0 {
		q.NResults = DefaultQueryLimit
	}
	if q.NResults > MaxQueryLimit {
		q.NResults = MaxQueryLimit
	}
	return nil
}
