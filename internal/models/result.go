package models

// RetrievedChunk is a single ranked retrieval hit.
type RetrievedChunk struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Title    string         `json:"title"`
	URL      string         `json:"url"`
	Distance float64        `json:"distance"`
	Rank     int            `json:"rank"`
	Payload  map[string]any `json:"metadata"`
}

// SourceRef is the citation returned with an answer.
type SourceRef struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Preview string `json:"preview"`
}

// Answer is a generated response grounded in retrieved chunks.
type Answer struct {
	Query   string      `json:"query"`
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
	Model   string      `json:"model,omitempty"`
}

// QueryResponse is the response for a raw retrieval request.
type QueryResponse struct {
	Query     string            `json:"query"`
	Results   []*RetrievedChunk `json:"results"`
	Total     int               `json:"total"`
	QueryTime int64             `json:"query_time_ms"`
}
