package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/devflow/internal/ingest"
	"github.com/hyperjump/devflow/internal/models"
	"github.com/hyperjump/devflow/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const previewWords = 40

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteQueryResults writes retrieved chunks to w in the given format.
func WriteQueryResults(w io.Writer, resp *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", resp.Total, resp.QueryTime)
	for _, r := range resp.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", r.Rank, r.Distance)
		if r.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", r.Title)
		}
		if r.URL != "" {
			fmt.Fprintf(w, "URL: %s\n", r.URL)
		}
		fmt.Fprintf(w, "\n%s\n\n", TruncateWords(r.Text, previewWords))
	}
	return nil
}

// WriteAnswer writes a generated answer followed by its numbered sources.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n", answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, s := range answer.Sources {
			fmt.Fprintf(w, "  [%d] %s", i+1, s.Title)
			if s.URL != "" {
				fmt.Fprintf(w, " (%s)", s.URL)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

// WriteSources writes the source catalog.
func WriteSources(w io.Writer, sources []*models.Source, format OutputFormat) error {
	if format == OutputJSON {
		if sources == nil {
			sources = []*models.Source{}
		}
		return writeJSON(w, sources)
	}
	if len(sources) == 0 {
		fmt.Fprintln(w, "No sources indexed.")
		return nil
	}
	for _, s := range sources {
		indexed := "-"
		if s.IndexedAt != nil {
			indexed = s.IndexedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%4d  %-10s %-8s %4d docs  %s  %s\n",
			s.ID, s.Type, s.Status, s.DocumentCount, indexed, utils.Truncate(s.Name, 60))
	}
	return nil
}

// WriteIndexResult reports the outcome of an ingestion.
func WriteIndexResult(w io.Writer, res *ingest.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Indexed source %d: %d document(s), %d chunk(s)", res.SourceID, res.Documents, res.Chunks)
	if res.Skipped > 0 {
		fmt.Fprintf(w, ", %d file(s) skipped", res.Skipped)
	}
	fmt.Fprintln(w)
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
