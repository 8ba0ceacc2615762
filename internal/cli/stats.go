package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hyperjump/devflow/internal/storage"
	"github.com/spf13/cobra"
)

// statsReport is the shape of GET /api/stats, minus the config block.
type statsReport struct {
	IndexedSources int    `json:"indexed_sources"`
	TotalDocuments int    `json:"total_documents"`
	TotalSearches  int    `json:"total_searches"`
	VectorCount    int    `json:"vector_count"`
	IndexBackend   string `json:"index_backend"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog and index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	var report statsReport
	if serverURL != "" {
		if err := newAPIClient(serverURL).do(http.MethodGet, "/api/stats", nil, &report); err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}
	} else {
		ctx := context.Background()
		c, closeFn, err := openComponents(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		st, err := c.Storage.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}
		report = statsReport{
			IndexedSources: st.IndexedSources,
			TotalDocuments: st.TotalDocuments,
			TotalSearches:  st.TotalSearches,
			VectorCount:    c.VectorIndex.Size(),
			IndexBackend:   c.VectorIndex.Type(),
		}
		if n, err := storage.DiskUsageBytes(c.Config.Storage.DatabasePath, c.Config.Storage.IndexPath); err == nil {
			report.DiskUsageBytes = &n
		}
	}
	return writeStats(cmd, report)
}

func writeStats(cmd *cobra.Command, report statsReport) error {
	w := cmd.OutOrStdout()
	if format() == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "indexed_sources:  %d\n", report.IndexedSources)
	fmt.Fprintf(w, "total_documents:  %d\n", report.TotalDocuments)
	fmt.Fprintf(w, "total_searches:   %d\n", report.TotalSearches)
	fmt.Fprintf(w, "vector_count:     %d\n", report.VectorCount)
	fmt.Fprintf(w, "index_backend:    %s\n", report.IndexBackend)
	if report.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes: %d\n", *report.DiskUsageBytes)
	}
	return nil
}
