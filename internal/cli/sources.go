package cli

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hyperjump/devflow/internal/models"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage indexed sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed sources",
	Args:  cobra.NoArgs,
	RunE:  runSourcesList,
}

var sourcesDeleteCmd = &cobra.Command{
	Use:   "delete <source-id>",
	Short: "Delete a source and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesDelete,
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesDeleteCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	var sources []*models.Source
	if serverURL != "" {
		var out struct {
			Sources []*models.Source `json:"sources"`
		}
		if err := newAPIClient(serverURL).do(http.MethodGet, "/api/sources", nil, &out); err != nil {
			return fmt.Errorf("list sources failed: %w", err)
		}
		sources = out.Sources
	} else {
		ctx := context.Background()
		c, closeFn, err := openComponents(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		sources, err = c.Storage.ListSources(ctx)
		if err != nil {
			return fmt.Errorf("list sources failed: %w", err)
		}
	}
	return WriteSources(cmd.OutOrStdout(), sources, format())
}

func runSourcesDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid source id %q", args[0])
	}
	var removed int
	if serverURL != "" {
		var out struct {
			ChunksRemoved int `json:"chunks_removed"`
		}
		if err := newAPIClient(serverURL).do(http.MethodDelete, "/api/sources/"+args[0], nil, &out); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		removed = out.ChunksRemoved
	} else {
		ctx := context.Background()
		c, closeFn, err := openComponents(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		removed, err = c.Ingest.DeleteSource(ctx, id)
		if err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
	}
	if format() == OutputJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"source_id": id, "chunks_removed": removed})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Source %d deleted (%d chunks removed)\n", id, removed)
	return nil
}
