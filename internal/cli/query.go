package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hyperjump/devflow/internal/models"
	"github.com/spf13/cobra"
)

var queryLimit int

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Retrieve the chunks closest to a query",
	Long: `Embeds the query and returns the nearest indexed chunks, closest first.
The query is all remaining arguments joined by spaces.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed sources",
	Long: `Retrieves context for the question and asks the configured language model to answer
from it, citing the sources used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", models.DefaultQueryLimit, "number of results")
	askCmd.Flags().IntVarP(&queryLimit, "limit", "n", models.DefaultQueryLimit, "number of chunks used as context")
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(askCmd)
}

// buildQuery joins positional args with spaces so multi-word queries work with or without
// shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runQuery(cmd *cobra.Command, args []string) error {
	query := &models.SearchQuery{Query: buildQuery(args), NResults: queryLimit}
	var resp *models.QueryResponse
	if serverURL != "" {
		resp = &models.QueryResponse{}
		if err := newAPIClient(serverURL).do(http.MethodPost, "/api/query", query, resp); err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
	} else {
		ctx := context.Background()
		c, closeFn, err := openComponents(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		resp, err = c.Engine.Search(ctx, query)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
	}
	return WriteQueryResults(cmd.OutOrStdout(), resp, format())
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := &models.SearchQuery{Query: buildQuery(args), NResults: queryLimit}
	var answer *models.Answer
	if serverURL != "" {
		answer = &models.Answer{}
		if err := newAPIClient(serverURL).do(http.MethodPost, "/api/search", query, answer); err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}
	} else {
		ctx := context.Background()
		c, closeFn, err := openComponents(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		answer, err = c.Engine.Ask(ctx, query)
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}
	}
	return WriteAnswer(cmd.OutOrStdout(), answer, format())
}
