package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hyperjump/devflow/internal/app"
	"github.com/hyperjump/devflow/internal/ingest"
	"github.com/spf13/cobra"
)

var (
	ingestTitle     string
	ingestURL       string
	ingestRecursive bool
	ingestScrape    bool
	ingestCount     int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add content to the index",
	Long:  `Ingest text, files, directories, Chrome bookmarks or web search results.`,
}

var ingestTextCmd = &cobra.Command{
	Use:   "text <content>",
	Short: "Index a piece of text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := buildQuery(args)
		title := ingestTitle
		if title == "" {
			title = "Manual entry"
		}
		return runIngest(cmd,
			func(api *apiClient, res *ingest.Result) error {
				return api.do(http.MethodPost, "/api/index/manual",
					map[string]string{"title": title, "content": content, "url": ingestURL}, res)
			},
			func(ctx context.Context, c *app.Components) (*ingest.Result, error) {
				return c.Ingest.AddText(ctx, title, content, ingestURL)
			})
	},
}

var ingestFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Index a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		return runIngest(cmd,
			func(api *apiClient, res *ingest.Result) error {
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				return api.upload(path, content, res)
			},
			func(ctx context.Context, c *app.Components) (*ingest.Result, error) {
				return c.Ingest.AddFile(ctx, path)
			})
	},
}

var ingestDirCmd = &cobra.Command{
	Use:   "dir <path>",
	Short: "Index every supported file in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return runIngest(cmd,
			func(api *apiClient, res *ingest.Result) error {
				return api.do(http.MethodPost, "/api/index/directory",
					map[string]interface{}{"path": dir, "recursive": ingestRecursive}, res)
			},
			func(ctx context.Context, c *app.Components) (*ingest.Result, error) {
				return c.Ingest.AddDirectory(ctx, dir, ingestRecursive)
			})
	},
}

var ingestBookmarksCmd = &cobra.Command{
	Use:   "bookmarks <path>",
	Short: "Index a Chrome bookmarks file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return runIngest(cmd,
			func(api *apiClient, res *ingest.Result) error {
				return api.do(http.MethodPost, "/api/index/bookmarks",
					map[string]interface{}{"path": path, "scrape": ingestScrape}, res)
			},
			func(ctx context.Context, c *app.Components) (*ingest.Result, error) {
				return c.Ingest.AddBookmarks(ctx, path, ingestScrape)
			})
	},
}

var ingestWebCmd = &cobra.Command{
	Use:   "web <query>",
	Short: "Search the web and index the result pages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := buildQuery(args)
		return runIngest(cmd,
			func(api *apiClient, res *ingest.Result) error {
				return api.do(http.MethodPost, "/api/index/web",
					map[string]interface{}{"query": query, "count": ingestCount}, res)
			},
			func(ctx context.Context, c *app.Components) (*ingest.Result, error) {
				return c.Ingest.AddWeb(ctx, query, ingestCount)
			})
	},
}

func init() {
	ingestTextCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title")
	ingestTextCmd.Flags().StringVar(&ingestURL, "url", "", "document URL")
	ingestDirCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", true, "descend into subdirectories")
	ingestBookmarksCmd.Flags().BoolVar(&ingestScrape, "scrape", false, "fetch and index each bookmarked page")
	ingestWebCmd.Flags().IntVarP(&ingestCount, "count", "n", 5, "number of search results to index")

	ingestCmd.AddCommand(ingestTextCmd)
	ingestCmd.AddCommand(ingestFileCmd)
	ingestCmd.AddCommand(ingestDirCmd)
	ingestCmd.AddCommand(ingestBookmarksCmd)
	ingestCmd.AddCommand(ingestWebCmd)
	rootCmd.AddCommand(ingestCmd)
}

// runIngest sends the ingestion to the server when --server is set and runs it locally otherwise.
func runIngest(
	cmd *cobra.Command,
	remote func(api *apiClient, res *ingest.Result) error,
	local func(ctx context.Context, c *app.Components) (*ingest.Result, error),
) error {
	var res *ingest.Result
	if serverURL != "" {
		res = &ingest.Result{}
		if err := remote(newAPIClient(serverURL), res); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
	} else {
		ctx := context.Background()
		c, closeFn, err := openComponents(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		res, err = local(ctx, c)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
	}
	return WriteIndexResult(cmd.OutOrStdout(), res, format())
}
