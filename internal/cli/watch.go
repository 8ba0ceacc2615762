package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8000"

var watchNoSync bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage directories watched by a running server",
}

var watchAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a directory to watch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		body := map[string]interface{}{"path": path, "sync": !watchNoSync}
		if err := watchClient().do(http.MethodPost, "/api/watch/directories", body, nil, http.StatusCreated); err != nil {
			return fmt.Errorf("add failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", path)
		return nil
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove <path>",
	Short: "Stop watching a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if err := watchClient().do(http.MethodDelete, "/api/watch/directories?path="+url.QueryEscape(path), nil, nil); err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", path)
		return nil
	},
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := watchClient().do(http.MethodGet, "/api/watch/directories", nil, &out); err != nil {
			return fmt.Errorf("list failed: %w", err)
		}
		if format() == OutputJSON {
			return writeJSON(cmd.OutOrStdout(), out)
		}
		for _, d := range out.Directories {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	},
}

func init() {
	watchAddCmd.Flags().BoolVar(&watchNoSync, "no-sync", false, "do not index files already in the directory")
	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchListCmd)
	rootCmd.AddCommand(watchCmd)
}

// watchClient targets --server, or the default local server since watching lives in the server.
func watchClient() *apiClient {
	if serverURL == "" {
		return newAPIClient(defaultServerURL)
	}
	return newAPIClient(serverURL)
}
