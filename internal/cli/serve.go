package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ctxopt/internal/adapter/fs"
	"ctxopt/internal/mcp"
)

var serveNoWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Run an MCP server exposing optimize_file, search_code, analyze_query,
get_budget_status, get_cache_stats and reset_budget. Budget and cache live
for the lifetime of the server. Changed files are invalidated in the cache
and re-indexed unless --no-watch is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "do not watch the root directory for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(buildOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := mcp.NewServer(rt.engine, GetLogger())

	if !serveNoWatch {
		w, err := fs.NewWatcher(rt.walker, GetLogger())
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := srv.Watch(cmd.Context(), GetRootDir(), w); err != nil {
			_ = w.Stop()
			return fmt.Errorf("failed to watch %s: %w", GetRootDir(), err)
		}
	}

	return srv.Serve(cmd.Context())
}
