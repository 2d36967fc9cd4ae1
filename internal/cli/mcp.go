package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cortex-search/cortex/internal/config"
	"github.com/cortex-search/cortex/internal/mcpserver"
	"github.com/cortex-search/cortex/internal/retriever"
	"github.com/cortex-search/cortex/internal/store"
)

// mcpCmd starts the stdio MCP server over an already-indexed codebase.
// Grounded on the teacher's internal/cli/mcp.go (config load, read-only
// database open, graceful-degradation-on-missing-provider, server.Serve
// blocking call), retargeted onto internal/mcpserver.Server and the new
// store/retriever packages.
var mcpCmd = &cobra.Command{
	Use:   "mcp [path]",
	Short: "Start the MCP server for semantic code search",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(pathArg(args))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(path string) error {
	ctx := context.Background()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve codebase path: %w", err)
	}

	cfg, err := config.LoadConfigFromDir(absPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Fprintln(os.Stderr, "cortex mcp server")
	fmt.Fprintf(os.Stderr, "codebase: %s\n", absPath)

	storePath := filepath.Join(absPath, ".cortex", "store.db")
	vectorStore, err := store.Open(storePath)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer vectorStore.Close()

	provider, err := buildProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: embedding provider unavailable: %v\n", err)
		fmt.Fprintln(os.Stderr, "  search will fail until the codebase is reindexed with a working provider")
	}

	r := retriever.New(provider, vectorStore, nil)

	srv := mcpserver.New(absPath, r)
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
