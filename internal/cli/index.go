package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cortex-search/cortex/internal/config"
	"github.com/cortex-search/cortex/internal/embedcache"
	"github.com/cortex-search/cortex/internal/embedprovider"
	"github.com/cortex-search/cortex/internal/indexer"
	"github.com/cortex-search/cortex/internal/retrieval"
	"github.com/cortex-search/cortex/internal/store"
	"github.com/cortex-search/cortex/internal/watcher"
)

var (
	watchFlag bool
	forceFlag bool
)

// indexCmd implements spec §4.7's C7 Indexer, full or (with --watch)
// incremental thereafter. Grounded on the teacher's internal/cli/index.go
// (context+signal cancellation, config load, provider/storage
// construction, progress reporting, final stats printing), retargeted
// onto the new provider/store/cache/indexer packages. --watch is wired
// to internal/watcher.Reindexer, unlike the teacher's stub.
var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a codebase for semantic search",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(pathArg(args))
	},
}

func init() {
	indexCmd.Flags().BoolVar(&watchFlag, "watch", false, "watch the codebase and reindex incrementally after the initial index")
	indexCmd.Flags().BoolVar(&forceFlag, "force", false, "drop and rebuild the collection instead of reusing an existing one")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(path string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "interrupted, cancelling...")
		cancel()
	}()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve codebase path: %w", err)
	}

	cfg, err := config.LoadConfigFromDir(absPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("build embedding provider: %w", err)
	}

	cortexDir := filepath.Join(absPath, ".cortex")
	if err := os.MkdirAll(cortexDir, 0o755); err != nil {
		return fmt.Errorf("create .cortex directory: %w", err)
	}

	cache, err := embedcache.Open(filepath.Join(cortexDir, "cache.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: embedding cache unavailable, continuing without it: %v\n", err)
	}

	vectorStore, err := store.Open(filepath.Join(cortexDir, "store.db"))
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer vectorStore.Close()

	ix := indexer.New(provider, vectorStore, cache, cortexDir)

	opts := indexer.DefaultOptions()
	opts.Hybrid = cfg.Indexer.Hybrid
	opts.BatchSize = cfg.Indexer.EmbeddingBatchSize
	opts.ChunkLimit = cfg.Indexer.ChunkLimit
	opts.IgnorePatterns = cfg.Indexer.CustomIgnorePatterns
	opts.Extensions = cfg.Indexer.CustomExtensions
	opts.ForceReindex = forceFlag

	reporter := newCLIProgressReporter(quiet)
	opts.OnProgress = reporter.onProgress

	stats, err := ix.IndexFull(ctx, absPath, opts)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	reporter.onComplete(stats)

	if !watchFlag {
		return nil
	}

	sync := ix.NewSynchronizer(absPath)
	reind, err := watcher.NewReindexer(ix, absPath, sync, opts, indexer.SupportedExtensions(opts.Extensions))
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := reind.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer reind.Stop()

	fmt.Println("watching for changes (Ctrl+C to stop)...")
	<-ctx.Done()
	return nil
}

// buildProvider selects the embedding provider named by
// cfg.Embedding.Provider ("mock" or "http"), per spec §6.
func buildProvider(cfg *config.Config) (retrieval.EmbeddingProvider, error) {
	switch cfg.Embedding.Provider {
	case "http":
		if cfg.Embedding.Endpoint == "" {
			return nil, fmt.Errorf("embedding.endpoint is required for the http provider")
		}
		return embedprovider.NewHTTPProvider(cfg.Embedding.Endpoint, "http"), nil
	default:
		return embedprovider.NewMockProvider(384), nil
	}
}
