package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cortex-search/cortex/internal/config"
	"github.com/cortex-search/cortex/internal/retrieval"
	"github.com/cortex-search/cortex/internal/retriever"
	"github.com/cortex-search/cortex/internal/store"
)

var (
	searchTopK      int
	searchThreshold float64
	searchFilter    string
	searchPRF       bool
	searchJSON      bool
)

// searchCmd exposes spec §4.8's C8 Retriever as a one-shot CLI query. It
// has no direct teacher equivalent (the teacher only serves search
// through its MCP tool); it is grounded on the teacher's internal/cli
// command shape and on internal/mcpserver's own Search/SearchWithPRF
// dispatch.
var searchCmd = &cobra.Command{
	Use:   "search <path> <query>",
	Short: "Search an indexed codebase",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(args[0], args[1])
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0.5, "minimum similarity score")
	searchCmd.Flags().StringVar(&searchFilter, "filter", "", "store filter expression")
	searchCmd.Flags().BoolVar(&searchPRF, "prf", false, "expand the query with pseudo-relevance feedback before searching")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(path, queryText string) error {
	ctx := context.Background()

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

	vectorStore, err := store.Open(filepath.Join(absPath, ".cortex", "store.db"))
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer vectorStore.Close()

	r := retriever.New(provider, vectorStore, nil)

	opts := retriever.DefaultOptions()
	opts.TopK = searchTopK
	opts.Threshold = searchThreshold
	opts.FilterExpr = searchFilter
	opts.Hybrid = cfg.Indexer.Hybrid

	var results []retrieveResult
	if searchPRF {
		res, err := r.SearchWithPRF(ctx, absPath, queryText, opts)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		results = toRetrieveResults(res)
	} else {
		res, err := r.Search(ctx, absPath, queryText, opts)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		results = toRetrieveResults(res)
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, res := range results {
		fmt.Printf("%s:%d-%d (score %.3f)\n", res.RelativePath, res.StartLine, res.EndLine, res.Score)
		fmt.Println(res.Content)
		fmt.Println()
	}
	return nil
}

type retrieveResult struct {
	Content      string  `json:"content"`
	RelativePath string  `json:"relative_path"`
	StartLine    int     `json:"start_line"`
	EndLine      int     `json:"end_line"`
	Score        float64 `json:"score"`
}

func toRetrieveResults(results []retrieval.SearchResult) []retrieveResult {
	out := make([]retrieveResult, len(results))
	for i, r := range results {
		out[i] = retrieveResult{
			Content:      r.Content,
			RelativePath: r.RelativePath,
			StartLine:    r.StartLine,
			EndLine:      r.EndLine,
			Score:        r.Score,
		}
	}
	return out
}
