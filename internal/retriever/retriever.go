// Package retriever implements the query-serving half of the pipeline
// (spec component C8): it mediates the query preprocessor, the embedding
// provider, the vector store, the optional reranker, and the optional
// PRF engine. It is grounded on the teacher's internal/mcp
// searcher_coordinator.go for its parallel multi-query fan-out shape
// (sync.WaitGroup over independent sub-searches), retargeted from
// coordinating reloads across two independent indexes onto coordinating
// one hybrid/dense search per selected query variant.
package retriever

import (
	"context"
	"fmt"
	"sync"

	"github.com/cortex-search/cortex/internal/indexer"
	"github.com/cortex-search/cortex/internal/prf"
	"github.com/cortex-search/cortex/internal/query"
	"github.com/cortex-search/cortex/internal/retrieval"
)

// Options configures one search call.
type Options struct {
	TopK       int
	Threshold  float64
	FilterExpr string
	Hybrid     bool
}

// DefaultOptions matches spec §4.8's documented defaults.
func DefaultOptions() Options {
	return Options{TopK: 5, Threshold: 0.5, Hybrid: true}
}

// Retriever is the C8 component.
type Retriever struct {
	Provider      retrieval.EmbeddingProvider
	Store         retrieval.VectorStore
	Reranker      retrieval.Reranker // optional; may be nil
	PreprocessCfg query.Config
	PRFConfig     prf.Config
	PRFStats      *prf.Stats // optional; shared across calls for stats accumulation
}

// New constructs a Retriever with default preprocessing/PRF configs.
func New(provider retrieval.EmbeddingProvider, store retrieval.VectorStore, reranker retrieval.Reranker) *Retriever {
	return &Retriever{
		Provider:      provider,
		Store:         store,
		Reranker:      reranker,
		PreprocessCfg: query.DefaultConfig(),
		PRFConfig:     prf.DefaultConfig(),
	}
}

// Search implements spec §4.8's search operation. It fails with
// retrieval.ErrNotIndexed if the codebase's collection does not exist.
func (r *Retriever) Search(ctx context.Context, codebasePath, queryText string, opts Options) ([]retrieval.SearchResult, error) {
	name := indexer.CollectionName(codebasePath, opts.Hybrid)
	exists, err := r.Store.HasCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("retriever: has_collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("retriever: codebase not indexed: %w", retrieval.ErrNotIndexed)
	}

	return r.search(ctx, name, queryText, opts)
}

// search runs spec §4.8 steps 1-6 against an already-resolved collection
// name, so SearchWithPRF can re-run it without re-checking has_collection.
func (r *Retriever) search(ctx context.Context, collectionName, queryText string, opts Options) ([]retrieval.SearchResult, error) {
	pre := query.Preprocess(queryText, r.PreprocessCfg)

	multiQuery := len(pre.ExpandedTerms) >= 2 && len(pre.DetectedPatterns) >= 1

	variantCount := 1
	if multiQuery {
		variantCount = 3
	}
	variants := query.SelectVariants(pre, variantCount)
	if len(variants) == 0 {
		variants = []string{pre.NormalizedQuery}
	}
	primary := variants[0]

	limit := opts.TopK
	if r.Reranker != nil && r.Reranker.IsEnabled() {
		if doubled := opts.TopK * 2; doubled < 50 {
			limit = doubled
		} else {
			limit = 50
		}
	}

	fused, err := r.fanOut(ctx, collectionName, variants, primary, limit, opts)
	if err != nil {
		return nil, err
	}
	fused = dedupResults(fused)

	results := fused
	if r.Reranker != nil && r.Reranker.IsEnabled() && len(fused) > 0 {
		reranked, err := r.Reranker.Rerank(ctx, primary, fused, opts.TopK)
		if err != nil {
			// Reranker failure: fall back to the first top_k of the fused
			// list, per spec §4.8 step 5.
			results = truncate(fused, opts.TopK)
		} else {
			results = truncate(reranked, opts.TopK)
		}
	} else {
		results = truncate(fused, opts.TopK)
	}

	return results, nil
}

// fanOut issues one hybrid/dense search per variant, concurrently, and
// concatenates the results. Single-query mode degenerates to one call.
func (r *Retriever) fanOut(ctx context.Context, collectionName string, variants []string, primary string, limit int, opts Options) ([]retrieval.SearchResult, error) {
	type outcome struct {
		results []retrieval.SearchResult
		err     error
	}
	outcomes := make([]outcome, len(variants))

	var wg sync.WaitGroup
	for i, variant := range variants {
		wg.Add(1)
		go func(i int, variant string) {
			defer wg.Done()
			res, err := r.searchOneVariant(ctx, collectionName, variant, limit, opts)
			outcomes[i] = outcome{results: res, err: err}
		}(i, variant)
	}
	wg.Wait()

	var all []retrieval.SearchResult
	for _, o := range outcomes {
		if o.err != nil {
			return nil, o.err
		}
		all = append(all, o.results...)
	}
	return all, nil
}

func (r *Retriever) searchOneVariant(ctx context.Context, collectionName, variantText string, limit int, opts Options) ([]retrieval.SearchResult, error) {
	vector, err := r.Provider.Embed(ctx, variantText)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed: %w", err)
	}

	if !opts.Hybrid {
		return r.Store.Search(ctx, collectionName, vector, retrieval.SearchOptions{
			TopK: limit, Threshold: opts.Threshold, FilterExpr: opts.FilterExpr,
		})
	}

	subRequests := []retrieval.SubRequest{
		{Vector: vector, AnnsField: "vector", Limit: limit},
		{Text: variantText, AnnsField: "sparse_vector", Limit: limit},
	}
	return r.Store.HybridSearch(ctx, collectionName, subRequests, retrieval.HybridSearchOptions{
		Rerank:     retrieval.FusionParams{Strategy: "rrf", K: 100},
		Limit:      limit,
		FilterExpr: opts.FilterExpr,
	})
}

// SearchWithPRF implements spec §4.8's search_with_prf two-pass search.
func (r *Retriever) SearchWithPRF(ctx context.Context, codebasePath, queryText string, opts Options) ([]retrieval.SearchResult, error) {
	name := indexer.CollectionName(codebasePath, opts.Hybrid)
	exists, err := r.Store.HasCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("retriever: has_collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("retriever: codebase not indexed: %w", retrieval.ErrNotIndexed)
	}

	firstPassTopK := opts.TopK * 2
	if firstPassTopK < 12 {
		firstPassTopK = 12
	}
	firstOpts := opts
	firstOpts.TopK = firstPassTopK
	firstOpts.Threshold = 0.8 * opts.Threshold

	firstPass, err := r.search(ctx, name, queryText, firstOpts)
	if err != nil {
		return nil, err
	}
	if len(firstPass) == 0 {
		return firstPass, nil
	}

	prfInput := make([]prf.Result, len(firstPass))
	for i, res := range firstPass {
		prfInput[i] = prf.Result{Content: res.Content}
	}
	expansion := prf.Expand(queryText, prfInput, r.PRFConfig, r.PRFStats)

	if expansion.ExpandedQuery == expansion.OriginalQuery {
		// Trivial or failed expansion: fall back silently to the first pass.
		return truncate(firstPass, opts.TopK), nil
	}

	secondPass, err := r.search(ctx, name, expansion.ExpandedQuery, opts)
	if err != nil {
		// PRF re-query failure: fall back silently to the first pass.
		return truncate(firstPass, opts.TopK), nil
	}

	merged := mergeDedup(secondPass, firstPass)
	return truncate(merged, opts.TopK), nil
}

type resultKey struct {
	relativePath         string
	startLine, endLine   int
}

func keyOf(r retrieval.SearchResult) resultKey {
	return resultKey{relativePath: r.RelativePath, startLine: r.StartLine, endLine: r.EndLine}
}

// dedupResults removes duplicate (relative_path, start_line, end_line)
// entries, keeping first occurrence (highest-scoring sub-query first, by
// convention of caller ordering).
func dedupResults(results []retrieval.SearchResult) []retrieval.SearchResult {
	seen := make(map[resultKey]bool, len(results))
	out := make([]retrieval.SearchResult, 0, len(results))
	for _, r := range results {
		k := keyOf(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// mergeDedup merges expansion-pass results ahead of first-pass results,
// de-duplicated by (relative_path, start_line, end_line), per spec
// §4.8's search_with_prf.
func mergeDedup(expansionPass, firstPass []retrieval.SearchResult) []retrieval.SearchResult {
	return dedupResults(append(append([]retrieval.SearchResult{}, expansionPass...), firstPass...))
}

func truncate(results []retrieval.SearchResult, topK int) []retrieval.SearchResult {
	if topK <= 0 || len(results) <= topK {
		return results
	}
	return results[:topK]
}
