// Package retrieval declares the data model and external collaborator
// interfaces shared by the indexing and retrieval pipeline. It has no
// dependencies on any other internal package so that chunker, embedcache,
// query, tfidf, prf, snapshot, indexer and retriever can all depend on it
// without a cycle.
package retrieval

import "context"

// CodeChunk is a contiguous region of a source file, produced by the
// chunker and consumed by the indexer. It never outlives one indexing
// batch.
type CodeChunk struct {
	Content   string
	StartLine int
	EndLine   int
	Language  string
	FilePath  string
}

// VectorDocument is the unit persisted into the vector store. ID is
// derived deterministically from (RelativePath, StartLine, EndLine,
// Content) so that an unchanged chunk re-indexes to the same identity.
type VectorDocument struct {
	ID            string
	Content       string
	Vector        []float32
	RelativePath  string
	StartLine     int
	EndLine       int
	FileExtension string
	Metadata      map[string]string
}

// CachedEmbedding is a single row of the embedding cache.
type CachedEmbedding struct {
	ContentHash string
	Vector      []float32
	Dimension   int
	CreatedAt   int64 // epoch ms
}

// CacheStats summarizes the embedding cache contents.
type CacheStats struct {
	TotalEntries int
	SizeBytes    int64
	OldestTS     int64
	NewestTS     int64
}

// CodebaseSnapshot is the per-codebase map of relative path to content
// hash, used to compute added/removed/modified sets between indexings.
type CodebaseSnapshot struct {
	CodebasePath string
	Files        map[string]string // relative path (POSIX) -> content hash
	LastUpdated  int64             // epoch ms
}

// ExpansionTermSource tags where a PRF expansion term's weight came from.
type ExpansionTermSource string

const (
	ExpansionSourceTFIDF     ExpansionTermSource = "tfidf"
	ExpansionSourceFrequency ExpansionTermSource = "frequency"
	ExpansionSourceContext   ExpansionTermSource = "context"
)

// ExpansionTerm is one candidate term produced by the PRF engine.
type ExpansionTerm struct {
	Term          string
	Score         float64
	Frequency     int
	DocumentCount int
	Source        ExpansionTermSource
}

// PreprocessingResult is the output of the query preprocessor.
type PreprocessingResult struct {
	OriginalQuery    string
	NormalizedQuery  string
	ExpandedTerms    []string
	DetectedPatterns []string
	Reasoning        string
}

// PRFResult is the output of one pseudo-relevance-feedback expansion.
type PRFResult struct {
	OriginalQuery     string
	ExpandedQuery     string
	ExpansionTerms    []ExpansionTerm
	DocumentsAnalyzed int
	Reasoning         string
	ProcessingTimeMS  int64
}

// SearchResult is the data contract exposed to callers of the retriever
// and of the vector store.
type SearchResult struct {
	Content      string
	RelativePath string
	StartLine    int
	EndLine      int
	Language     string
	Score        float64 // higher is better
}

// FusionParams configures reciprocal-rank fusion at the store layer.
type FusionParams struct {
	Strategy string // "rrf"
	K        int
}

// SubRequest is one leg of a hybrid search call (dense or sparse).
type SubRequest struct {
	Vector    []float32 // nil for the sparse leg
	Text      string    // query text; used by the sparse leg, ignored by dense
	AnnsField string    // "vector" or "sparse_vector"
	Limit     int
}

// HybridSearchOptions configures a hybrid_search call.
type HybridSearchOptions struct {
	Rerank     FusionParams
	Limit      int
	FilterExpr string
}

// SearchOptions configures a plain dense search call.
type SearchOptions struct {
	TopK       int
	Threshold  float64
	FilterExpr string
}

// EmbeddingProvider is the required external embedding collaborator.
// Implementations are not part of the core; the core depends only on
// this interface.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	DetectDimension(ctx context.Context) (int, error)
	ProviderName() string
}

// VectorStore is the required external vector-store collaborator.
type VectorStore interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dimension int, description string) error
	CreateHybridCollection(ctx context.Context, name string, dimension int, description string) error
	DropCollection(ctx context.Context, name string) error
	Insert(ctx context.Context, name string, docs []VectorDocument) error
	InsertHybrid(ctx context.Context, name string, docs []VectorDocument) error
	Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]SearchResult, error)
	HybridSearch(ctx context.Context, name string, subRequests []SubRequest, opts HybridSearchOptions) ([]SearchResult, error)
	Query(ctx context.Context, name string, filterExpr string, outputFields []string, limit int) ([]map[string]string, error)
	Delete(ctx context.Context, name string, ids []string) error
}

// Reranker is the optional external cross-encoder collaborator.
type Reranker interface {
	Initialize(ctx context.Context) error
	Rerank(ctx context.Context, query string, results []SearchResult, topK int) ([]SearchResult, error)
	IsEnabled() bool
}
