package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortex-search/cortex/internal/retrieval"
)

func newTestStore(t *testing.T) *SQLiteHybridStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDocs() []retrieval.VectorDocument {
	return []retrieval.VectorDocument{
		{ID: "1", Content: "func ConnectDatabase() error { return nil }", Vector: []float32{1, 0, 0}, RelativePath: "db.go", StartLine: 1, EndLine: 3},
		{ID: "2", Content: "func HandleRequest(w http.ResponseWriter) {}", Vector: []float32{0, 1, 0}, RelativePath: "http.go", StartLine: 1, EndLine: 3},
		{ID: "3", Content: "func RetryWithBackoff() error { return nil }", Vector: []float32{0, 0, 1}, RelativePath: "retry.go", StartLine: 1, EndLine: 3},
	}
}

func TestHasCollection_FalseThenTrueAfterCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.HasCollection(ctx, "code_chunks_abc123")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.CreateCollection(ctx, "code_chunks_abc123", 3, "test"))
	exists, err = s.HasCollection(ctx, "code_chunks_abc123")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInsertAndSearch_ReturnsClosestVectorFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := "code_chunks_test1"
	require.NoError(t, s.CreateCollection(ctx, name, 3, "test"))
	require.NoError(t, s.Insert(ctx, name, sampleDocs()))

	results, err := s.Search(ctx, name, []float32{1, 0, 0}, retrieval.SearchOptions{TopK: 3, Threshold: -1})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "db.go", results[0].RelativePath)
}

func TestSearch_FilterExprExcludingClosestMatch_KeepsRemainingScoresAligned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := "code_chunks_test1b"
	require.NoError(t, s.CreateCollection(ctx, name, 3, "test"))
	require.NoError(t, s.Insert(ctx, name, sampleDocs()))

	unfiltered, err := s.Search(ctx, name, []float32{1, 0, 0}, retrieval.SearchOptions{TopK: 3, Threshold: -1})
	require.NoError(t, err)
	require.Len(t, unfiltered, 3)
	require.Equal(t, "db.go", unfiltered[0].RelativePath) // closest match, excluded by the filter below

	var wantScore float64
	for _, r := range unfiltered {
		if r.RelativePath == "http.go" {
			wantScore = r.Score
		}
	}

	filtered, err := s.Search(ctx, name, []float32{1, 0, 0}, retrieval.SearchOptions{
		TopK: 3, Threshold: -1, FilterExpr: `relative_path == "http.go"`,
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "http.go", filtered[0].RelativePath)
	assert.InDelta(t, wantScore, filtered[0].Score, 1e-9, "score for the surviving row must match its own distance, not the filtered-out closer row's")
}

func TestInsertHybridAndHybridSearch_FusesDenseAndSparse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := "hybrid_code_chunks_test2"
	require.NoError(t, s.CreateHybridCollection(ctx, name, 3, "test"))
	require.NoError(t, s.InsertHybrid(ctx, name, sampleDocs()))

	subRequests := []retrieval.SubRequest{
		{Vector: []float32{0, 0, 1}, AnnsField: "vector", Limit: 3},
		{Text: "retry backoff", AnnsField: "sparse_vector", Limit: 3},
	}
	results, err := s.HybridSearch(ctx, name, subRequests, retrieval.HybridSearchOptions{
		Rerank: retrieval.FusionParams{Strategy: "rrf", K: 100}, Limit: 3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "retry.go", results[0].RelativePath)
}

func TestQueryAndDelete_RemovesMatchingDocumentFromAllTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := "hybrid_code_chunks_test3"
	require.NoError(t, s.CreateHybridCollection(ctx, name, 3, "test"))
	require.NoError(t, s.InsertHybrid(ctx, name, sampleDocs()))

	rows, err := s.Query(ctx, name, `relative_path == "db.go"`, []string{"id"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0]["id"]

	require.NoError(t, s.Delete(ctx, name, []string{id}))

	rows, err = s.Query(ctx, name, `relative_path == "db.go"`, []string{"id"}, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)

	results, err := s.Search(ctx, name, []float32{1, 0, 0}, retrieval.SearchOptions{TopK: 10, Threshold: -1})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "db.go", r.RelativePath)
	}
}

func TestDropCollection_RemovesAllTablesCleanly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := "code_chunks_test4"
	require.NoError(t, s.CreateCollection(ctx, name, 3, "test"))
	require.NoError(t, s.Insert(ctx, name, sampleDocs()))

	require.NoError(t, s.DropCollection(ctx, name))
	exists, err := s.HasCollection(ctx, name)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReciprocalRankFusion_CombinesAndOrdersByFusedScore(t *testing.T) {
	fused := reciprocalRankFusion(100, []string{"a", "b", "c"}, []string{"b", "a"})
	require.Len(t, fused, 3)
	assert.Equal(t, "a", fused[0]) // appears near top of both lists
}

func TestParseRelativePathFilter_RoundTripsEscapedPath(t *testing.T) {
	column, value, ok := parseRelativePathFilter(`relative_path == "a\\b.go"`)
	require.True(t, ok)
	assert.Equal(t, "relative_path", column)
	assert.Equal(t, `a\b.go`, value)
}
