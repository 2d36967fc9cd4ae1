package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortex-search/cortex/internal/embedcache"
	"github.com/cortex-search/cortex/internal/retrieval"
)

// fakeProvider is a deterministic EmbeddingProvider test double.
type fakeProvider struct{ dim int }

func (p *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (p *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, p.dim)
		for j := range v {
			v[j] = float32(len(t)+j) / 10
		}
		out[i] = v
	}
	return out, nil
}

func (p *fakeProvider) DetectDimension(ctx context.Context) (int, error) { return p.dim, nil }
func (p *fakeProvider) ProviderName() string                            { return "fake" }

// fakeStore is an in-memory VectorStore test double.
type fakeStore struct {
	collections map[string]bool
	docs        map[string][]retrieval.VectorDocument
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: map[string]bool{}, docs: map[string][]retrieval.VectorDocument{}}
}

func (s *fakeStore) HasCollection(ctx context.Context, name string) (bool, error) {
	return s.collections[name], nil
}
func (s *fakeStore) CreateCollection(ctx context.Context, name string, dimension int, description string) error {
	s.collections[name] = true
	return nil
}
func (s *fakeStore) CreateHybridCollection(ctx context.Context, name string, dimension int, description string) error {
	s.collections[name] = true
	return nil
}
func (s *fakeStore) DropCollection(ctx context.Context, name string) error {
	delete(s.collections, name)
	delete(s.docs, name)
	return nil
}
func (s *fakeStore) Insert(ctx context.Context, name string, docs []retrieval.VectorDocument) error {
	s.docs[name] = append(s.docs[name], docs...)
	return nil
}
func (s *fakeStore) InsertHybrid(ctx context.Context, name string, docs []retrieval.VectorDocument) error {
	return s.Insert(ctx, name, docs)
}
func (s *fakeStore) Search(ctx context.Context, name string, vector []float32, opts retrieval.SearchOptions) ([]retrieval.SearchResult, error) {
	return nil, nil
}
func (s *fakeStore) HybridSearch(ctx context.Context, name string, subRequests []retrieval.SubRequest, opts retrieval.HybridSearchOptions) ([]retrieval.SearchResult, error) {
	return nil, nil
}
func (s *fakeStore) Query(ctx context.Context, name, filterExpr string, outputFields []string, limit int) ([]map[string]string, error) {
	expectedExpr := filterExprForPath
	var rows []map[string]string
	for _, d := range s.docs[name] {
		if expectedExpr(d.RelativePath) == filterExpr {
			rows = append(rows, map[string]string{"id": d.ID})
		}
	}
	return rows, nil
}
func (s *fakeStore) Delete(ctx context.Context, name string, ids []string) error {
	toDelete := make(map[string]bool, len(ids))
	for _, id := range ids {
		toDelete[id] = true
	}
	var kept []retrieval.VectorDocument
	for _, d := range s.docs[name] {
		if !toDelete[d.ID] {
			kept = append(kept, d)
		}
	}
	s.docs[name] = kept
	return nil
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func newTestIndexer(t *testing.T) (*Indexer, *fakeStore) {
	t.Helper()
	cache, err := embedcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	store := newFakeStore()
	ix := New(&fakeProvider{dim: 4}, store, cache, t.TempDir())
	return ix, store
}

func TestIndexFull_EmbedsAndInsertsChunksForEachFile(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"a.go": "package a\n\nfunc Foo() {\n\tprintln(\"foo\")\n}\n",
		"b.py": "def bar():\n    return 1\n",
	})
	ix, store := newTestIndexer(t)

	opts := DefaultOptions()
	stats, err := ix.IndexFull(context.Background(), dir, opts)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stats.Status)
	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Greater(t, stats.ChunksIndexed, 0)

	name := CollectionName(dir, opts.Hybrid)
	assert.True(t, store.collections[name])
	assert.Len(t, store.docs[name], stats.ChunksIndexed)
}

func TestIndexFull_RespectsIgnoredAndUnsupportedExtensions(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"a.go":                "package a\nfunc Foo() {}\n",
		"node_modules/x.go":   "package ignored\nfunc Bar() {}\n",
		"notes.txt":           "not a supported extension",
	})
	ix, store := newTestIndexer(t)

	opts := DefaultOptions()
	stats, err := ix.IndexFull(context.Background(), dir, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)

	name := CollectionName(dir, opts.Hybrid)
	for _, d := range store.docs[name] {
		assert.Equal(t, "a.go", d.RelativePath)
	}
}

func TestIndexFull_ChunkLimitStopsCleanlyAndReportsLimitReached(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"a.go": "package a\n\nfunc Foo() {}\n\nfunc Bar() {}\n\nfunc Baz() {}\n",
	})
	ix, _ := newTestIndexer(t)

	opts := DefaultOptions()
	opts.ChunkLimit = 1
	stats, err := ix.IndexFull(context.Background(), dir, opts)
	require.NoError(t, err)
	assert.Equal(t, StatusLimitReached, stats.Status)
	assert.Equal(t, 1, stats.ChunksIndexed)
}

func TestIndexIncremental_ReindexesOnlyAddedAndModifiedFiles(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"a.go": "package a\nfunc Foo() {}\n",
		"b.go": "package a\nfunc Bar() {}\n",
	})
	ix, store := newTestIndexer(t)
	opts := DefaultOptions()

	_, err := ix.IndexFull(context.Background(), dir, opts)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "b.go")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\nfunc FooChanged() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.go"), []byte("package a\nfunc Baz() {}\n"), 0o644))

	sync := ix.NewSynchronizer(dir)
	stats, err := ix.IndexIncremental(context.Background(), dir, sync, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesProcessed) // a.go (modified) + c.go (added)
	assert.Greater(t, stats.FilesDeleted, 0)

	name := CollectionName(dir, opts.Hybrid)
	var paths []string
	for _, d := range store.docs[name] {
		paths = append(paths, d.RelativePath)
	}
	assert.NotContains(t, paths, "b.go")
}

func TestDeleteFile_RemovesOnlyMatchingDocuments(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"a.go": "package a\nfunc Foo() {}\n",
		"b.go": "package a\nfunc Bar() {}\n",
	})
	ix, store := newTestIndexer(t)
	opts := DefaultOptions()
	_, err := ix.IndexFull(context.Background(), dir, opts)
	require.NoError(t, err)

	name := CollectionName(dir, opts.Hybrid)
	before := len(store.docs[name])
	require.Greater(t, before, 0)

	n, err := ix.DeleteFile(context.Background(), name, "a.go")
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	for _, d := range store.docs[name] {
		assert.NotEqual(t, "a.go", d.RelativePath)
	}
}

func TestCollectionName_DiffersByHybridModeAndPath(t *testing.T) {
	a := CollectionName("/repo/a", true)
	b := CollectionName("/repo/a", false)
	c := CollectionName("/repo/b", true)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, CollectionName("/repo/a", true))
}
