package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortex-search/cortex/internal/embedcache"
	"github.com/cortex-search/cortex/internal/indexer"
	"github.com/cortex-search/cortex/internal/retrieval"
)

type fakeProvider struct{}

func (fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}
func (p fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}
func (fakeProvider) DetectDimension(ctx context.Context) (int, error) { return 3, nil }
func (fakeProvider) ProviderName() string                            { return "fake" }

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
func (s *fakeStore) CreateCollection(ctx context.Context, name string, dim int, metric string) error {
	s.collections[name] = true
	return nil
}
func (s *fakeStore) CreateHybridCollection(ctx context.Context, name string, dim int, metric string) error {
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
	return nil, nil
}
func (s *fakeStore) Delete(ctx context.Context, name string, ids []string) error { return nil }

func TestReindexer_TriggersIncrementalReindexOnFileChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\nfunc Foo() {}\n"), 0o644))

	cache, err := embedcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	store := newFakeStore()
	ix := indexer.New(fakeProvider{}, store, cache, t.TempDir())

	sync := ix.NewSynchronizer(dir)
	opts := indexer.DefaultOptions()
	_, err = ix.IndexFull(context.Background(), dir, opts)
	require.NoError(t, err)

	r, err := NewReindexer(ix, dir, sync, opts, []string{".go"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	defer cancel()
	defer r.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package a\nfunc Bar() {}\n"), 0o644))

	name := indexer.CollectionName(dir, opts.Hybrid)
	require.Eventually(t, func() bool {
		for _, d := range store.docs[name] {
			if d.RelativePath == "b.go" {
				return true
			}
		}
		return false
	}, 3*time.Second, 50*time.Millisecond)

	assert.True(t, store.collections[name])
}
