// Package indexer drives chunking, embedding (with cache), and vector
// store insertion for a full index or an incremental delta (spec
// component C7). It is grounded on the teacher's internal/indexer
// package's discovery.go (gobwas/glob ignore composition) and
// progress.go (callback-based progress reporting) idioms, restructured
// around the simpler chunk/document pipeline the spec calls for instead
// of the teacher's branch-aware, graph-aware multi-stage processor.
package indexer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cortex-search/cortex/internal/chunker"
	"github.com/cortex-search/cortex/internal/embedcache"
	"github.com/cortex-search/cortex/internal/retrieval"
	"github.com/cortex-search/cortex/internal/snapshot"
)

// Status is the outcome of one indexing invocation.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusLimitReached Status = "limit_reached"
)

// Stats summarizes one IndexFull/IndexIncremental call.
type Stats struct {
	FilesProcessed int
	ChunksIndexed  int
	FilesDeleted   int
	Status         Status
}

// Options configures one indexing invocation.
type Options struct {
	ChunkOptions   chunker.Options
	BatchSize      int // embedding_batch_size, default 100
	ChunkLimit     int // default 450000
	Hybrid         bool
	ForceReindex   bool
	IgnorePatterns []string // additional, caller-supplied
	Extensions     []string // additional, caller-supplied
	OnProgress     ProgressFunc
}

// DefaultOptions returns the documented defaults from spec §4.7/§6.
func DefaultOptions() Options {
	return Options{
		ChunkOptions: chunker.DefaultOptions(),
		BatchSize:    100,
		ChunkLimit:   450000,
		Hybrid:       true,
	}
}

// Indexer is the C7 pipeline. One Indexer is shared across codebases; it
// holds no per-codebase mutable state beyond what Synchronizer instances
// it creates on demand (spec §5's "per-codebase Synchronizer, reused
// across incremental reindex calls" is satisfied by the caller holding
// onto the Synchronizer it gets from NewSynchronizer, not by Indexer
// itself caching one).
type Indexer struct {
	Provider   retrieval.EmbeddingProvider
	Store      retrieval.VectorStore
	Cache      *embedcache.Cache
	StorageDir string // per-user snapshot directory
}

// New constructs an Indexer.
func New(provider retrieval.EmbeddingProvider, store retrieval.VectorStore, cache *embedcache.Cache, storageDir string) *Indexer {
	return &Indexer{Provider: provider, Store: store, Cache: cache, StorageDir: storageDir}
}

// NewSynchronizer returns the per-codebase Synchronizer used to drive
// IndexIncremental. Callers should hold onto it and reuse it rather than
// constructing a fresh one per call, per spec §5.
func (ix *Indexer) NewSynchronizer(codebasePath string) *snapshot.Synchronizer {
	return snapshot.New(codebasePath, ix.StorageDir)
}

type discoveredFile struct {
	relPath string
	absPath string
	hash    string
}

func (ix *Indexer) discover(codebasePath string, opts Options) ([]discoveredFile, error) {
	patterns := composeIgnorePatterns(codebasePath, opts.IgnorePatterns)
	matcher, err := compileIgnoreMatcher(patterns)
	if err != nil {
		return nil, fmt.Errorf("indexer: compile ignore patterns: %w", err)
	}
	extensions := composeExtensions(opts.Extensions)

	var files []discoveredFile
	err = filepath.Walk(codebasePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("indexer: walk error at %s: %v", path, err)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(codebasePath, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if matcher.Match(relPath) {
			return nil
		}
		if !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			log.Printf("indexer: skipping unreadable file %s: %v", path, err)
			return nil
		}
		files = append(files, discoveredFile{
			relPath: relPath,
			absPath: path,
			hash:    snapshot.ContentHash(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: walk %s: %w", codebasePath, err)
	}
	return files, nil
}

func fileListMap(files []discoveredFile) map[string]string {
	m := make(map[string]string, len(files))
	for _, f := range files {
		m[f.relPath] = f.hash
	}
	return m
}

// prepareCollection implements spec §4.7 step 1.
func (ix *Indexer) prepareCollection(ctx context.Context, name string, opts Options) error {
	exists, err := ix.Store.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("indexer: has_collection %s: %w", name, err)
	}

	if exists && opts.ForceReindex {
		if err := ix.Store.DropCollection(ctx, name); err != nil {
			return fmt.Errorf("indexer: drop_collection %s: %w", name, err)
		}
		exists = false
	}
	if exists {
		return nil
	}

	dimension, err := ix.Provider.DetectDimension(ctx)
	if err != nil {
		return fmt.Errorf("indexer: detect_dimension: %w", err)
	}

	description := fmt.Sprintf("code chunks (%s)", ix.Provider.ProviderName())
	if opts.Hybrid {
		return ix.Store.CreateHybridCollection(ctx, name, dimension, description)
	}
	return ix.Store.CreateCollection(ctx, name, dimension, description)
}

// IndexFull runs a complete index of codebasePath, establishing (or
// resetting, with ForceReindex) the snapshot baseline for future
// incremental calls.
func (ix *Indexer) IndexFull(ctx context.Context, codebasePath string, opts Options) (Stats, error) {
	name := CollectionName(codebasePath, opts.Hybrid)
	opts.OnProgress.report(Progress{Phase: "preparing", Current: 0, Total: 1, Percentage: 0})

	if err := ix.prepareCollection(ctx, name, opts); err != nil {
		return Stats{}, err
	}

	files, err := ix.discover(codebasePath, opts)
	if err != nil {
		return Stats{}, err
	}
	opts.OnProgress.report(Progress{Phase: "preparing", Current: 1, Total: 1, Percentage: 10})

	stats, err := ix.processFiles(ctx, name, files, opts)
	if err != nil {
		return stats, err
	}

	sync := ix.NewSynchronizer(codebasePath)
	if err := sync.Initialize(); err != nil {
		return stats, fmt.Errorf("indexer: initialize snapshot: %w", err)
	}
	if _, err := sync.CheckForChanges(func() (map[string]string, error) { return fileListMap(files), nil }); err != nil {
		return stats, fmt.Errorf("indexer: update snapshot: %w", err)
	}
	if err := sync.Commit(); err != nil {
		return stats, fmt.Errorf("indexer: commit snapshot: %w", err)
	}

	return stats, nil
}

// IndexIncremental diffs the current tree against the stored snapshot via
// sync, deletes documents for removed/modified files, reindexes
// added∪modified, and commits the new snapshot — but only if the whole
// job completed, per spec §5's cancellation rule.
func (ix *Indexer) IndexIncremental(ctx context.Context, codebasePath string, sync *snapshot.Synchronizer, opts Options) (Stats, error) {
	name := CollectionName(codebasePath, opts.Hybrid)
	if err := ix.prepareCollection(ctx, name, opts); err != nil {
		return Stats{}, err
	}

	files, err := ix.discover(codebasePath, opts)
	if err != nil {
		return Stats{}, err
	}

	if err := sync.Initialize(); err != nil {
		return Stats{}, fmt.Errorf("indexer: initialize snapshot: %w", err)
	}
	changes, err := sync.CheckForChanges(func() (map[string]string, error) { return fileListMap(files), nil })
	if err != nil {
		return Stats{}, fmt.Errorf("indexer: check for changes: %w", err)
	}

	var stats Stats
	for _, path := range changes.Removed {
		n, err := ix.DeleteFile(ctx, name, path)
		if err != nil {
			return stats, fmt.Errorf("indexer: delete removed file %s: %w", path, err)
		}
		stats.FilesDeleted += n
	}
	for _, path := range changes.Modified {
		n, err := ix.DeleteFile(ctx, name, path)
		if err != nil {
			return stats, fmt.Errorf("indexer: delete modified file %s: %w", path, err)
		}
		stats.FilesDeleted += n
	}

	toReindex := make(map[string]bool, len(changes.Added)+len(changes.Modified))
	for _, p := range changes.Added {
		toReindex[p] = true
	}
	for _, p := range changes.Modified {
		toReindex[p] = true
	}

	var subset []discoveredFile
	for _, f := range files {
		if toReindex[f.relPath] {
			subset = append(subset, f)
		}
	}

	processed, err := ix.processFiles(ctx, name, subset, opts)
	if err != nil {
		return stats, err
	}
	stats.FilesProcessed = processed.FilesProcessed
	stats.ChunksIndexed = processed.ChunksIndexed
	stats.Status = processed.Status

	if ctx.Err() != nil {
		// Cancelled: the in-flight batch above has already completed, but
		// the snapshot must not be committed for a job that didn't finish.
		return stats, ctx.Err()
	}

	if err := sync.Commit(); err != nil {
		return stats, fmt.Errorf("indexer: commit snapshot: %w", err)
	}
	return stats, nil
}

type pendingChunk struct {
	chunk   retrieval.CodeChunk
	relPath string
}

// processFiles implements spec §4.7 steps 2-4: stream chunks through a
// bounded buffer, batch-resolve embeddings through the cache, and insert
// into the store, respecting the chunk_limit ceiling.
func (ix *Indexer) processFiles(ctx context.Context, collectionName string, files []discoveredFile, opts Options) (Stats, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	chunkLimit := opts.ChunkLimit
	if chunkLimit <= 0 {
		chunkLimit = 450000
	}

	stats := Stats{Status: StatusCompleted}
	var buffer []pendingChunk

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		if err := ix.embedAndInsert(ctx, collectionName, buffer, opts.Hybrid); err != nil {
			return err
		}
		stats.ChunksIndexed += len(buffer)
		buffer = buffer[:0]
		return nil
	}

filesLoop:
	for i, f := range files {
		if ctx.Err() != nil {
			break
		}

		content, err := os.ReadFile(f.absPath)
		if err != nil {
			log.Printf("indexer: skipping unreadable file %s: %v", f.absPath, err)
			continue
		}

		ext := strings.ToLower(filepath.Ext(f.absPath))
		chunks := chunker.Chunk(string(content), languageForExtension(ext), f.relPath, opts.ChunkOptions)

		for _, c := range chunks {
			if stats.ChunksIndexed+len(buffer) >= chunkLimit {
				stats.Status = StatusLimitReached
				break filesLoop
			}
			buffer = append(buffer, pendingChunk{chunk: c, relPath: f.relPath})
			if len(buffer) >= batchSize {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}

		stats.FilesProcessed++
		pct := 10 + 90*float64(i+1)/float64(len(files))
		opts.OnProgress.report(Progress{Phase: "processing", Current: i + 1, Total: len(files), Percentage: pct})
	}

	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (ix *Indexer) embedAndInsert(ctx context.Context, collectionName string, batch []pendingChunk, hybrid bool) error {
	hashes := make([]string, len(batch))
	for i, p := range batch {
		hashes[i] = embedcache.ContentHash(p.chunk.Content)
	}

	cached := ix.Cache.GetMany(hashes)

	var missIdx []int
	var missTexts []string
	for i, h := range hashes {
		if _, ok := cached[h]; !ok {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, batch[i].chunk.Content)
		}
	}

	if len(missTexts) > 0 {
		vectors, err := ix.Provider.EmbedBatch(ctx, missTexts)
		if err != nil {
			return fmt.Errorf("indexer: embed_batch: %w", err)
		}
		if len(vectors) != len(missTexts) {
			return fmt.Errorf("indexer: embed_batch returned %d vectors for %d texts", len(vectors), len(missTexts))
		}
		newEntries := make(map[string][]float32, len(missIdx))
		for j, idx := range missIdx {
			cached[hashes[idx]] = vectors[j]
			newEntries[hashes[idx]] = vectors[j]
		}
		if err := ix.Cache.SetMany(newEntries); err != nil {
			return fmt.Errorf("indexer: cache set_many: %w", err)
		}
	}

	docs := make([]retrieval.VectorDocument, len(batch))
	for i, p := range batch {
		vector := cached[hashes[i]]
		docs[i] = retrieval.VectorDocument{
			ID:            retrieval.DocumentID(p.relPath, p.chunk.StartLine, p.chunk.EndLine, p.chunk.Content),
			Content:       p.chunk.Content,
			Vector:        vector,
			RelativePath:  p.relPath,
			StartLine:     p.chunk.StartLine,
			EndLine:       p.chunk.EndLine,
			FileExtension: filepath.Ext(p.relPath),
			Metadata:      map[string]string{"language": p.chunk.Language},
		}
	}

	if hybrid {
		return ix.Store.InsertHybrid(ctx, collectionName, docs)
	}
	return ix.Store.Insert(ctx, collectionName, docs)
}

// DeleteFile implements spec §4.7's "per-file delete": build a filter
// expression matching relative_path, query for ids, batch-delete them.
// Returns the number of documents deleted.
func (ix *Indexer) DeleteFile(ctx context.Context, collectionName, relativePath string) (int, error) {
	expr := filterExprForPath(relativePath)
	rows, err := ix.Store.Query(ctx, collectionName, expr, []string{"id"}, 0)
	if err != nil {
		return 0, fmt.Errorf("indexer: query for delete %s: %w", relativePath, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, ok := row["id"]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := ix.Store.Delete(ctx, collectionName, ids); err != nil {
		return 0, fmt.Errorf("indexer: delete %s: %w", relativePath, err)
	}
	return len(ids), nil
}

// filterExprForPath builds `relative_path == "<escaped path>"`, doubling
// backslashes for portability, per spec §4.7.
func filterExprForPath(relativePath string) string {
	escaped := strings.ReplaceAll(relativePath, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return fmt.Sprintf(`relative_path == "%s"`, escaped)
}
