package watcher

import (
	"context"
	"log"

	"github.com/cortex-search/cortex/internal/indexer"
	"github.com/cortex-search/cortex/internal/snapshot"
)

// Reindexer wires a FileWatcher's debounced change callback to
// indexer.IndexIncremental, grounded on the teacher's
// WatchCoordinator.handleFileChange (internal/watcher/coordinator.go),
// trimmed of the git-branch-switch half of that coordinator since
// SPEC_FULL.md's indexer has no per-branch database.
type Reindexer struct {
	Indexer        *indexer.Indexer
	CodebasePath   string
	Synchronizer   *snapshot.Synchronizer
	Options        indexer.Options
	watcher        FileWatcher
}

// NewReindexer constructs a Reindexer over codebasePath, watching the given
// extensions and skipping whatever opts.IgnorePatterns (plus the indexer's
// usual defaults) excludes.
func NewReindexer(ix *indexer.Indexer, codebasePath string, sync *snapshot.Synchronizer, opts indexer.Options, extensions []string) (*Reindexer, error) {
	fw, err := NewFileWatcher(codebasePath, extensions, opts.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	return &Reindexer{
		Indexer:      ix,
		CodebasePath: codebasePath,
		Synchronizer: sync,
		Options:      opts,
		watcher:      fw,
	}, nil
}

// Start begins watching and triggers an incremental reindex on every
// debounced batch of file changes.
func (r *Reindexer) Start(ctx context.Context) error {
	return r.watcher.Start(ctx, r.handleFileChange)
}

// Stop stops the underlying file watcher.
func (r *Reindexer) Stop() error {
	return r.watcher.Stop()
}

func (r *Reindexer) handleFileChange(files []string) {
	if len(files) == 0 {
		return
	}

	log.Printf("watcher: %d file change(s) detected, running incremental reindex", len(files))

	ctx := context.Background()
	stats, err := r.Indexer.IndexIncremental(ctx, r.CodebasePath, r.Synchronizer, r.Options)
	if err != nil {
		log.Printf("watcher: incremental reindex failed: %v", err)
		return
	}

	log.Printf("watcher: reindexed (%d files processed, %d chunks indexed, %d stale documents deleted, status=%s)",
		stats.FilesProcessed, stats.ChunksIndexed, stats.FilesDeleted, stats.Status)
}
