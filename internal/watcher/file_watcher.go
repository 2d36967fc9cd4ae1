// Package watcher watches a codebase for file changes and triggers
// incremental reindexing. It is grounded on the teacher's
// internal/watcher/file_watcher.go (recursive directory watching with a
// depth/count limit, extension filtering, and debounced callback firing),
// retargeted to skip the same ignore-pattern set (internal/indexer's
// .gitignore-style composition) the indexer itself applies, instead of the
// teacher's separate hardcoded .git/node_modules/.cortex skip-list. Also
// trimmed of the Pause/Resume/branch-switch coordination the teacher layers
// on top for its git-branch-aware indexer — SPEC_FULL.md has one codebase
// snapshot per collection, not one database per branch.
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cortex-search/cortex/internal/indexer"
)

const (
	maxWatchedDirectories = 1000
	maxWatchDepth         = 10
	defaultDebounceWindow = 500 * time.Millisecond
)

// fileWatcher implements FileWatcher.
type fileWatcher struct {
	watcher         *fsnotify.Watcher
	codebasePath    string                // Root the watch tree and ignore patterns are relative to
	ignore          *indexer.IgnoreMatcher // Same ignore-pattern set the indexer composes for this codebase
	extensions      map[string]bool       // Extensions to monitor (.go, .ts, etc.)
	debounceTime    time.Duration         // Quiet period before firing callback
	callback        func(files []string)  // Callback to invoke with changed files
	ctx             context.Context       // Context for lifecycle management
	cancel          context.CancelFunc    // Cancel function for internal context
	accumulated     map[string]bool       // Accumulated file changes
	accumulatedMu   sync.Mutex            // Protects accumulated map
	debounceTimer   *time.Timer           // Current debounce timer
	timerMu         sync.Mutex            // Protects debounce timer
	stopOnce        sync.Once             // Ensures Stop() is idempotent
	doneCh          chan struct{}         // Signals watch goroutine has finished
	watchedDirCount int                   // Number of directories currently watched
	countMu         sync.Mutex            // Protects watchedDirCount
}

// NewFileWatcher creates a file watcher rooted at codebasePath, monitoring
// the given extensions (e.g. []string{".go", ".ts", ".tsx"}) and skipping
// any path ignorePatterns (plus the indexer's usual defaults and
// ignore-file discovery) would exclude from indexing.
func NewFileWatcher(codebasePath string, extensions []string, ignorePatterns []string) (FileWatcher, error) {
	ignore, err := indexer.NewIgnoreMatcher(codebasePath, ignorePatterns)
	if err != nil {
		return nil, fmt.Errorf("compose ignore patterns: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	extMap := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extMap[ext] = true
	}

	fw := &fileWatcher{
		watcher:      w,
		codebasePath: codebasePath,
		ignore:       ignore,
		extensions:   extMap,
		debounceTime: defaultDebounceWindow,
		accumulated:  make(map[string]bool),
		doneCh:       make(chan struct{}),
	}

	if err := fw.addDirectoriesRecursively(codebasePath, 0); err != nil {
		w.Close()
		return nil, err
	}

	return fw, nil
}

// Start begins watching for file changes.
func (fw *fileWatcher) Start(ctx context.Context, callback func(files []string)) error {
	if callback == nil {
		return nil
	}

	fw.callback = callback
	fw.ctx, fw.cancel = context.WithCancel(ctx)

	go fw.watch()
	return nil
}

// Stop stops the file watcher.
func (fw *fileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		if fw.cancel != nil {
			fw.cancel()
			<-fw.doneCh
		} else {
			// Never started, close doneCh manually
			close(fw.doneCh)
		}
		err = fw.watcher.Close()
	})
	return err
}

// watch is the main event loop.
func (fw *fileWatcher) watch() {
	defer close(fw.doneCh)

	reindexCh := make(chan struct{}, 1)

	for {
		select {
		case <-fw.ctx.Done():
			fw.stopDebounceTimer()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.addDirectoriesRecursively(event.Name, 0); err != nil {
						log.Printf("watcher: failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}

			if !fw.shouldProcessEvent(event) {
				continue
			}

			fw.accumulatedMu.Lock()
			fw.accumulated[event.Name] = true
			fw.accumulatedMu.Unlock()

			fw.resetDebounceTimer(reindexCh)

		case <-reindexCh:
			fw.handleDebounceExpired()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: %v", err)
		}
	}
}

// handleDebounceExpired is called when the debounce timer expires.
func (fw *fileWatcher) handleDebounceExpired() {
	fw.accumulatedMu.Lock()
	if len(fw.accumulated) == 0 {
		fw.accumulatedMu.Unlock()
		return
	}

	files := make([]string, 0, len(fw.accumulated))
	for file := range fw.accumulated {
		files = append(files, file)
	}
	fw.accumulated = make(map[string]bool)
	fw.accumulatedMu.Unlock()

	if fw.callback != nil {
		fw.callback(files)
	}
}

// resetDebounceTimer resets the debounce timer, properly stopping the old one.
func (fw *fileWatcher) resetDebounceTimer(reindexCh chan struct{}) {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()

	if fw.debounceTimer != nil {
		if !fw.debounceTimer.Stop() {
			select {
			case <-fw.debounceTimer.C:
			default:
			}
		}
	}

	fw.debounceTimer = time.AfterFunc(fw.debounceTime, func() {
		select {
		case reindexCh <- struct{}{}:
		default:
		}
	})
}

// stopDebounceTimer stops the debounce timer if it exists.
func (fw *fileWatcher) stopDebounceTimer() {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
		fw.debounceTimer = nil
	}
}

// relToCodebase returns path relative to fw.codebasePath, slash-separated,
// for matching against fw.ignore. Returns "" if path cannot be made relative.
func (fw *fileWatcher) relToCodebase(path string) string {
	rel, err := filepath.Rel(fw.codebasePath, path)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}

// shouldProcessEvent checks if an event should be processed based on
// extension and the codebase's ignore patterns.
func (fw *fileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
		return false
	}

	if ext := filepath.Ext(event.Name); !fw.extensions[ext] {
		return false
	}

	if rel := fw.relToCodebase(event.Name); rel != "" && fw.ignore.Match(rel) {
		return false
	}

	return true
}

// addDirectoriesRecursively adds all directories in the tree to the
// watcher, skipping whatever the codebase's composed ignore patterns
// exclude (the same set IndexFull/IndexIncremental use).
func (fw *fileWatcher) addDirectoriesRecursively(dirPath string, depth int) error {
	if depth > maxWatchDepth {
		return fmt.Errorf("max depth %d exceeded at path %s", maxWatchDepth, dirPath)
	}

	if rel := fw.relToCodebase(dirPath); rel != "" && rel != "." && fw.ignore.Match(rel) {
		return nil
	}

	fw.countMu.Lock()
	if fw.watchedDirCount >= maxWatchedDirectories {
		count := fw.watchedDirCount
		fw.countMu.Unlock()
		return fmt.Errorf("directory limit reached: %d directories already watched (max: %d)", count, maxWatchedDirectories)
	}
	fw.countMu.Unlock()

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return err
	}

	fw.countMu.Lock()
	fw.watchedDirCount++
	currentCount := fw.watchedDirCount
	fw.countMu.Unlock()

	if err := fw.watcher.Add(dirPath); err != nil {
		fw.countMu.Lock()
		fw.watchedDirCount--
		fw.countMu.Unlock()
		return fmt.Errorf("failed to watch directory %s: %w", dirPath, err)
	}

	if currentCount >= maxWatchedDirectories*9/10 {
		log.Printf("watcher: watching %d directories (approaching limit of %d)", currentCount, maxWatchedDirectories)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		subPath := filepath.Join(dirPath, entry.Name())
		if err := fw.addDirectoriesRecursively(subPath, depth+1); err != nil {
			log.Printf("watcher: %v", err)
		}
	}

	return nil
}
