package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cortex-search/cortex/internal/config"
	"github.com/cortex-search/cortex/internal/embedcache"
)

// cacheCmd groups embedding-cache inspection/maintenance commands.
// Grounded on the teacher's internal/cli/cache.go (info/clean subcommand
// group), retargeted from per-branch SQLite databases onto C2
// EmbeddingCache's single content-addressed database per codebase, and
// renamed to stats/cleanup per spec §10.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the embedding cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats [path]",
	Short: "Show cache location and stats",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheInfo(pathArg(args))
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup [path]",
	Short: "Run age/size-bounded eviction now",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheClean(pathArg(args))
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
}

func cachePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(absPath, ".cortex", "cache.db"), nil
}

func runCacheInfo(path string) error {
	dbPath, err := cachePath(path)
	if err != nil {
		return err
	}

	cache, err := embedcache.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	stats := cache.Stats()
	fmt.Printf("Cache Location: %s\n", dbPath)
	fmt.Printf("Entries: %d\n", stats.TotalEntries)
	fmt.Printf("Size: %.2f MB\n", float64(stats.SizeBytes)/(1024*1024))
	if stats.OldestTS > 0 {
		fmt.Printf("Oldest Entry: %s\n", formatDuration(time.Since(time.UnixMilli(stats.OldestTS))))
	}
	if stats.NewestTS > 0 {
		fmt.Printf("Newest Entry: %s\n", formatDuration(time.Since(time.UnixMilli(stats.NewestTS))))
	}
	return nil
}

func runCacheClean(path string) error {
	dbPath, err := cachePath(path)
	if err != nil {
		return err
	}

	cache, err := embedcache.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfigFromDir(absPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	policy := embedcache.EvictionPolicy{
		MaxAge:          time.Duration(cfg.Cache.MaxAgeDays) * 24 * time.Hour,
		MaxSizeMB:       float64(cfg.Cache.MaxSizeMB),
		CleanupInterval: time.Duration(cfg.Cache.CleanupIntervalHours) * time.Hour,
		CleanupEnabled:  true,
	}

	fmt.Println("running cache eviction...")
	byAge, bySize, err := cache.RunCleanup(policy)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	fmt.Printf("removed %d aged + %d oversize entries\n", byAge, bySize)
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
