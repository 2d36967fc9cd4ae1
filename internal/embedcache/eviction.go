package embedcache

import (
	"context"
	"log"
	"time"
)

// EvictionPolicy bounds the cache per §4.2: a maximum age and a maximum
// total size, applied periodically and at startup. Mirrors the shape of
// the teacher's EvictionPolicy (internal/cache/eviction.go) adapted from
// branch-scoped eviction to row-scoped eviction.
type EvictionPolicy struct {
	MaxAge          time.Duration
	MaxSizeMB       float64
	CleanupInterval time.Duration
	CleanupEnabled  bool
}

// DefaultEvictionPolicy matches the configuration defaults named in §6:
// CACHE_MAX_AGE_DAYS=7, CACHE_MAX_SIZE_MB=500, CACHE_CLEANUP_INTERVAL_HOURS=24,
// CACHE_CLEANUP_ENABLED=true.
func DefaultEvictionPolicy() EvictionPolicy {
	return EvictionPolicy{
		MaxAge:          7 * 24 * time.Hour,
		MaxSizeMB:       500,
		CleanupInterval: 24 * time.Hour,
		CleanupEnabled:  true,
	}
}

// RunCleanup applies both eviction bounds once: age first, then size.
func (c *Cache) RunCleanup(policy EvictionPolicy) (removedByAge, removedBySize int, err error) {
	if !policy.CleanupEnabled {
		return 0, 0, nil
	}
	removedByAge, err = c.Cleanup(policy.MaxAge)
	if err != nil {
		return removedByAge, 0, err
	}
	removedBySize, err = c.EvictBySize(policy.MaxSizeMB)
	return removedByAge, removedBySize, err
}

// StartPeriodicCleanup runs RunCleanup once immediately and then every
// policy.CleanupInterval until ctx is canceled. It is meant to be
// launched as `go c.StartPeriodicCleanup(ctx, policy)` by the CLI/daemon
// entrypoint.
func (c *Cache) StartPeriodicCleanup(ctx context.Context, policy EvictionPolicy) {
	if !policy.CleanupEnabled {
		return
	}

	runOnce := func() {
		byAge, bySize, err := c.RunCleanup(policy)
		if err != nil {
			log.Printf("embedcache: periodic cleanup failed: %v", err)
			return
		}
		if byAge+bySize > 0 {
			log.Printf("embedcache: cleanup removed %d aged + %d oversize entries", byAge, bySize)
		}
	}

	runOnce()

	ticker := time.NewTicker(policy.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
