// Package embedcache is the content-addressed, persistent embedding
// cache (spec component C2). It is grounded in the teacher's
// internal/cache package's SQLite-opening idiom (database/sql +
// mattn/go-sqlite3, WAL journaling, PRAGMA tuning) but keyed by content
// hash instead of git branch, and with a single schema instead of the
// teacher's multi-table chunk/type/function schema.
package embedcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cortex-search/cortex/internal/retrieval"
)

// Cache is the embedding cache. Per §4.2, availability degrades
// gracefully: if the backing store cannot be opened, db is nil and every
// operation becomes a no-op returning empty/none.
type Cache struct {
	mu sync.Mutex
	db *sql.DB
}

// DefaultPath returns ~/.cortex/cache/embeddings/cache.db, matching the
// per-user cache directory named in the spec's persisted-state section.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cortex", "cache", "embeddings", "cache.db")
}

// Open opens (creating if necessary) the embedding cache database at
// path. If it cannot be opened, Open returns a Cache in the no-op
// degraded state and a wrapped ErrCacheUnavailable — callers should log
// the error and continue without failing the operation that needed the
// cache, per the "cache as a pure accelerator" design note.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Cache{}, fmt.Errorf("%w: %v", retrieval.ErrCacheUnavailable, err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return &Cache{}, fmt.Errorf("%w: %v", retrieval.ErrCacheUnavailable, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return &Cache{}, fmt.Errorf("%w: %v", retrieval.ErrCacheUnavailable, err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return &Cache{}, fmt.Errorf("%w: %v", retrieval.ErrCacheUnavailable, err)
	}

	return &Cache{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS embeddings (
			content_hash TEXT PRIMARY KEY,
			embedding BLOB NOT NULL,
			dimension INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_embeddings_created_at ON embeddings(created_at);
	`)
	return err
}

// ContentHash is SHA-256 over trim(content), lowercase hex, the sole key
// into the cache.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

func packVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackVector(b []byte, dimension int) []float32 {
	v := make([]float32, dimension)
	for i := range v {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// Get returns the cached vector for hash, or (nil, false) on a miss or
// when the cache is degraded.
func (c *Cache) Get(hash string) ([]float32, bool) {
	if c == nil || c.db == nil {
		return nil, false
	}
	var blob []byte
	var dim int
	err := c.db.QueryRow(`SELECT embedding, dimension FROM embeddings WHERE content_hash = ?`, hash).Scan(&blob, &dim)
	if err != nil {
		return nil, false
	}
	return unpackVector(blob, dim), true
}

// GetMany batch-looks-up a set of hashes, returning only the hits.
func (c *Cache) GetMany(hashes []string) map[string][]float32 {
	out := make(map[string][]float32)
	if c == nil || c.db == nil || len(hashes) == 0 {
		return out
	}

	placeholders := make([]string, len(hashes))
	args := make([]any, len(hashes))
	for i, h := range hashes {
		placeholders[i] = "?"
		args[i] = h
	}
	query := fmt.Sprintf(`SELECT content_hash, embedding, dimension FROM embeddings WHERE content_hash IN (%s)`, strings.Join(placeholders, ","))

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		var blob []byte
		var dim int
		if err := rows.Scan(&hash, &blob, &dim); err != nil {
			continue
		}
		out[hash] = unpackVector(blob, dim)
	}
	return out
}

// Set upserts a single vector for hash.
func (c *Cache) Set(hash string, vector []float32) {
	if c == nil || c.db == nil {
		return
	}
	_, err := c.db.Exec(
		`INSERT INTO embeddings (content_hash, embedding, dimension, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET embedding = excluded.embedding, dimension = excluded.dimension, created_at = excluded.created_at`,
		hash, packVector(vector), len(vector), time.Now().UnixMilli(),
	)
	if err != nil {
		log.Printf("embedcache: set failed for %s: %v", hash, err)
	}
}

// SetMany upserts a batch of vectors in a single transaction, per the
// spec's "set_many uses a single transaction" requirement.
func (c *Cache) SetMany(entries map[string][]float32) error {
	if c == nil || c.db == nil || len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("embedcache: begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO embeddings (content_hash, embedding, dimension, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET embedding = excluded.embedding, dimension = excluded.dimension, created_at = excluded.created_at`,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("embedcache: prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for hash, vector := range entries {
		if _, err := stmt.Exec(hash, packVector(vector), len(vector), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("embedcache: insert %s: %w", hash, err)
		}
	}

	return tx.Commit()
}

// Stats reports {total_entries, size_bytes, oldest_ts, newest_ts}.
func (c *Cache) Stats() retrieval.CacheStats {
	if c == nil || c.db == nil {
		return retrieval.CacheStats{}
	}

	var stats retrieval.CacheStats
	var oldest, newest sql.NullInt64
	row := c.db.QueryRow(`SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM embeddings`)
	if err := row.Scan(&stats.TotalEntries, &oldest, &newest); err != nil {
		return retrieval.CacheStats{}
	}
	stats.OldestTS = oldest.Int64
	stats.NewestTS = newest.Int64

	row = c.db.QueryRow(`SELECT COALESCE(SUM(LENGTH(embedding)), 0) FROM embeddings`)
	row.Scan(&stats.SizeBytes)

	return stats
}

// Cleanup applies the age bound (default 7 days), deleting rows with
// created_at < now - maxAge. Returns the number of rows removed.
func (c *Cache) Cleanup(maxAge time.Duration) (int, error) {
	if c == nil || c.db == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := c.db.Exec(`DELETE FROM embeddings WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("embedcache: cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// EvictBySize applies the size bound: when the current size exceeds
// maxSizeMB, the oldest 10% of rows (by created_at) are deleted.
func (c *Cache) EvictBySize(maxSizeMB float64) (int, error) {
	if c == nil || c.db == nil {
		return 0, nil
	}

	stats := c.Stats()
	maxBytes := int64(maxSizeMB * 1024 * 1024)
	if stats.SizeBytes <= maxBytes || stats.TotalEntries == 0 {
		return 0, nil
	}

	evictCount := stats.TotalEntries / 10
	if evictCount == 0 {
		evictCount = 1
	}

	res, err := c.db.Exec(
		`DELETE FROM embeddings WHERE content_hash IN (
			SELECT content_hash FROM embeddings ORDER BY created_at ASC LIMIT ?
		)`, evictCount)
	if err != nil {
		return 0, fmt.Errorf("embedcache: evict by size: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
