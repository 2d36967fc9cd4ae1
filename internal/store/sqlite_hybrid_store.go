// Package store provides a reference implementation of
// retrieval.VectorStore backed by SQLite: sqlite-vec for dense K-nearest
// neighbours, SQLite's built-in FTS5 for sparse keyword search, fused
// with reciprocal-rank fusion in-process. It is grounded on the
// teacher's internal/storage/vector_index.go (vec0 table DDL, delete-
// then-insert upsert, vec_distance_cosine KNN) and fts_index.go (FTS5
// table DDL, delete-then-insert upsert), collapsed from the teacher's
// multi-table chunks/types/functions schema onto the spec's simpler
// per-collection (id, content, relative_path, start_line, end_line)
// document shape.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cortex-search/cortex/internal/retrieval"
)

var initVecOnce sync.Once

// SQLiteHybridStore implements retrieval.VectorStore.
type SQLiteHybridStore struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) the hybrid store database at path.
func Open(path string) (*SQLiteHybridStore, error) {
	initVecOnce.Do(sqlitevec.Auto)

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}
	return &SQLiteHybridStore{db: db}, nil
}

func (s *SQLiteHybridStore) Close() error { return s.db.Close() }

func docsTable(name string) string { return fmt.Sprintf("docs_%s", name) }
func vecTable(name string) string  { return fmt.Sprintf("vec_%s", name) }
func ftsTable(name string) string  { return fmt.Sprintf("fts_%s", name) }

func (s *SQLiteHybridStore) HasCollection(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`, docsTable(name)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: has_collection %s: %w", name, err)
	}
	return count > 0, nil
}

func (s *SQLiteHybridStore) CreateCollection(ctx context.Context, name string, dimension int, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docsDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			file_extension TEXT,
			language TEXT
		)`, docsTable(name))
	if _, err := s.db.ExecContext(ctx, docsDDL); err != nil {
		return fmt.Errorf("store: create_collection %s: %w", name, err)
	}

	vecDDL := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(doc_id TEXT PRIMARY KEY, embedding float[%d])`, vecTable(name), dimension)
	if _, err := s.db.ExecContext(ctx, vecDDL); err != nil {
		return fmt.Errorf("store: create vector index for %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteHybridStore) CreateHybridCollection(ctx context.Context, name string, dimension int, description string) error {
	if err := s.CreateCollection(ctx, name, dimension, description); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ftsDDL := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(doc_id UNINDEXED, content, tokenize = 'unicode61 remove_diacritics 0')`, ftsTable(name))
	if _, err := s.db.ExecContext(ctx, ftsDDL); err != nil {
		return fmt.Errorf("store: create fts index for %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteHybridStore) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", docsTable(name)),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", vecTable(name)),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", ftsTable(name)),
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: drop_collection %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQLiteHybridStore) insert(ctx context.Context, name string, docs []retrieval.VectorDocument, hybrid bool) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: insert %s: begin tx: %w", name, err)
	}
	defer tx.Rollback()

	upsertDoc, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, content, relative_path, start_line, end_line, file_extension, language)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content=excluded.content, relative_path=excluded.relative_path,
		   start_line=excluded.start_line, end_line=excluded.end_line,
		   file_extension=excluded.file_extension, language=excluded.language`, docsTable(name)))
	if err != nil {
		return fmt.Errorf("store: insert %s: prepare docs: %w", name, err)
	}
	defer upsertDoc.Close()

	deleteVec, err := tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ?`, vecTable(name)))
	if err != nil {
		return fmt.Errorf("store: insert %s: prepare vec delete: %w", name, err)
	}
	defer deleteVec.Close()

	insertVec, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (doc_id, embedding) VALUES (?, ?)`, vecTable(name)))
	if err != nil {
		return fmt.Errorf("store: insert %s: prepare vec insert: %w", name, err)
	}
	defer insertVec.Close()

	var deleteFts, insertFts *sql.Stmt
	if hybrid {
		deleteFts, err = tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ?`, ftsTable(name)))
		if err != nil {
			return fmt.Errorf("store: insert %s: prepare fts delete: %w", name, err)
		}
		defer deleteFts.Close()

		insertFts, err = tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (doc_id, content) VALUES (?, ?)`, ftsTable(name)))
		if err != nil {
			return fmt.Errorf("store: insert %s: prepare fts insert: %w", name, err)
		}
		defer insertFts.Close()
	}

	for _, d := range docs {
		language := d.Metadata["language"]
		if _, err := upsertDoc.ExecContext(ctx, d.ID, d.Content, d.RelativePath, d.StartLine, d.EndLine, d.FileExtension, language); err != nil {
			return fmt.Errorf("store: insert %s: upsert doc %s: %w", name, d.ID, err)
		}

		if _, err := deleteVec.ExecContext(ctx, d.ID); err != nil {
			return fmt.Errorf("store: insert %s: delete vec %s: %w", name, d.ID, err)
		}
		embBytes, err := sqlitevec.SerializeFloat32(d.Vector)
		if err != nil {
			return fmt.Errorf("store: insert %s: serialize embedding %s: %w", name, d.ID, err)
		}
		if _, err := insertVec.ExecContext(ctx, d.ID, embBytes); err != nil {
			return fmt.Errorf("store: insert %s: insert vec %s: %w", name, d.ID, err)
		}

		if hybrid {
			if _, err := deleteFts.ExecContext(ctx, d.ID); err != nil {
				return fmt.Errorf("store: insert %s: delete fts %s: %w", name, d.ID, err)
			}
			if _, err := insertFts.ExecContext(ctx, d.ID, d.Content); err != nil {
				return fmt.Errorf("store: insert %s: insert fts %s: %w", name, d.ID, err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteHybridStore) Insert(ctx context.Context, name string, docs []retrieval.VectorDocument) error {
	return s.insert(ctx, name, docs, false)
}

func (s *SQLiteHybridStore) InsertHybrid(ctx context.Context, name string, docs []retrieval.VectorDocument) error {
	return s.insert(ctx, name, docs, true)
}

func (s *SQLiteHybridStore) Search(ctx context.Context, name string, vector []float32, opts retrieval.SearchOptions) ([]retrieval.SearchResult, error) {
	limit := opts.TopK
	if limit <= 0 {
		limit = 10
	}
	ids, distances, err := s.denseSearch(ctx, name, vector, limit*3) // over-fetch, filter by threshold below
	if err != nil {
		return nil, err
	}

	distanceByID := make(map[string]float64, len(ids))
	for i, id := range ids {
		distanceByID[id] = distances[i]
	}

	hydratedIDs, results, err := s.hydrate(ctx, name, ids, opts.FilterExpr)
	if err != nil {
		return nil, err
	}

	var out []retrieval.SearchResult
	for i, r := range results {
		score := 1 - distanceByID[hydratedIDs[i]] // cosine distance -> similarity
		if score < opts.Threshold {
			continue
		}
		r.Score = score
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *SQLiteHybridStore) denseSearch(ctx context.Context, name string, vector []float32, limit int) ([]string, []float64, error) {
	queryBytes, err := sqlitevec.SerializeFloat32(vector)
	if err != nil {
		return nil, nil, fmt.Errorf("store: serialize query embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT doc_id, vec_distance_cosine(embedding, ?) AS distance FROM %s ORDER BY distance LIMIT ?`,
		vecTable(name)), queryBytes, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("store: dense search %s: %w", name, err)
	}
	defer rows.Close()

	var ids []string
	var distances []float64
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, nil, fmt.Errorf("store: scan dense result: %w", err)
		}
		ids = append(ids, id)
		distances = append(distances, dist)
	}
	return ids, distances, nil
}

func (s *SQLiteHybridStore) sparseSearch(ctx context.Context, name, text string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT doc_id FROM %s WHERE content MATCH ? ORDER BY rank LIMIT ?`, ftsTable(name)),
		ftsQuery(text), limit)
	if err != nil {
		return nil, fmt.Errorf("store: sparse search %s: %w", name, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan sparse result: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ftsQuery turns free text into an FTS5 OR query over its tokens so a
// partial-word query still returns matches.
func ftsQuery(text string) string {
	fields := strings.Fields(text)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		quoted = append(quoted, fmt.Sprintf(`"%s"`, f))
	}
	if len(quoted) == 0 {
		return `""`
	}
	return strings.Join(quoted, " OR ")
}

func (s *SQLiteHybridStore) HybridSearch(ctx context.Context, name string, subRequests []retrieval.SubRequest, opts retrieval.HybridSearchOptions) ([]retrieval.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	var denseIDs, sparseIDs []string
	for _, sub := range subRequests {
		switch sub.AnnsField {
		case "vector":
			ids, _, err := s.denseSearch(ctx, name, sub.Vector, max(sub.Limit, limit))
			if err != nil {
				return nil, err
			}
			denseIDs = ids
		case "sparse_vector":
			ids, err := s.sparseSearch(ctx, name, sub.Text, max(sub.Limit, limit))
			if err != nil {
				return nil, err
			}
			sparseIDs = ids
		}
	}

	k := opts.Rerank.K
	if k <= 0 {
		k = 100
	}
	fusedIDs := reciprocalRankFusion(k, denseIDs, sparseIDs)
	if len(fusedIDs) > limit {
		fusedIDs = fusedIDs[:limit]
	}

	rankByID := make(map[string]int, len(fusedIDs))
	for i, id := range fusedIDs {
		rankByID[id] = i
	}

	hydratedIDs, results, err := s.hydrate(ctx, name, fusedIDs, opts.FilterExpr)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Score = 1 / float64(1+rankByID[hydratedIDs[i]])
	}
	return results, nil
}

// reciprocalRankFusion implements RRF: score(d) = sum over lists containing
// d of 1/(k+rank), ranks are 1-based. Returns ids sorted by fused score
// descending.
func reciprocalRankFusion(k int, lists ...[]string) []string {
	scores := make(map[string]float64)
	order := make([]string, 0)
	for _, list := range lists {
		for rank, id := range list {
			if _, seen := scores[id]; !seen {
				order = append(order, id)
			}
			scores[id] += 1.0 / float64(k+rank+1)
		}
	}

	for i := 1; i < len(order); i++ {
		j := i
		for j > 0 && scores[order[j-1]] < scores[order[j]] {
			order[j-1], order[j] = order[j], order[j-1]
			j--
		}
	}
	return order
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// hydrate loads full SearchResult rows for ids, preserving the order of
// ids, optionally constrained by a relative_path filter expression. It
// returns the surviving ids alongside their results (a filter or a missing
// row can drop entries) so a caller can still align each result back to a
// per-id score computed before hydration, rather than by post-filter
// position.
func (s *SQLiteHybridStore) hydrate(ctx context.Context, name string, ids []string, filterExpr string) ([]string, []retrieval.SearchResult, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`SELECT id, content, relative_path, start_line, end_line, language FROM %s WHERE id IN (%s)`,
		docsTable(name), strings.Join(placeholders, ","))

	if filterExpr != "" {
		if where, val, ok := parseRelativePathFilter(filterExpr); ok {
			query += fmt.Sprintf(` AND %s = ?`, where)
			args = append(args, val)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("store: hydrate %s: %w", name, err)
	}
	defer rows.Close()

	byID := make(map[string]retrieval.SearchResult, len(ids))
	for rows.Next() {
		var r retrieval.SearchResult
		var id string
		if err := rows.Scan(&id, &r.Content, &r.RelativePath, &r.StartLine, &r.EndLine, &r.Language); err != nil {
			return nil, nil, fmt.Errorf("store: scan hydrate row: %w", err)
		}
		byID[id] = r
	}

	outIDs := make([]string, 0, len(ids))
	out := make([]retrieval.SearchResult, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			outIDs = append(outIDs, id)
			out = append(out, r)
		}
	}
	return outIDs, out, nil
}

var relativePathFilterPattern = regexp.MustCompile(`^relative_path == "((?:[^"\\]|\\.)*)"$`)

// parseRelativePathFilter understands the single filter-expression shape
// the indexer generates: `relative_path == "<escaped path>"`.
func parseRelativePathFilter(expr string) (column, value string, ok bool) {
	m := relativePathFilterPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return "", "", false
	}
	unescaped := strings.ReplaceAll(m[1], `\"`, `"`)
	unescaped = strings.ReplaceAll(unescaped, `\\`, `\`)
	return "relative_path", unescaped, true
}

func (s *SQLiteHybridStore) Query(ctx context.Context, name, filterExpr string, outputFields []string, limit int) ([]map[string]string, error) {
	column, value, ok := parseRelativePathFilter(filterExpr)
	if !ok {
		return nil, fmt.Errorf("store: query %s: unsupported filter expression %q", name, filterExpr)
	}

	fields := outputFields
	if len(fields) == 0 {
		fields = []string{"id"}
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, strings.Join(fields, ", "), docsTable(name), column)
	args := []any{value}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", name, err)
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		values := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: scan query row: %w", err)
		}
		row := make(map[string]string, len(fields))
		for i, f := range fields {
			row[f] = fmt.Sprintf("%v", values[i])
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *SQLiteHybridStore) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: delete %s: begin tx: %w", name, err)
	}
	defer tx.Rollback()

	if err := deleteIDs(ctx, tx, docsTable(name), "id", ids); err != nil {
		return fmt.Errorf("store: delete %s from docs table: %w", name, err)
	}
	// doc_id is the key column in the vec/fts tables, not id.
	if err := deleteIDs(ctx, tx, vecTable(name), "doc_id", ids); err != nil {
		return fmt.Errorf("store: delete %s from vec table: %w", name, err)
	}
	hasFTS, _ := tableExists(ctx, tx, ftsTable(name))
	if hasFTS {
		if err := deleteIDs(ctx, tx, ftsTable(name), "doc_id", ids); err != nil {
			return fmt.Errorf("store: delete %s from fts table: %w", name, err)
		}
	}

	return tx.Commit()
}

func deleteIDs(ctx context.Context, tx *sql.Tx, table, column string, ids []string) error {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`, table, column, strings.Join(placeholders, ",")), args...)
	return err
}

func tableExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`, name).Scan(&count)
	return count > 0, err
}
