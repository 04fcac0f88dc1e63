// Package duckdb provides a local cache of evidence query results and
// bookkeeping for server-side annotation jobs, both stored in DuckDB.
package duckdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-mm/internal/annotate"
)

// Store manages a DuckDB connection for cached evidence and job state.
type Store struct {
	db   *sql.DB
	path string

	// DuckDB transactions conflict on concurrent writes to the same table.
	writeMu sync.Mutex
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path ("" for in-memory).
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS evidence_cache (
			assembly VARCHAR,
			chrom VARCHAR,
			pos BIGINT,
			ref VARCHAR,
			alt VARCHAR,
			ordinal INTEGER,
			variant VARCHAR,
			genes VARCHAR,
			article_count INTEGER,
			pmids VARCHAR,
			tags VARCHAR,
			url VARCHAR,
			PRIMARY KEY (assembly, chrom, pos, ref, alt, ordinal)
		)`,
		`CREATE TABLE IF NOT EXISTS queried_keys (
			assembly VARCHAR,
			chrom VARCHAR,
			pos BIGINT,
			ref VARCHAR,
			alt VARCHAR,
			queried_at TIMESTAMP,
			PRIMARY KEY (assembly, chrom, pos, ref, alt)
		)`,
		`CREATE TABLE IF NOT EXISTS annotation_jobs (
			path VARCHAR PRIMARY KEY,
			size BIGINT,
			mod_time_ns BIGINT,
			job_id VARCHAR,
			state VARCHAR,
			updated_at TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func keyArgs(k annotate.VariantKey) []any {
	return []any{string(k.Assembly), k.Chrom, k.Pos, k.Ref, k.Alt}
}

// LookupEvidence returns the cached evidence for key. found is false when
// the key has never been queried successfully; a found key may have no
// evidence.
func (s *Store) LookupEvidence(key annotate.VariantKey) ([]annotate.Evidence, bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT count(*) FROM queried_keys
		WHERE assembly = ? AND chrom = ? AND pos = ? AND ref = ? AND alt = ?`,
		keyArgs(key)...).Scan(&n)
	if err != nil {
		return nil, false, fmt.Errorf("lookup queried key: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	rows, err := s.db.Query(`SELECT variant, genes, article_count, pmids, tags, url
		FROM evidence_cache
		WHERE assembly = ? AND chrom = ? AND pos = ? AND ref = ? AND alt = ?
		ORDER BY ordinal`, keyArgs(key)...)
	if err != nil {
		return nil, false, fmt.Errorf("lookup evidence: %w", err)
	}
	defer rows.Close()

	var evs []annotate.Evidence
	for rows.Next() {
		var ev annotate.Evidence
		var genes, pmids, tags string
		if err := rows.Scan(&ev.Variant, &genes, &ev.ArticleCount, &pmids, &tags, &ev.URL); err != nil {
			return nil, false, fmt.Errorf("scan evidence: %w", err)
		}
		if err := decodeList(genes, &ev.Genes); err != nil {
			return nil, false, err
		}
		if err := decodeList(pmids, &ev.PMIDs); err != nil {
			return nil, false, err
		}
		if err := decodeList(tags, &ev.Tags); err != nil {
			return nil, false, err
		}
		evs = append(evs, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return evs, true, nil
}

// WriteEvidence replaces the cached evidence for key and marks it queried.
func (s *Store) WriteEvidence(key annotate.VariantKey, evs []annotate.Evidence) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM evidence_cache
		WHERE assembly = ? AND chrom = ? AND pos = ? AND ref = ? AND alt = ?`, keyArgs(key)...); err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO evidence_cache VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, ev := range evs {
		args := append(keyArgs(key), i, ev.Variant, encodeList(ev.Genes), ev.ArticleCount,
			encodeList(ev.PMIDs), encodeList(ev.Tags), ev.URL)
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert evidence %s: %w", key, err)
		}
	}

	args := append(keyArgs(key), time.Now().UTC())
	if _, err := tx.Exec(`INSERT OR REPLACE INTO queried_keys VALUES (?, ?, ?, ?, ?, ?)`, args...); err != nil {
		return fmt.Errorf("mark queried: %w", err)
	}

	return tx.Commit()
}

// QueriedCount returns the number of cached keys.
func (s *Store) QueriedCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT count(*) FROM queried_keys`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queried keys: %w", err)
	}
	return n, nil
}

// ClearEvidence deletes all cached evidence.
func (s *Store) ClearEvidence() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, table := range []string{"evidence_cache", "queried_keys"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s string, dst *[]string) error {
	if s == "" || s == "[]" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), dst); err != nil {
		return fmt.Errorf("decode cached list: %w", err)
	}
	return nil
}
