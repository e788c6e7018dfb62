// Package retrieval provides the sqlite-backed theorem store and the
// Retriever that serves ranked candidate theorems for proof search.
//
// Vector search runs inside SQLite when built with the sqlite_vec tag
// (cgo required); otherwise ranking happens in Go over the stored
// embedding blobs. Stores without embeddings fall back to keyword
// matching.
package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"leannerd/internal/logging"
	"leannerd/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

// TheoremStore persists theorem records and their embeddings.
type TheoremStore struct {
	db   *sql.DB
	path string
}

// OpenStore opens (or creates) the theorem database at path.
func OpenStore(path string) (*TheoremStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open theorem store: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS theorems (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		name      TEXT NOT NULL UNIQUE,
		signature TEXT NOT NULL,
		informal  TEXT NOT NULL DEFAULT '',
		kind      TEXT NOT NULL DEFAULT 'theorem',
		embedding BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_theorems_name ON theorems(name);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Store("theorem store opened: %s", path)
	return &TheoremStore{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *TheoremStore) Close() error {
	return s.db.Close()
}

// Count returns the number of stored theorems.
func (s *TheoremStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM theorems").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count theorems: %w", err)
	}
	return n, nil
}

// IndexedRecord is a theorem record paired with its embedding.
type IndexedRecord struct {
	Record    types.TheoremRecord
	Embedding []float32
}

// Insert upserts a single indexed record.
func (s *TheoremStore) Insert(ctx context.Context, rec IndexedRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO theorems (name, signature, informal, kind, embedding)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   signature=excluded.signature, informal=excluded.informal,
		   kind=excluded.kind, embedding=excluded.embedding`,
		rec.Record.Name, rec.Record.Signature, rec.Record.Informal,
		rec.Record.Kind, serializeVector(rec.Embedding))
	if err != nil {
		return fmt.Errorf("failed to insert theorem %s: %w", rec.Record.Name, err)
	}
	return nil
}

// BulkInsert upserts records in a single transaction.
func (s *TheoremStore) BulkInsert(ctx context.Context, recs []IndexedRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO theorems (name, signature, informal, kind, embedding)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   signature=excluded.signature, informal=excluded.informal,
		   kind=excluded.kind, embedding=excluded.embedding`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			rec.Record.Name, rec.Record.Signature, rec.Record.Informal,
			rec.Record.Kind, serializeVector(rec.Embedding)); err != nil {
			return fmt.Errorf("failed to insert theorem %s: %w", rec.Record.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bulk insert: %w", err)
	}

	logging.Store("bulk insert: %d records into %s", len(recs), s.path)
	return nil
}

// KeywordSearch matches theorems whose name, signature, or informal
// statement contains any word of the query. Used when no embedding
// engine is configured, and as a safety net for empty vector results.
func (s *TheoremStore) KeywordSearch(ctx context.Context, query string, limit int) ([]types.TheoremRecord, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}

	var conds []string
	var args []any
	for _, w := range words {
		pat := "%" + w + "%"
		conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(signature) LIKE ? OR LOWER(informal) LIKE ?)")
		args = append(args, pat, pat, pat)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, signature, informal, kind FROM theorems WHERE "+
			strings.Join(conds, " OR ")+" LIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()

	var out []types.TheoremRecord
	for rows.Next() {
		var rec types.TheoremRecord
		if err := rows.Scan(&rec.Name, &rec.Signature, &rec.Informal, &rec.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan theorem row: %w", err)
		}
		// Crude relevance: fraction of query words hit.
		hits := 0
		text := strings.ToLower(rec.Name + " " + rec.Signature + " " + rec.Informal)
		for _, w := range words {
			if strings.Contains(text, w) {
				hits++
			}
		}
		rec.Score = float64(hits) / float64(len(words))
		out = append(out, rec)
	}
	return out, rows.Err()
}

// serializeVector encodes a float32 slice as a little-endian blob, the
// layout sqlite-vec expects. Nil embeddings store as NULL.
func serializeVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeVector(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}
