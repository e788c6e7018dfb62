//go:build sqlite_vec && cgo

package retrieval

import (
	"context"
	"fmt"

	"leannerd/internal/types"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3
	// driver. vec.Auto() registers it as an auto-loadable extension.
	vec.Auto()
}

// vectorSearch ranks stored theorems against the query embedding
// inside SQLite using vec_distance_cosine. Score is 1 - distance so
// callers always see similarity, highest first.
func (s *TheoremStore) vectorSearch(ctx context.Context, query []float32, limit int) ([]types.TheoremRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, signature, informal, kind,
		        vec_distance_cosine(embedding, ?) AS dist
		 FROM theorems
		 WHERE embedding IS NOT NULL
		 ORDER BY dist ASC
		 LIMIT ?`,
		serializeVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var out []types.TheoremRecord
	for rows.Next() {
		var rec types.TheoremRecord
		var dist float64
		if err := rows.Scan(&rec.Name, &rec.Signature, &rec.Informal, &rec.Kind, &dist); err != nil {
			return nil, fmt.Errorf("failed to scan theorem row: %w", err)
		}
		rec.Score = 1 - dist
		out = append(out, rec)
	}
	return out, rows.Err()
}
