//go:build !sqlite_vec || !cgo

package retrieval

import (
	"context"
	"fmt"

	"leannerd/internal/embedding"
	"leannerd/internal/types"
)

// vectorSearch without the sqlite-vec extension: load the stored
// embeddings and rank in Go. Fine for theorem libraries in the tens of
// thousands; larger indexes should build with the sqlite_vec tag.
func (s *TheoremStore) vectorSearch(ctx context.Context, query []float32, limit int) ([]types.TheoremRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, signature, informal, kind, embedding FROM theorems WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var recs []types.TheoremRecord
	var vectors [][]float32
	for rows.Next() {
		var rec types.TheoremRecord
		var blob []byte
		if err := rows.Scan(&rec.Name, &rec.Signature, &rec.Informal, &rec.Kind, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan theorem row: %w", err)
		}
		recs = append(recs, rec)
		vectors = append(vectors, deserializeVector(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ranked := embedding.TopK(query, vectors, limit)
	out := make([]types.TheoremRecord, 0, len(ranked))
	for _, r := range ranked {
		rec := recs[r.Index]
		rec.Score = r.Similarity
		out = append(out, rec)
	}
	return out, nil
}
