package retrieval

import (
	"context"
	"fmt"
	"sort"

	"leannerd/internal/embedding"
	"leannerd/internal/logging"
	"leannerd/internal/types"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentEmbeds bounds parallel query embedding. The proof
// search itself is strictly sequential; only the embedding of one
// batch of queries fans out.
const maxConcurrentEmbeds = 4

// Retriever answers batched similarity queries over the theorem store.
type Retriever struct {
	store  *TheoremStore
	engine embedding.Engine
	topK   int
}

// NewRetriever builds a Retriever. A nil engine degrades to keyword
// matching, which keeps small setups working without an embedding
// backend.
func NewRetriever(store *TheoremStore, engine embedding.Engine, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{store: store, engine: engine, topK: topK}
}

// BatchRetrieve runs every query, merges the hits, deduplicates by
// name keeping the best score, and returns them ranked by similarity
// descending.
func (r *Retriever) BatchRetrieve(ctx context.Context, queries []string, topK int) ([]types.TheoremRecord, error) {
	if topK <= 0 {
		topK = r.topK
	}
	if len(queries) == 0 {
		return nil, nil
	}
	timer := logging.StartTimer(logging.CategoryRetrieval, "BatchRetrieve")
	defer timer.Stop()

	perQuery := make([][]types.TheoremRecord, len(queries))

	if r.engine == nil {
		for i, q := range queries {
			recs, err := r.store.KeywordSearch(ctx, q, topK)
			if err != nil {
				return nil, err
			}
			perQuery[i] = recs
		}
	} else {
		vectors, err := r.embedQueries(ctx, queries)
		if err != nil {
			return nil, err
		}
		for i, vec := range vectors {
			recs, err := r.store.vectorSearch(ctx, vec, topK)
			if err != nil {
				return nil, err
			}
			perQuery[i] = recs
		}
	}

	best := make(map[string]types.TheoremRecord)
	for _, recs := range perQuery {
		for _, rec := range recs {
			if prev, ok := best[rec.Name]; !ok || rec.Score > prev.Score {
				best[rec.Name] = rec
			}
		}
	}

	merged := make([]types.TheoremRecord, 0, len(best))
	for _, rec := range best {
		merged = append(merged, rec)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	logging.Retrieval("batch retrieve: %d queries -> %d unique theorems", len(queries), len(merged))
	return merged, nil
}

func (r *Retriever) embedQueries(ctx context.Context, queries []string) ([][]float32, error) {
	vectors := make([][]float32, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEmbeds)
	for i, q := range queries {
		g.Go(func() error {
			vec, err := r.engine.Embed(gctx, q)
			if err != nil {
				return fmt.Errorf("failed to embed query %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
