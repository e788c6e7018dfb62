package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"leannerd/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine embeds words onto fixed axes so tests control similarity.
type fakeEngine struct {
	vectors map[string][]float32
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no fake vector for %q", text)
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return 3 }
func (f *fakeEngine) Name() string    { return "fake" }

func openTestStore(t *testing.T) *TheoremStore {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "theorems.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedStore(t *testing.T, store *TheoremStore) {
	t.Helper()
	recs := []IndexedRecord{
		{Record: types.TheoremRecord{Name: "Nat.add_comm", Signature: "theorem Nat.add_comm (a b : ℕ) : a + b = b + a"}, Embedding: []float32{1, 0, 0}},
		{Record: types.TheoremRecord{Name: "Nat.mul_comm", Signature: "theorem Nat.mul_comm (a b : ℕ) : a * b = b * a"}, Embedding: []float32{0, 1, 0}},
		{Record: types.TheoremRecord{Name: "List.length_append", Signature: "theorem List.length_append (l₁ l₂ : List α) : (l₁ ++ l₂).length = l₁.length + l₂.length", Informal: "length of concatenation"}, Embedding: []float32{0, 0, 1}},
	}
	require.NoError(t, store.BulkInsert(context.Background(), recs))
}

func TestBulkInsertAndCount(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Upsert by name does not grow the table.
	require.NoError(t, store.Insert(context.Background(), IndexedRecord{
		Record:    types.TheoremRecord{Name: "Nat.add_comm", Signature: "updated"},
		Embedding: []float32{1, 0, 0},
	}))
	n, err = store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBatchRetrieveRanksAndDedups(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)

	engine := &fakeEngine{vectors: map[string][]float32{
		"commutativity of addition": {0.9, 0.1, 0},
		"commutative operations":    {0.6, 0.6, 0},
	}}
	r := NewRetriever(store, engine, 5)

	recs, err := r.BatchRetrieve(context.Background(), []string{
		"commutativity of addition",
		"commutative operations",
	}, 2)
	require.NoError(t, err)

	names := make([]string, len(recs))
	for i, rec := range recs {
		names[i] = rec.Name
	}
	// Nat.add_comm appears in both result sets but must surface once,
	// with its best score, ahead of Nat.mul_comm.
	assert.Contains(t, names, "Nat.add_comm")
	assert.Contains(t, names, "Nat.mul_comm")
	assert.Equal(t, "Nat.add_comm", names[0])
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Score, recs[i].Score, "results must be ranked descending")
	}
	counts := map[string]int{}
	for _, n := range names {
		counts[n]++
	}
	for name, c := range counts {
		assert.Equal(t, 1, c, "duplicate record %s", name)
	}
}

func TestBatchRetrieveKeywordFallback(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)

	r := NewRetriever(store, nil, 5)
	recs, err := r.BatchRetrieve(context.Background(), []string{"length append"}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "List.length_append", recs[0].Name)
}

func TestBatchRetrieveEmptyQueries(t *testing.T) {
	store := openTestStore(t)
	r := NewRetriever(store, nil, 5)
	recs, err := r.BatchRetrieve(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75}
	blob, ok := serializeVector(vec).([]byte)
	require.True(t, ok)
	got := deserializeVector(blob)
	if diff := cmp.Diff(vec, got); diff != "" {
		t.Errorf("vector round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, serializeVector(nil))
}
