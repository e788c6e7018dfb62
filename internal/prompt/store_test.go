package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedTemplatesRender(t *testing.T) {
	store, err := New("", false)
	require.NoError(t, err)
	defer store.Close()

	out, err := store.Render("general_proof", map[string]string{
		"Statement": "theorem foo : 1 + 1 = 2 := by sorry",
		"Theorems":  "(no candidate theorems)",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "theorem foo : 1 + 1 = 2")
	assert.Contains(t, out, "No `sorry`")
}

func TestAllExpectedTemplatesPresent(t *testing.T) {
	store, err := New("", false)
	require.NoError(t, err)
	defer store.Close()

	expected := []string{
		"reasoner_system", "search_queries", "select_theorems",
		"informal_proof", "sketch", "refine_sketch", "correct_sketch",
		"compress_sketch", "extract_subgoals", "correct_theorem",
		"use_sketch_and_theorems", "assembly_correction",
		"check_correctness", "general_proof", "correct_proof", "prover",
	}
	names := store.Names()
	for _, want := range expected {
		assert.Contains(t, names, want)
	}
}

func TestSearchQueriesOmitsEmptyErrorContext(t *testing.T) {
	store, err := New("", false)
	require.NoError(t, err)
	defer store.Close()

	out, err := store.Render("search_queries", map[string]any{
		"Problem":    "theorem t : True",
		"MaxQueries": 3,
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "previous attempt failed")

	out, err = store.Render("search_queries", map[string]any{
		"Problem":      "theorem t : True",
		"MaxQueries":   3,
		"ErrorContext": "unknown identifier 'Nat.foo'",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "unknown identifier 'Nat.foo'")
}

func TestOverrideDirShadowsEmbedded(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "general_proof.tmpl")
	require.NoError(t, os.WriteFile(override, []byte("custom: {{.Statement}}"), 0644))

	store, err := New(dir, false)
	require.NoError(t, err)
	defer store.Close()

	out, err := store.Render("general_proof", map[string]string{"Statement": "thm"})
	require.NoError(t, err)
	assert.Equal(t, "custom: thm", out)

	// Templates without an override keep the embedded default.
	out, err = store.Render("prover", map[string]string{"Header": "import Mathlib", "Statement": "thm"})
	require.NoError(t, err)
	assert.Contains(t, out, "import Mathlib")
}

func TestHotReloadPicksUpEdit(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, true)
	require.NoError(t, err)
	defer store.Close()

	path := filepath.Join(dir, "general_proof.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("reloaded: {{.Statement}}"), 0644))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		out, err := store.Render("general_proof", map[string]string{"Statement": "x"})
		require.NoError(t, err)
		if out == "reloaded: x" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("override was not picked up by the watcher")
}

func TestRenderUnknownTemplate(t *testing.T) {
	store, err := New("", false)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Render("nope", nil)
	assert.ErrorContains(t, err, "unknown prompt template")
}
