package main

import (
	"os"
	"path/filepath"
	"testing"

	"leannerd/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHeader(t *testing.T) {
	text := `import Mathlib
import Aesop

set_option maxHeartbeats 400000
open Nat

theorem foo : 1 + 1 = 2 := by
  sorry
`
	header, statement := splitHeader(text)
	assert.Contains(t, header, "import Mathlib")
	assert.Contains(t, header, "open Nat")
	assert.True(t, len(statement) > 0)
	assert.Contains(t, statement, "theorem foo")
	assert.NotContains(t, statement, "import")
}

func TestSplitHeaderNoPreamble(t *testing.T) {
	header, statement := splitHeader("theorem bare : True := trivial")
	assert.Empty(t, header)
	assert.Equal(t, "theorem bare : True := trivial", statement)
}

func TestSplitHeaderOnlyPreamble(t *testing.T) {
	header, statement := splitHeader("import Mathlib\n")
	assert.Equal(t, "import Mathlib", header)
	assert.Empty(t, statement)
}

func TestLoadTaskDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "putnam_1964_a2")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "task.lean"),
		[]byte("import Mathlib\n\ntheorem main : P := by sorry\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "description.txt"),
		[]byte("Show that P holds.\n"), 0644))

	tk, err := loadTaskDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "putnam_1964_a2", tk.name)
	assert.Equal(t, "import Mathlib", tk.problem.Header)
	assert.Equal(t, "theorem main : P := by sorry", tk.problem.Statement)
	assert.Equal(t, "Show that P holds.", tk.problem.Description)
}

func TestLoadTaskDirMissingTask(t *testing.T) {
	_, err := loadTaskDir(t.TempDir())
	assert.Error(t, err)
}

func TestBudgetFromConfig(t *testing.T) {
	b := budgetFromConfig(config.Default().Search)
	assert.Equal(t, 2, b.MaxDepth)
	assert.Equal(t, 3, b.SketchAttempts)
	assert.Equal(t, 1, b.ProverAttempts)
}
