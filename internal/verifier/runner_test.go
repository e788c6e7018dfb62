package verifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLake writes a shell script standing in for the lake binary so
// runner behavior is testable without a Lean toolchain.
func fakeLake(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lake")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func TestExecutePassingProof(t *testing.T) {
	project := t.TempDir()
	runner := NewLakeRunner(project, WithLakeBinary(fakeLake(t, "exit 0")))

	outcome, err := runner.Execute(context.Background(), "theorem t : True := trivial")
	require.NoError(t, err)
	assert.True(t, outcome.Verified)
	assert.Empty(t, outcome.Diagnostic)
}

func TestExecuteFailingProofReturnsDiagnostic(t *testing.T) {
	project := t.TempDir()
	script := `echo "temp/check.lean:1:0: error: unknown identifier 'trivial2'" >&2
exit 1`
	runner := NewLakeRunner(project, WithLakeBinary(fakeLake(t, script)))

	outcome, err := runner.Execute(context.Background(), "theorem t : True := trivial2")
	require.NoError(t, err, "a failing proof is not an infrastructure error")
	assert.False(t, outcome.Verified)
	assert.Contains(t, outcome.Diagnostic, "unknown identifier 'trivial2'")
}

func TestExecuteWritesAndCleansTempFile(t *testing.T) {
	project := t.TempDir()
	// The fake records the file it was given, then succeeds.
	marker := filepath.Join(project, "seen.txt")
	script := `echo "$3" > ` + marker + `
exit 0`
	runner := NewLakeRunner(project, WithLakeBinary(fakeLake(t, script)))

	_, err := runner.Execute(context.Background(), "theorem t : True := trivial")
	require.NoError(t, err)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Contains(t, string(data), filepath.Join(project, "temp"))

	// Cleanup defaults on: temp dir should be empty again.
	entries, err := os.ReadDir(filepath.Join(project, "temp"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecuteKeepsTempFileWithoutCleanup(t *testing.T) {
	project := t.TempDir()
	runner := NewLakeRunner(project,
		WithLakeBinary(fakeLake(t, "exit 0")),
		WithCleanup(false))

	_, err := runner.Execute(context.Background(), "theorem t : True := trivial")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(project, "temp"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExecuteTimeoutIsExpectedFailure(t *testing.T) {
	project := t.TempDir()
	runner := NewLakeRunner(project,
		WithLakeBinary(fakeLake(t, "sleep 5")),
		WithTimeout(100*time.Millisecond))

	outcome, err := runner.Execute(context.Background(), "theorem t : True := trivial")
	require.NoError(t, err)
	assert.False(t, outcome.Verified)
	assert.Contains(t, outcome.Diagnostic, "timed out")
}

func TestExecuteMissingLakeIsInfraError(t *testing.T) {
	project := t.TempDir()
	runner := NewLakeRunner(project, WithLakeBinary(filepath.Join(t.TempDir(), "no-such-lake")))

	_, err := runner.Execute(context.Background(), "theorem t : True := trivial")
	require.Error(t, err)
}

func TestExecuteCancelledContext(t *testing.T) {
	project := t.TempDir()
	runner := NewLakeRunner(project, WithLakeBinary(fakeLake(t, "sleep 5")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.Execute(ctx, "theorem t : True := trivial")
	assert.ErrorIs(t, err, context.Canceled)
}
