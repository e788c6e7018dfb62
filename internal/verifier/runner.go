// Package verifier runs candidate proofs through the Lean 4 toolchain
// and parses the compiler output into structured diagnostics.
package verifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"leannerd/internal/logging"
	"leannerd/internal/types"

	"github.com/google/uuid"
)

// ErrLeanNotFound indicates the lake binary is missing from PATH.
// This is an infrastructure failure, not a proof failure.
var ErrLeanNotFound = errors.New("lake executable not found (install Lean 4 and ensure 'lake' is on PATH)")

// LakeRunner checks Lean code by compiling it inside a Lake project.
// Each check writes a uniquely named temp file so concurrent runners
// sharing one project cannot collide.
type LakeRunner struct {
	projectPath string
	timeout     time.Duration
	cleanup     bool
	lakeBin     string
}

// Option configures a LakeRunner.
type Option func(*LakeRunner)

// WithTimeout sets the per-check wall-clock limit.
func WithTimeout(d time.Duration) Option {
	return func(r *LakeRunner) { r.timeout = d }
}

// WithCleanup controls whether temp files are removed after each check.
// Keeping them helps debugging failed proofs.
func WithCleanup(cleanup bool) Option {
	return func(r *LakeRunner) { r.cleanup = cleanup }
}

// WithLakeBinary overrides the lake binary path.
func WithLakeBinary(path string) Option {
	return func(r *LakeRunner) { r.lakeBin = path }
}

// NewLakeRunner creates a runner rooted at a Lake project directory
// (the project supplies Mathlib and the toolchain pin).
func NewLakeRunner(projectPath string, opts ...Option) *LakeRunner {
	r := &LakeRunner{
		projectPath: projectPath,
		timeout:     60 * time.Second,
		cleanup:     true,
		lakeBin:     "lake",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute compiles the full proof text and reports the outcome. A
// failing compile is an expected result, returned in the outcome; only
// infrastructure problems (missing toolchain, unwritable project)
// surface as errors.
func (r *LakeRunner) Execute(ctx context.Context, fullProofText string) (types.VerificationOutcome, error) {
	timer := logging.StartTimer(logging.CategoryVerifier, "Execute")
	defer timer.Stop()

	tempDir := filepath.Join(r.projectPath, "temp")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return types.VerificationOutcome{}, fmt.Errorf("failed to create temp directory: %w", err)
	}

	tempFile := filepath.Join(tempDir, fmt.Sprintf("check_%s.lean", uuid.NewString()[:8]))
	if err := os.WriteFile(tempFile, []byte(fullProofText), 0644); err != nil {
		return types.VerificationOutcome{}, fmt.Errorf("failed to write temp file: %w", err)
	}
	if r.cleanup {
		defer os.Remove(tempFile)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.lakeBin, "env", "lean", tempFile)
	cmd.Dir = r.projectPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.VerifierDebug("checking %s (%d bytes)", filepath.Base(tempFile), len(fullProofText))
	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		// A proof that does not typecheck in time is a failed proof,
		// not a broken verifier.
		logging.SearchWarn("verification timed out after %v", r.timeout)
		return types.VerificationOutcome{
			Verified:   false,
			Diagnostic: fmt.Sprintf("error: verification timed out after %v", r.timeout),
		}, nil
	}
	if ctx.Err() != nil {
		return types.VerificationOutcome{}, ctx.Err()
	}

	if err == nil {
		logging.Verifier("check passed: %s", filepath.Base(tempFile))
		return types.VerificationOutcome{Verified: true}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		if errors.Is(err, exec.ErrNotFound) {
			return types.VerificationOutcome{}, ErrLeanNotFound
		}
		return types.VerificationOutcome{}, fmt.Errorf("failed to run lake: %w", err)
	}

	diagnostic := strings.TrimSpace(stderr.String())
	if diagnostic == "" {
		diagnostic = strings.TrimSpace(stdout.String())
	}
	if diagnostic == "" {
		diagnostic = fmt.Sprintf("lean exited with status %d and no output", exitErr.ExitCode())
	}

	logging.Verifier("check failed: %s (%s)", filepath.Base(tempFile), ClassifyError(diagnostic))
	return types.VerificationOutcome{Verified: false, Diagnostic: diagnostic}, nil
}
