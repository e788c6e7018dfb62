package main

import (
	"fmt"
	"os"
	"time"

	"leannerd/internal/config"
	"leannerd/internal/verifier"

	"github.com/spf13/cobra"
)

// checkCmd verifies a single Lean file against the playground project
var checkCmd = &cobra.Command{
	Use:   "check [file.lean]",
	Short: "Type-check a Lean file with the configured playground",
	Long: `Runs the Lake/Lean verifier on a single file and prints the outcome.
Useful for validating a proof artifact or the playground setup itself.

Example:
  leannerd check proofs/putnam_1964_a2_proof.lean`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	runner := verifier.NewLakeRunner(cfg.Verifier.ProjectPath,
		verifier.WithTimeout(config.ParseTimeout(cfg.Verifier.Timeout, 60*time.Second)),
		verifier.WithCleanup(cfg.Verifier.Cleanup),
	)

	outcome, err := runner.Execute(cmd.Context(), string(data))
	if err != nil {
		return err
	}
	if !outcome.Verified {
		fmt.Printf("✗ %s failed verification\n\n%s\n", args[0], outcome.Diagnostic)
		os.Exit(1)
	}
	fmt.Printf("✓ %s verified\n", args[0])
	return nil
}
