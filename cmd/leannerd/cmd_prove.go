package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"leannerd/internal/config"
	"leannerd/internal/embedding"
	"leannerd/internal/llm"
	"leannerd/internal/prompt"
	"leannerd/internal/prover"
	"leannerd/internal/reasoner"
	"leannerd/internal/retrieval"
	"leannerd/internal/search"
	"leannerd/internal/types"
	"leannerd/internal/verifier"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	taskPath  string
	proveDir  string
	outputDir string
)

// proveCmd runs the proof search on one task or a directory of tasks
var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Search for verified proofs of Lean problems",
	Long: `Runs the recursive proof search on one task or a directory of tasks.

A task directory contains task.lean (imports plus the theorem statement)
and optionally description.txt (a natural-language restatement that
steers the informal-proof step). With --dir, every .lean file under the
directory becomes its own task.

Example:
  leannerd prove --task-path tasks/putnam_1964_a2
  leannerd prove --dir benchmarks/minif2f --output proofs/minif2f`,
	RunE: runProve,
}

func init() {
	proveCmd.Flags().StringVar(&taskPath, "task-path", "", "directory with task.lean and optional description.txt")
	proveCmd.Flags().StringVar(&proveDir, "dir", "", "directory of .lean task files")
	proveCmd.Flags().StringVarP(&outputDir, "output", "o", "proofs", "directory for proof artifacts")
}

func runProve(cmd *cobra.Command, args []string) error {
	if taskPath == "" && proveDir == "" {
		return fmt.Errorf("one of --task-path or --dir is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	problems, err := loadProblems()
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		return fmt.Errorf("no tasks found")
	}

	orch, cleanup, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	solved := 0
	for _, task := range problems {
		logger.Info("proving", zap.String("task", task.name))
		proof, err := orch.GenerateProof(ctx, task.problem)
		if err != nil {
			return fmt.Errorf("proof search failed on %s: %w", task.name, err)
		}
		if proof == "" {
			logger.Warn("no proof found within budget", zap.String("task", task.name))
			fmt.Printf("✗ %s: no proof found\n", task.name)
			continue
		}

		outPath := filepath.Join(outputDir, task.name+"_proof.lean")
		if err := os.WriteFile(outPath, []byte(proof+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
		solved++
		fmt.Printf("✓ %s: proof written to %s\n", task.name, outPath)
	}

	fmt.Printf("\nSolved %d/%d tasks\n", solved, len(problems))
	return nil
}

type task struct {
	name    string
	problem types.Problem
}

func loadProblems() ([]task, error) {
	if taskPath != "" {
		t, err := loadTaskDir(taskPath)
		if err != nil {
			return nil, err
		}
		return []task{t}, nil
	}

	var tasks []task
	err := filepath.WalkDir(proveDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".lean" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		header, statement := splitHeader(string(data))
		name := strings.TrimSuffix(filepath.Base(path), ".lean")
		tasks = append(tasks, task{
			name:    name,
			problem: types.Problem{Statement: statement, Header: header},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", proveDir, err)
	}
	return tasks, nil
}

func loadTaskDir(dir string) (task, error) {
	data, err := os.ReadFile(filepath.Join(dir, "task.lean"))
	if err != nil {
		return task{}, fmt.Errorf("failed to read task: %w", err)
	}
	header, statement := splitHeader(string(data))

	description := ""
	if desc, err := os.ReadFile(filepath.Join(dir, "description.txt")); err == nil {
		description = strings.TrimSpace(string(desc))
	}

	return task{
		name: filepath.Base(filepath.Clean(dir)),
		problem: types.Problem{
			Statement:   statement,
			Header:      header,
			Description: description,
		},
	}, nil
}

// splitHeader separates the preamble (imports, opens, options) from the
// statement body of a task file.
func splitHeader(text string) (header, statement string) {
	lines := strings.Split(text, "\n")
	split := len(lines)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" ||
			strings.HasPrefix(trimmed, "import ") ||
			strings.HasPrefix(trimmed, "open ") ||
			strings.HasPrefix(trimmed, "set_option ") ||
			strings.HasPrefix(trimmed, "--") {
			continue
		}
		split = i
		break
	}
	header = strings.TrimSpace(strings.Join(lines[:split], "\n"))
	statement = strings.TrimSpace(strings.Join(lines[split:], "\n"))
	return header, statement
}

// buildOrchestrator wires the full stack from config. The returned
// cleanup closes every component that holds a resource.
func buildOrchestrator(cfg *config.Config) (*search.Orchestrator, func(), error) {
	var closers []io.Closer
	prompts, err := prompt.New(cfg.Prompts.Dir, cfg.Prompts.HotReload)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		prompts.Close()
	}

	reasonerClient := llm.NewOpenAIClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     config.ParseTimeout(cfg.LLM.Timeout, 0),
	})
	rsn, err := reasoner.New(reasonerClient, prompts, cfg.Retrieval.MaxQueries)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// A missing embedding backend is not fatal: the retriever falls
	// back to keyword search over the same store.
	var engine embedding.Engine
	eng, err := embedding.New(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		Purpose:        embedding.PurposeQuery,
	})
	if err != nil {
		logger.Warn("embedding engine unavailable, using keyword retrieval", zap.Error(err))
	} else {
		engine = eng
		if c, ok := eng.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	store, err := retrieval.OpenStore(cfg.Retrieval.DBPath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, store)
	retriever := retrieval.NewRetriever(store, engine, cfg.Retrieval.TopK)

	runner := verifier.NewLakeRunner(cfg.Verifier.ProjectPath,
		verifier.WithTimeout(config.ParseTimeout(cfg.Verifier.Timeout, 60*time.Second)),
		verifier.WithCleanup(cfg.Verifier.Cleanup),
	)

	opts := []search.Option{search.WithTopK(cfg.Retrieval.TopK)}
	if cfg.Prover.Enabled {
		proverClient := llm.NewOpenAIClient(llm.Config{
			BaseURL:   cfg.Prover.BaseURL,
			Model:     cfg.Prover.Model,
			MaxTokens: cfg.Prover.MaxTokens,
			Timeout:   config.ParseTimeout(cfg.Prover.Timeout, 0),
		})
		opts = append(opts, search.WithProver(prover.New(proverClient, prompts)))
	}

	orch, err := search.New(rsn, retriever, runner, budgetFromConfig(cfg.Search), opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return orch, cleanup, nil
}

func budgetFromConfig(s config.SearchConfig) search.Budget {
	return search.Budget{
		MaxDepth:            s.MaxDepth,
		SketchAttempts:      s.SketchAttempts,
		SketchCorrections:   s.SketchCorrections,
		TheoremCorrections:  s.TheoremCorrections,
		SubgoalCorrections:  s.SubgoalCorrections,
		AssemblyCorrections: s.AssemblyCorrections,
		ProverAttempts:      s.ProverAttempts,
		LLMProofAttempts:    s.LLMProofAttempts,
	}
}
