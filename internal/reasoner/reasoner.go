// Package reasoner implements the LLM-backed reasoning capability:
// search-query generation, informal proofs, proof sketches, repairs,
// subgoal extraction, and correctness judgments.
package reasoner

import (
	"context"
	"fmt"

	"leannerd/internal/llm"
	"leannerd/internal/logging"
	"leannerd/internal/prompt"
	"leannerd/internal/types"
)

// LLMReasoner turns prompt templates plus a chat client into the typed
// operations the proof search consumes.
type LLMReasoner struct {
	client       llm.Client
	prompts      *prompt.Store
	systemPrompt string
	maxQueries   int
}

// New builds a reasoner over the given client and template store.
func New(client llm.Client, prompts *prompt.Store, maxQueries int) (*LLMReasoner, error) {
	if maxQueries <= 0 {
		maxQueries = 3
	}
	system, err := prompts.Render("reasoner_system", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to render system prompt: %w", err)
	}
	return &LLMReasoner{
		client:       client,
		prompts:      prompts,
		systemPrompt: system,
		maxQueries:   maxQueries,
	}, nil
}

func (r *LLMReasoner) complete(ctx context.Context, template string, data any) (string, error) {
	userPrompt, err := r.prompts.Render(template, data)
	if err != nil {
		return "", err
	}
	response, err := r.client.CompleteWithSystem(ctx, r.systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("reasoner %s call failed: %w", template, err)
	}
	return response, nil
}

// GenerateSearchQueries produces retrieval queries for the problem,
// optionally steered by a verifier diagnostic from a failed attempt.
func (r *LLMReasoner) GenerateSearchQueries(ctx context.Context, problem types.Problem, errorContext string) ([]string, error) {
	response, err := r.complete(ctx, "search_queries", map[string]any{
		"Problem":      problem.Statement,
		"Description":  problem.Description,
		"ErrorContext": errorContext,
		"MaxQueries":   r.maxQueries,
	})
	if err != nil {
		return nil, err
	}
	queries := ParseSearchQueries(response)
	if len(queries) > r.maxQueries {
		queries = queries[:r.maxQueries]
	}
	logging.Reasoner("generated %d search queries", len(queries))
	return queries, nil
}

// SelectRelevantTheorems narrows retrieved candidates to the ones the
// model deems useful.
func (r *LLMReasoner) SelectRelevantTheorems(ctx context.Context, problem types.Problem, candidates []types.TheoremRecord) ([]types.TheoremRecord, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	response, err := r.complete(ctx, "select_theorems", map[string]any{
		"Problem":     problem.Statement,
		"Description": problem.Description,
		"Candidates":  types.FormatTheorems(candidates),
	})
	if err != nil {
		return nil, err
	}
	selected := MatchSelectedTheorems(response, candidates)
	logging.Reasoner("selected %d/%d candidate theorems", len(selected), len(candidates))
	return selected, nil
}

// GenerateInformalProof writes a prose proof to guide sketching.
func (r *LLMReasoner) GenerateInformalProof(ctx context.Context, problem types.Problem, theorems []types.TheoremRecord) (string, error) {
	return r.complete(ctx, "informal_proof", map[string]any{
		"Problem":     problem.Statement,
		"Description": problem.Description,
		"Theorems":    types.FormatTheorems(theorems),
	})
}

// GenerateSketch formalizes an informal proof into a Lean sketch with
// sorry placeholders.
func (r *LLMReasoner) GenerateSketch(ctx context.Context, problem types.Problem, theorems []types.TheoremRecord, informalProof string) (string, error) {
	response, err := r.complete(ctx, "sketch", map[string]any{
		"Problem":       problem.Statement,
		"Theorems":      types.FormatTheorems(theorems),
		"InformalProof": informalProof,
	})
	if err != nil {
		return "", err
	}
	return ExtractLeanBlock(response), nil
}

// CorrectSketchError repairs a sketch that failed to compile.
func (r *LLMReasoner) CorrectSketchError(ctx context.Context, problem types.Problem, sketch, diagnostic string, theorems []types.TheoremRecord) (string, error) {
	response, err := r.complete(ctx, "correct_sketch", map[string]any{
		"Problem":     problem.Statement,
		"Description": problem.Description,
		"Sketch":      sketch,
		"Diagnostic":  diagnostic,
		"Theorems":    types.FormatTheorems(theorems),
	})
	if err != nil {
		return "", err
	}
	return ExtractLeanBlock(response), nil
}

// CompressSketch asks for a simplified sketch with the same subgoals.
func (r *LLMReasoner) CompressSketch(ctx context.Context, sketch string, problem types.Problem) (string, error) {
	response, err := r.complete(ctx, "compress_sketch", map[string]any{
		"Problem":     problem.Statement,
		"Description": problem.Description,
		"Sketch":      sketch,
	})
	if err != nil {
		return "", err
	}
	return ExtractLeanBlock(response), nil
}

// ExtractSubgoals splits a sketch into independent subgoal statements.
func (r *LLMReasoner) ExtractSubgoals(ctx context.Context, sketch string) ([]string, error) {
	response, err := r.complete(ctx, "extract_subgoals", map[string]any{
		"Sketch": sketch,
	})
	if err != nil {
		return nil, err
	}
	subgoals := ExtractLeanBlocks(response)
	logging.Reasoner("extracted %d subgoals from sketch", len(subgoals))
	return subgoals, nil
}

// CorrectTheoremError repairs a single statement that fails to
// elaborate.
func (r *LLMReasoner) CorrectTheoremError(ctx context.Context, statement, diagnostic string) (string, error) {
	response, err := r.complete(ctx, "correct_theorem", map[string]any{
		"Statement":  statement,
		"Diagnostic": diagnostic,
	})
	if err != nil {
		return "", err
	}
	return ExtractLeanBlock(response), nil
}

// UseSketchAndTheorems rewrites a sketch so each sorry is discharged
// by the matching subgoal statement.
func (r *LLMReasoner) UseSketchAndTheorems(ctx context.Context, sketch string, subgoals []string) (string, error) {
	response, err := r.complete(ctx, "use_sketch_and_theorems", map[string]any{
		"Sketch":   sketch,
		"Subgoals": formatSubgoals(subgoals),
	})
	if err != nil {
		return "", err
	}
	return ExtractLeanBlock(response), nil
}

// AssemblyCorrection repairs a composed proof whose parts do not fit
// together.
func (r *LLMReasoner) AssemblyCorrection(ctx context.Context, diagnostic, assembled string) (string, error) {
	response, err := r.complete(ctx, "assembly_correction", map[string]any{
		"Diagnostic": diagnostic,
		"Assembled":  assembled,
	})
	if err != nil {
		return "", err
	}
	return ExtractLeanBlock(response), nil
}

// CheckMathematicalCorrectness judges whether a statement is true,
// without requiring a constructive proof.
func (r *LLMReasoner) CheckMathematicalCorrectness(ctx context.Context, statement string) (types.Judgment, error) {
	response, err := r.complete(ctx, "check_correctness", map[string]any{
		"Statement": statement,
	})
	if err != nil {
		return types.Judgment{}, err
	}
	judgment := ParseJudgment(response)
	logging.Reasoner("correctness judgment: correct=%v", judgment.Correct)
	return judgment, nil
}

// RefineSketchFromError rewrites a sketch whose subgoal was judged
// mathematically wrong.
func (r *LLMReasoner) RefineSketchFromError(ctx context.Context, sketch, justification string) (string, error) {
	response, err := r.complete(ctx, "refine_sketch", map[string]any{
		"Sketch":        sketch,
		"Justification": justification,
	})
	if err != nil {
		return "", err
	}
	return ExtractLeanBlock(response), nil
}

// AttemptGeneralProof tries to prove a statement outright.
func (r *LLMReasoner) AttemptGeneralProof(ctx context.Context, statement string, theorems []types.TheoremRecord) (string, error) {
	response, err := r.complete(ctx, "general_proof", map[string]any{
		"Statement": statement,
		"Theorems":  types.FormatTheorems(theorems),
	})
	if err != nil {
		return "", err
	}
	return ExtractLeanBlock(response), nil
}

// CorrectProofError repairs a complete proof using the latest
// diagnostic and theorem set.
func (r *LLMReasoner) CorrectProofError(ctx context.Context, proof, diagnostic string, theorems []types.TheoremRecord) (string, error) {
	response, err := r.complete(ctx, "correct_proof", map[string]any{
		"Proof":      proof,
		"Diagnostic": diagnostic,
		"Theorems":   types.FormatTheorems(theorems),
	})
	if err != nil {
		return "", err
	}
	return ExtractLeanBlock(response), nil
}

func formatSubgoals(subgoals []string) string {
	out := ""
	for i, sg := range subgoals {
		if i > 0 {
			out += "\n\n"
		}
		out += "```lean\n" + sg + "\n```"
	}
	return out
}
