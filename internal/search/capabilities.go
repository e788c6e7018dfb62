package search

import (
	"context"

	"leannerd/internal/types"
)

// Capability interfaces the orchestrator depends on. Each adapter
// lives in its own package; the orchestrator only sees these.

// Reasoner is the LLM-backed reasoning capability. Every method is a
// pure request/response call; parsed, typed values come back, never
// raw model output.
type Reasoner interface {
	GenerateSearchQueries(ctx context.Context, problem types.Problem, errorContext string) ([]string, error)
	SelectRelevantTheorems(ctx context.Context, problem types.Problem, candidates []types.TheoremRecord) ([]types.TheoremRecord, error)
	GenerateInformalProof(ctx context.Context, problem types.Problem, theorems []types.TheoremRecord) (string, error)
	GenerateSketch(ctx context.Context, problem types.Problem, theorems []types.TheoremRecord, informalProof string) (string, error)
	CorrectSketchError(ctx context.Context, problem types.Problem, sketch, diagnostic string, theorems []types.TheoremRecord) (string, error)
	CompressSketch(ctx context.Context, sketch string, problem types.Problem) (string, error)
	ExtractSubgoals(ctx context.Context, sketch string) ([]string, error)
	CorrectTheoremError(ctx context.Context, statement, diagnostic string) (string, error)
	UseSketchAndTheorems(ctx context.Context, sketch string, subgoals []string) (string, error)
	AssemblyCorrection(ctx context.Context, diagnostic, assembled string) (string, error)
	CheckMathematicalCorrectness(ctx context.Context, statement string) (types.Judgment, error)
	RefineSketchFromError(ctx context.Context, sketch, justification string) (string, error)
	AttemptGeneralProof(ctx context.Context, statement string, theorems []types.TheoremRecord) (string, error)
	CorrectProofError(ctx context.Context, proof, diagnostic string, theorems []types.TheoremRecord) (string, error)
}

// Retriever serves ranked candidate theorems for a batch of queries,
// deduplicated, highest similarity first.
type Retriever interface {
	BatchRetrieve(ctx context.Context, queries []string, topK int) ([]types.TheoremRecord, error)
}

// Verifier is the formal type-checking oracle. Execute must be
// idempotent: the same text always yields the same outcome. A failed
// check is reported in the outcome; errors mean the verifier itself
// is broken and abort the whole search.
type Verifier interface {
	Execute(ctx context.Context, fullProofText string) (types.VerificationOutcome, error)
}

// Prover is the optional specialized proving model. An empty proof
// means it could not prove the statement.
type Prover interface {
	ProveSubgoal(ctx context.Context, statement, header string) (string, error)
}
