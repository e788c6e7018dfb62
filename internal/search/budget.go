package search

// Budget fixes every retry and recursion bound of the proof search.
// It is an immutable value set at construction; the orchestrator never
// adjusts it, which is what makes termination a structural guarantee.
type Budget struct {
	// MaxDepth bounds recursive decomposition. Depth 1 is the
	// top-level problem; a recursive call at depth > MaxDepth fails
	// immediately.
	MaxDepth int

	// SketchAttempts bounds fresh sketches per decomposition pass.
	SketchAttempts int

	// SketchCorrections bounds refine-from-rejection retries inside
	// one sketch validation.
	SketchCorrections int

	// TheoremCorrections bounds augment-and-rewrite repairs of a
	// sketch that fails its syntax check.
	TheoremCorrections int

	// SubgoalCorrections bounds syntax repairs per extracted subgoal.
	SubgoalCorrections int

	// AssemblyCorrections bounds repairs of the assembled sketch.
	AssemblyCorrections int

	// ProverAttempts bounds calls to the specialized prover per
	// subgoal.
	ProverAttempts int

	// LLMProofAttempts bounds error-driven corrections of a general
	// reasoner proof per subgoal.
	LLMProofAttempts int
}

// DefaultBudget mirrors the configuration defaults.
func DefaultBudget() Budget {
	return Budget{
		MaxDepth:            2,
		SketchAttempts:      3,
		SketchCorrections:   3,
		TheoremCorrections:  2,
		SubgoalCorrections:  2,
		AssemblyCorrections: 2,
		ProverAttempts:      1,
		LLMProofAttempts:    2,
	}
}
