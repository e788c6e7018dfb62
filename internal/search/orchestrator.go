// Package search implements the recursive decompose-prove-verify-repair
// loop that turns a formal problem into a machine-checked proof.
//
// Control flow: GenerateProof delegates to decompose, which loops over
// sketch attempts (retrieve, informal proof, sketch, validate). A
// validated sketch yields subgoals; each pending subgoal is attacked
// with the specialized prover, then a general reasoner proof with
// error-driven correction, then recursive decomposition one level
// deeper. The composed artifact must pass a final whole-proof
// verification before anything is returned.
//
// Expected failures travel as zero values: an empty proof means "not
// found within budget". Go errors are reserved for infrastructure
// faults (verifier, model, or retriever unreachable) and abort the
// whole search.
package search

import (
	"context"
	"fmt"
	"strings"

	"leannerd/internal/logging"
	"leannerd/internal/types"
	"leannerd/internal/verifier"
)

// Orchestrator owns one proof search configuration. It is stateless
// across calls; all mutable search state lives in call frames, so a
// single Orchestrator may serve concurrent GenerateProof calls.
type Orchestrator struct {
	reasoner  Reasoner
	retriever Retriever
	verifier  Verifier
	prover    Prover // optional, may be nil
	budget    Budget
	topK      int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProver attaches the optional specialized prover.
func WithProver(p Prover) Option {
	return func(o *Orchestrator) { o.prover = p }
}

// WithTopK sets how many theorems each retrieval returns.
func WithTopK(k int) Option {
	return func(o *Orchestrator) { o.topK = k }
}

// New builds an Orchestrator from its required capabilities.
func New(r Reasoner, ret Retriever, v Verifier, budget Budget, opts ...Option) (*Orchestrator, error) {
	if r == nil || ret == nil || v == nil {
		return nil, fmt.Errorf("reasoner, retriever, and verifier are required")
	}
	if budget.MaxDepth < 1 || budget.SketchAttempts < 1 {
		return nil, fmt.Errorf("budget must allow at least one depth and one sketch attempt")
	}
	o := &Orchestrator{
		reasoner:  r,
		retriever: ret,
		verifier:  v,
		budget:    budget,
		topK:      5,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// GenerateProof searches for a verified proof of the problem. It
// returns the full artifact (header included), or "" when the budget
// is exhausted without success.
func (o *Orchestrator) GenerateProof(ctx context.Context, problem types.Problem) (string, error) {
	timer := logging.StartTimer(logging.CategorySearch, "GenerateProof")
	defer timer.Stop()

	body, err := o.decompose(ctx, problem, 1)
	if err != nil {
		return "", err
	}
	if body == "" {
		logging.Search("no proof found within budget")
		return "", nil
	}
	return composeArtifact(problem.Header, body), nil
}

// decompose is the recursive heart of the search. It returns the
// verified proof body (header excluded) or "".
func (o *Orchestrator) decompose(ctx context.Context, problem types.Problem, depth int) (string, error) {
	if depth > o.budget.MaxDepth {
		return "", nil
	}
	logging.Search("decompose depth=%d statement=%.60q", depth, problem.Statement)

	for attempt := 1; attempt <= o.budget.SketchAttempts; attempt++ {
		theorems, err := o.retrieveTheorems(ctx, problem, "")
		if err != nil {
			return "", err
		}

		informal, err := o.reasoner.GenerateInformalProof(ctx, problem, theorems)
		if err != nil {
			return "", err
		}
		sketch, err := o.reasoner.GenerateSketch(ctx, problem, theorems, informal)
		if err != nil {
			return "", err
		}
		if sketch == "" {
			logging.SearchWarn("sketch attempt %d/%d produced nothing", attempt, o.budget.SketchAttempts)
			continue
		}

		assembled, subgoals, provedMap, admitted, err := o.refineAndValidateSketch(ctx, sketch, problem, theorems)
		if err != nil {
			return "", err
		}
		if assembled == "" {
			logging.Search("sketch attempt %d/%d did not validate", attempt, o.budget.SketchAttempts)
			continue
		}

		body, err := o.solveAllSubgoals(ctx, subgoals, provedMap, admitted, assembled, problem, depth)
		if err != nil {
			return "", err
		}
		if body != "" {
			logging.Search("proof found at depth=%d on sketch attempt %d", depth, attempt)
			return body, nil
		}
	}
	return "", nil
}

// refineAndValidateSketch drives a sketch to a validated, assembled
// form. On success it returns the assembled sketch, the extracted
// subgoals in order, the subgoals already proved by the prover, and
// the subgoals admitted by the correctness judgment without a
// constructive proof. All-empty returns mean the sketch is a dead end.
func (o *Orchestrator) refineAndValidateSketch(ctx context.Context, sketch string, problem types.Problem, theorems []types.TheoremRecord) (string, []string, map[string]string, map[string]bool, error) {
	current := sketch

	for correction := 0; correction < o.budget.SketchCorrections; correction++ {
		valid, augmented, err := o.completeAndCorrectSyntax(ctx, current, problem, theorems)
		if err != nil {
			return "", nil, nil, nil, err
		}
		if valid == "" {
			// Syntax repair already exhausted its own budget; the
			// sketch is not retried at this level.
			return "", nil, nil, nil, nil
		}
		theorems = augmented

		// Compression is cosmetic and kept only if it independently
		// re-verifies.
		compressed, err := o.reasoner.CompressSketch(ctx, valid, problem)
		if err != nil {
			return "", nil, nil, nil, err
		}
		if compressed != "" && compressed != valid {
			outcome, err := o.verifier.Execute(ctx, composeArtifact(problem.Header, compressed))
			if err != nil {
				return "", nil, nil, nil, err
			}
			if outcome.Verified {
				valid = compressed
			}
		}

		subgoals, ok, err := o.extractSubgoals(ctx, valid, problem.Header)
		if err != nil {
			return "", nil, nil, nil, err
		}
		if !ok {
			return "", nil, nil, nil, nil
		}

		assembled := valid
		if len(subgoals) > 0 {
			assembled, err = o.assembleFromSubgoals(ctx, valid, subgoals, problem.Header)
			if err != nil {
				return "", nil, nil, nil, err
			}
			if assembled == "" {
				return "", nil, nil, nil, nil
			}
		}

		provedMap := make(map[string]string)
		admitted := make(map[string]bool)
		rejection := ""
		for _, subgoal := range subgoals {
			proof, err := o.tryProver(ctx, subgoal, problem.Header)
			if err != nil {
				return "", nil, nil, nil, err
			}
			if proof != "" {
				provedMap[subgoal] = proof
				continue
			}

			judgment, err := o.reasoner.CheckMathematicalCorrectness(ctx, subgoal)
			if err != nil {
				return "", nil, nil, nil, err
			}
			if judgment.Correct {
				// Validated but not yet proved: the solve phase still
				// attempts a constructive discharge before falling back
				// to admitting the bare statement.
				admitted[subgoal] = true
				continue
			}
			rejection = judgment.Justification
			break
		}

		if rejection == "" {
			return assembled, subgoals, provedMap, admitted, nil
		}

		logging.Search("sketch rejected (correction %d/%d): %.80s",
			correction+1, o.budget.SketchCorrections, rejection)
		refined, err := o.reasoner.RefineSketchFromError(ctx, valid, rejection)
		if err != nil {
			return "", nil, nil, nil, err
		}
		if refined == "" {
			return "", nil, nil, nil, nil
		}
		// Retry with the refined sketch, not a fresh one.
		current = refined
	}
	return "", nil, nil, nil, nil
}

// completeAndCorrectSyntax makes header + sketch pass the verifier,
// repairing via retrieval augmentation when it does not. Returns the
// verified sketch and the (possibly augmented) theorem set.
func (o *Orchestrator) completeAndCorrectSyntax(ctx context.Context, sketch string, problem types.Problem, theorems []types.TheoremRecord) (string, []types.TheoremRecord, error) {
	outcome, err := o.verifier.Execute(ctx, composeArtifact(problem.Header, sketch))
	if err != nil {
		return "", nil, err
	}
	if outcome.Verified {
		return sketch, theorems, nil
	}

	current := sketch
	diagnostic := outcome.Diagnostic
	for attempt := 0; attempt < o.budget.TheoremCorrections; attempt++ {
		// Augmentation proceeds for every failure class; a named
		// missing identifier just makes the queries sharper.
		if missing := verifier.MissingIdentifiers(diagnostic); len(missing) > 0 {
			logging.Search("missing identifiers: %v", missing)
		}
		fresh, err := o.retrieveTheorems(ctx, problem, diagnostic)
		if err != nil {
			return "", nil, err
		}
		theorems = types.DedupTheorems(theorems, fresh)

		current, err = o.reasoner.CorrectSketchError(ctx, problem, current, diagnostic, theorems)
		if err != nil {
			return "", nil, err
		}
		if current == "" {
			return "", theorems, nil
		}

		outcome, err = o.verifier.Execute(ctx, composeArtifact(problem.Header, current))
		if err != nil {
			return "", nil, err
		}
		if outcome.Verified {
			return current, theorems, nil
		}
		diagnostic = outcome.Diagnostic
	}
	return "", theorems, nil
}

// extractSubgoals splits the sketch and verifies each extracted
// statement against the header, repairing syntax up to the budget. A
// subgoal that never verifies fails the whole extraction; partial sets
// would break assembly's completeness assumption.
func (o *Orchestrator) extractSubgoals(ctx context.Context, sketch, header string) ([]string, bool, error) {
	raw, err := o.reasoner.ExtractSubgoals(ctx, sketch)
	if err != nil {
		return nil, false, err
	}

	subgoals := make([]string, 0, len(raw))
	for _, subgoal := range raw {
		outcome, err := o.verifier.Execute(ctx, composeArtifact(header, subgoal))
		if err != nil {
			return nil, false, err
		}
		if !outcome.Verified {
			subgoal, err = o.repairSubgoalSyntax(ctx, subgoal, header, outcome.Diagnostic)
			if err != nil {
				return nil, false, err
			}
			if subgoal == "" {
				return nil, false, nil
			}
		}
		subgoals = append(subgoals, subgoal)
	}
	return subgoals, true, nil
}

func (o *Orchestrator) repairSubgoalSyntax(ctx context.Context, subgoal, header, diagnostic string) (string, error) {
	current := subgoal
	for attempt := 0; attempt < o.budget.SubgoalCorrections; attempt++ {
		fixed, err := o.reasoner.CorrectTheoremError(ctx, current, diagnostic)
		if err != nil {
			return "", err
		}
		if fixed == "" {
			return "", nil
		}
		outcome, err := o.verifier.Execute(ctx, composeArtifact(header, fixed))
		if err != nil {
			return "", err
		}
		if outcome.Verified {
			return fixed, nil
		}
		current = fixed
		diagnostic = outcome.Diagnostic
	}
	return "", nil
}

// assembleFromSubgoals rewrites the sketch to invoke the subgoals as
// lemmas and verifies it against header + subgoal block, repairing up
// to the assembly budget.
func (o *Orchestrator) assembleFromSubgoals(ctx context.Context, sketch string, subgoals []string, header string) (string, error) {
	assembled, err := o.reasoner.UseSketchAndTheorems(ctx, sketch, subgoals)
	if err != nil {
		return "", err
	}
	if assembled == "" {
		return "", nil
	}

	block := strings.Join(subgoals, "\n\n")
	outcome, err := o.verifier.Execute(ctx, composeArtifact(header, block+"\n\n"+assembled))
	if err != nil {
		return "", err
	}
	for attempt := 0; !outcome.Verified && attempt < o.budget.AssemblyCorrections; attempt++ {
		assembled, err = o.reasoner.AssemblyCorrection(ctx, outcome.Diagnostic, assembled)
		if err != nil {
			return "", err
		}
		if assembled == "" {
			return "", nil
		}
		outcome, err = o.verifier.Execute(ctx, composeArtifact(header, block+"\n\n"+assembled))
		if err != nil {
			return "", err
		}
	}
	if !outcome.Verified {
		return "", nil
	}
	return assembled, nil
}

// solveAllSubgoals discharges every subgoal not already proved, then
// composes and verifies the whole artifact. Subgoals are processed
// strictly sequentially in extraction order; the proved map only grows.
// Cheapest first: prover, then a general reasoner proof, then recursive
// decomposition. A subgoal admitted by the correctness judgment that
// resists all three stands in as its own proof; the final whole-proof
// verification is the arbiter of whether that admission holds.
func (o *Orchestrator) solveAllSubgoals(ctx context.Context, subgoals []string, provedMap map[string]string, admitted map[string]bool, assembled string, problem types.Problem, depth int) (string, error) {
	for _, subgoal := range subgoals {
		if _, done := provedMap[subgoal]; done {
			continue
		}

		proof, err := o.tryProver(ctx, subgoal, problem.Header)
		if err != nil {
			return "", err
		}
		if proof == "" {
			proof, err = o.tryGeneralProof(ctx, subgoal, problem.Header)
			if err != nil {
				return "", err
			}
		}
		if proof == "" && depth+1 <= o.budget.MaxDepth {
			subProblem := types.Problem{Statement: subgoal, Header: problem.Header}
			proof, err = o.decompose(ctx, subProblem, depth+1)
			if err != nil {
				return "", err
			}
		}
		if proof == "" && admitted[subgoal] {
			logging.Search("admitting subgoal without constructive proof: %.60q", subgoal)
			proof = subgoal
		}
		if proof == "" {
			logging.Search("subgoal unsolved at depth=%d: %.60q", depth, subgoal)
			return "", nil
		}
		provedMap[subgoal] = proof
	}

	// A locally successful subgoal proof is not trusted until the
	// composed artifact reverifies.
	var parts []string
	for _, subgoal := range subgoals {
		parts = append(parts, provedMap[subgoal])
	}
	parts = append(parts, assembled)
	body := strings.Join(parts, "\n\n")

	outcome, err := o.verifier.Execute(ctx, composeArtifact(problem.Header, body))
	if err != nil {
		return "", err
	}
	if !outcome.Verified {
		logging.Search("final composed proof failed verification: %.120s", outcome.Diagnostic)
		return "", nil
	}
	return body, nil
}

// tryProver runs the optional specialized prover, verifying each
// candidate before trusting it.
func (o *Orchestrator) tryProver(ctx context.Context, subgoal, header string) (string, error) {
	if o.prover == nil {
		return "", nil
	}
	for attempt := 0; attempt < o.budget.ProverAttempts; attempt++ {
		proof, err := o.prover.ProveSubgoal(ctx, subgoal, header)
		if err != nil {
			return "", err
		}
		if proof == "" {
			continue
		}
		outcome, err := o.verifier.Execute(ctx, composeArtifact(header, proof))
		if err != nil {
			return "", err
		}
		if outcome.Verified {
			return proof, nil
		}
	}
	return "", nil
}

// tryGeneralProof asks the reasoner for a direct proof, then repairs
// it with error-driven corrections, re-augmenting theorems from each
// diagnostic.
func (o *Orchestrator) tryGeneralProof(ctx context.Context, subgoal, header string) (string, error) {
	subProblem := types.Problem{Statement: subgoal, Header: header}
	theorems, err := o.retrieveTheorems(ctx, subProblem, "")
	if err != nil {
		return "", err
	}

	proof, err := o.reasoner.AttemptGeneralProof(ctx, subgoal, theorems)
	if err != nil {
		return "", err
	}
	if proof == "" {
		return "", nil
	}

	outcome, err := o.verifier.Execute(ctx, composeArtifact(header, proof))
	if err != nil {
		return "", err
	}
	if outcome.Verified {
		return proof, nil
	}

	diagnostic := outcome.Diagnostic
	for attempt := 0; attempt < o.budget.LLMProofAttempts; attempt++ {
		fresh, err := o.retrieveTheorems(ctx, subProblem, diagnostic)
		if err != nil {
			return "", err
		}
		theorems = types.DedupTheorems(theorems, fresh)

		proof, err = o.reasoner.CorrectProofError(ctx, proof, diagnostic, theorems)
		if err != nil {
			return "", err
		}
		if proof == "" {
			return "", nil
		}
		outcome, err = o.verifier.Execute(ctx, composeArtifact(header, proof))
		if err != nil {
			return "", err
		}
		if outcome.Verified {
			return proof, nil
		}
		diagnostic = outcome.Diagnostic
	}
	return "", nil
}

// retrieveTheorems generates search queries (steered by the error
// context when present), retrieves candidates, and narrows them with
// the reasoner's relevance selection. Selection returning nothing
// falls back to the full candidate set.
func (o *Orchestrator) retrieveTheorems(ctx context.Context, problem types.Problem, errorContext string) ([]types.TheoremRecord, error) {
	queries, err := o.reasoner.GenerateSearchQueries(ctx, problem, errorContext)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, nil
	}

	candidates, err := o.retriever.BatchRetrieve(ctx, queries, o.topK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	selected, err := o.reasoner.SelectRelevantTheorems(ctx, problem, candidates)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return candidates, nil
	}
	return selected, nil
}

// composeArtifact joins a header and body with exactly one blank line.
func composeArtifact(header, body string) string {
	header = strings.TrimSpace(header)
	body = strings.TrimSpace(body)
	if header == "" {
		return body
	}
	return header + "\n\n" + body
}
