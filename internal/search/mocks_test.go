package search

import (
	"context"
	"strings"
	"testing"

	"leannerd/internal/types"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeReasoner scripts each operation with a Func field. Unset fields
// return empty results. Every call is counted.
type fakeReasoner struct {
	Calls map[string]int

	GenerateSearchQueriesFunc        func(problem types.Problem, errorContext string) []string
	SelectRelevantTheoremsFunc       func(problem types.Problem, candidates []types.TheoremRecord) []types.TheoremRecord
	GenerateInformalProofFunc        func(problem types.Problem) string
	GenerateSketchFunc               func(problem types.Problem, informal string) string
	CorrectSketchErrorFunc           func(sketch, diagnostic string, theorems []types.TheoremRecord) string
	CompressSketchFunc               func(sketch string) string
	ExtractSubgoalsFunc              func(sketch string) []string
	CorrectTheoremErrorFunc          func(statement, diagnostic string) string
	UseSketchAndTheoremsFunc         func(sketch string, subgoals []string) string
	AssemblyCorrectionFunc           func(diagnostic, assembled string) string
	CheckMathematicalCorrectnessFunc func(statement string) types.Judgment
	RefineSketchFromErrorFunc        func(sketch, justification string) string
	AttemptGeneralProofFunc          func(statement string) string
	CorrectProofErrorFunc            func(proof, diagnostic string) string
}

func newFakeReasoner() *fakeReasoner {
	return &fakeReasoner{Calls: make(map[string]int)}
}

func (f *fakeReasoner) count(op string) { f.Calls[op]++ }

func (f *fakeReasoner) GenerateSearchQueries(ctx context.Context, problem types.Problem, errorContext string) ([]string, error) {
	f.count("GenerateSearchQueries")
	if f.GenerateSearchQueriesFunc != nil {
		return f.GenerateSearchQueriesFunc(problem, errorContext), nil
	}
	return []string{"query"}, nil
}

func (f *fakeReasoner) SelectRelevantTheorems(ctx context.Context, problem types.Problem, candidates []types.TheoremRecord) ([]types.TheoremRecord, error) {
	f.count("SelectRelevantTheorems")
	if f.SelectRelevantTheoremsFunc != nil {
		return f.SelectRelevantTheoremsFunc(problem, candidates), nil
	}
	return candidates, nil
}

func (f *fakeReasoner) GenerateInformalProof(ctx context.Context, problem types.Problem, theorems []types.TheoremRecord) (string, error) {
	f.count("GenerateInformalProof")
	if f.GenerateInformalProofFunc != nil {
		return f.GenerateInformalProofFunc(problem), nil
	}
	return "informal proof", nil
}

func (f *fakeReasoner) GenerateSketch(ctx context.Context, problem types.Problem, theorems []types.TheoremRecord, informal string) (string, error) {
	f.count("GenerateSketch")
	if f.GenerateSketchFunc != nil {
		return f.GenerateSketchFunc(problem, informal), nil
	}
	return "", nil
}

func (f *fakeReasoner) CorrectSketchError(ctx context.Context, problem types.Problem, sketch, diagnostic string, theorems []types.TheoremRecord) (string, error) {
	f.count("CorrectSketchError")
	if f.CorrectSketchErrorFunc != nil {
		return f.CorrectSketchErrorFunc(sketch, diagnostic, theorems), nil
	}
	return "", nil
}

func (f *fakeReasoner) CompressSketch(ctx context.Context, sketch string, problem types.Problem) (string, error) {
	f.count("CompressSketch")
	if f.CompressSketchFunc != nil {
		return f.CompressSketchFunc(sketch), nil
	}
	return "", nil
}

func (f *fakeReasoner) ExtractSubgoals(ctx context.Context, sketch string) ([]string, error) {
	f.count("ExtractSubgoals")
	if f.ExtractSubgoalsFunc != nil {
		return f.ExtractSubgoalsFunc(sketch), nil
	}
	return nil, nil
}

func (f *fakeReasoner) CorrectTheoremError(ctx context.Context, statement, diagnostic string) (string, error) {
	f.count("CorrectTheoremError")
	if f.CorrectTheoremErrorFunc != nil {
		return f.CorrectTheoremErrorFunc(statement, diagnostic), nil
	}
	return "", nil
}

func (f *fakeReasoner) UseSketchAndTheorems(ctx context.Context, sketch string, subgoals []string) (string, error) {
	f.count("UseSketchAndTheorems")
	if f.UseSketchAndTheoremsFunc != nil {
		return f.UseSketchAndTheoremsFunc(sketch, subgoals), nil
	}
	return sketch, nil
}

func (f *fakeReasoner) AssemblyCorrection(ctx context.Context, diagnostic, assembled string) (string, error) {
	f.count("AssemblyCorrection")
	if f.AssemblyCorrectionFunc != nil {
		return f.AssemblyCorrectionFunc(diagnostic, assembled), nil
	}
	return "", nil
}

func (f *fakeReasoner) CheckMathematicalCorrectness(ctx context.Context, statement string) (types.Judgment, error) {
	f.count("CheckMathematicalCorrectness")
	if f.CheckMathematicalCorrectnessFunc != nil {
		return f.CheckMathematicalCorrectnessFunc(statement), nil
	}
	return types.Judgment{Correct: false, Justification: "not judged"}, nil
}

func (f *fakeReasoner) RefineSketchFromError(ctx context.Context, sketch, justification string) (string, error) {
	f.count("RefineSketchFromError")
	if f.RefineSketchFromErrorFunc != nil {
		return f.RefineSketchFromErrorFunc(sketch, justification), nil
	}
	return "", nil
}

func (f *fakeReasoner) AttemptGeneralProof(ctx context.Context, statement string, theorems []types.TheoremRecord) (string, error) {
	f.count("AttemptGeneralProof")
	if f.AttemptGeneralProofFunc != nil {
		return f.AttemptGeneralProofFunc(statement), nil
	}
	return "", nil
}

func (f *fakeReasoner) CorrectProofError(ctx context.Context, proof, diagnostic string, theorems []types.TheoremRecord) (string, error) {
	f.count("CorrectProofError")
	if f.CorrectProofErrorFunc != nil {
		return f.CorrectProofErrorFunc(proof, diagnostic), nil
	}
	return "", nil
}

// fakeRetriever returns a fixed record set per call.
type fakeRetriever struct {
	Calls   int
	Results []types.TheoremRecord
	Func    func(queries []string, topK int) []types.TheoremRecord
}

func (f *fakeRetriever) BatchRetrieve(ctx context.Context, queries []string, topK int) ([]types.TheoremRecord, error) {
	f.Calls++
	if f.Func != nil {
		return f.Func(queries, topK), nil
	}
	return f.Results, nil
}

// fakeVerifier decides outcomes by matching the checked text against
// registered pass fragments. Deterministic by construction, so checking
// the same text twice always yields the same outcome.
type fakeVerifier struct {
	Checked    []string
	passAll    bool
	passWhen   []string
	diagnostic string
}

func passingVerifier() *fakeVerifier {
	return &fakeVerifier{passAll: true}
}

// verifierPassingOn passes any text containing one of the fragments,
// failing everything else with the given diagnostic.
func verifierPassingOn(diagnostic string, fragments ...string) *fakeVerifier {
	return &fakeVerifier{passWhen: fragments, diagnostic: diagnostic}
}

func (f *fakeVerifier) Execute(ctx context.Context, text string) (types.VerificationOutcome, error) {
	f.Checked = append(f.Checked, text)
	if f.passAll {
		return types.VerificationOutcome{Verified: true}, nil
	}
	for _, frag := range f.passWhen {
		if strings.Contains(text, frag) {
			return types.VerificationOutcome{Verified: true}, nil
		}
	}
	return types.VerificationOutcome{Verified: false, Diagnostic: f.diagnostic}, nil
}

// fakeProver scripts the specialized prover.
type fakeProver struct {
	Calls int
	Func  func(statement, header string) string
}

func (f *fakeProver) ProveSubgoal(ctx context.Context, statement, header string) (string, error) {
	f.Calls++
	if f.Func != nil {
		return f.Func(statement, header), nil
	}
	return "", nil
}
