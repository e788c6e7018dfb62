// Package types holds the shared domain types passed between the
// proof-search orchestrator and its capability adapters.
package types

import "strings"

// Problem is a formal statement to prove. The Statement is the Lean
// theorem (with its proof left open), Header carries the preamble
// (imports, open declarations) needed to elaborate it, and Description
// is an optional natural-language account of the problem. Problems are
// immutable once constructed.
type Problem struct {
	Statement   string
	Header      string
	Description string
}

// TheoremRecord is one candidate lemma returned by the retriever.
// Records are read-only; the orchestrator copies them into local
// slices and deduplicates by Name.
type TheoremRecord struct {
	Name      string  `json:"name"`
	Signature string  `json:"signature"`
	Informal  string  `json:"informal,omitempty"`
	Kind      string  `json:"kind,omitempty"`
	Score     float64 `json:"score"`
}

// VerificationOutcome is the only channel through which the search
// loop learns about failure. Diagnostic is empty when Verified is true.
type VerificationOutcome struct {
	Verified   bool
	Diagnostic string
}

// Judgment is the parsed result of a mathematical-correctness check.
// Raw LLM text never travels past the reasoner parse boundary; callers
// see only this.
type Judgment struct {
	Correct       bool
	Justification string
}

// DedupTheorems merges theorem slices preserving first-seen order,
// dropping later records whose Name was already seen. Records without
// a name are keyed by signature.
func DedupTheorems(lists ...[]TheoremRecord) []TheoremRecord {
	seen := make(map[string]struct{})
	var out []TheoremRecord
	for _, list := range lists {
		for _, th := range list {
			key := th.Name
			if key == "" {
				key = th.Signature
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, th)
		}
	}
	return out
}

// FormatTheorems renders records as a prompt-ready block, one theorem
// per stanza. Matches what the reasoner templates expect.
func FormatTheorems(theorems []TheoremRecord) string {
	if len(theorems) == 0 {
		return "(no candidate theorems)"
	}
	var b strings.Builder
	for i, th := range theorems {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(th.Name)
		if th.Signature != "" {
			b.WriteString("\n")
			b.WriteString(th.Signature)
		}
		if th.Informal != "" {
			b.WriteString("\n-- ")
			b.WriteString(th.Informal)
		}
	}
	return b.String()
}
