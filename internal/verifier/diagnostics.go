package verifier

import (
	"regexp"
	"strconv"
	"strings"
)

// ErrorKind classifies a Lean compiler diagnostic.
type ErrorKind string

const (
	KindTypeMismatch      ErrorKind = "type_mismatch"
	KindUnknownIdentifier ErrorKind = "unknown_identifier"
	KindTacticFailure     ErrorKind = "tactic_failure"
	KindUnsolvedGoals     ErrorKind = "unsolved_goals"
	KindSyntax            ErrorKind = "syntax"
	KindTimeout           ErrorKind = "timeout"
	KindOther             ErrorKind = "other"
)

// Location points at the source position of a diagnostic.
type Location struct {
	Line   int
	Column int
}

// Diagnostic is the structured view of one verification failure.
type Diagnostic struct {
	Kind     ErrorKind
	Location *Location
	Goals    []string
	Raw      string
}

var (
	// Lean prints positions as file.lean:10:5.
	locationRe = regexp.MustCompile(`\.lean:(\d+):(\d+)`)
	// Missing-dependency errors name the identifier in single quotes.
	missingIdentRe = regexp.MustCompile(`unknown (?:identifier|constant) '([^']+)'`)
)

// Parse builds a Diagnostic from raw compiler output.
func Parse(raw string) Diagnostic {
	d := Diagnostic{
		Kind:  ClassifyError(raw),
		Goals: extractGoals(raw),
		Raw:   raw,
	}
	if m := locationRe.FindStringSubmatch(raw); m != nil {
		line, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		d.Location = &Location{Line: line, Column: col}
	}
	return d
}

// ClassifyError maps a raw diagnostic to an ErrorKind.
func ClassifyError(raw string) ErrorKind {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "type mismatch"):
		return KindTypeMismatch
	case strings.Contains(lower, "unknown identifier"), strings.Contains(lower, "unknown constant"):
		return KindUnknownIdentifier
	case strings.Contains(lower, "unsolved goals"):
		return KindUnsolvedGoals
	case strings.Contains(lower, "tactic") && strings.Contains(lower, "failed"):
		return KindTacticFailure
	case strings.Contains(lower, "unexpected token"), strings.Contains(lower, "syntax error"):
		return KindSyntax
	case strings.Contains(lower, "timed out"), strings.Contains(lower, "timeout"):
		return KindTimeout
	default:
		return KindOther
	}
}

// MissingIdentifiers extracts the identifier names a diagnostic reports
// as unknown, in order of appearance, without duplicates. The proof
// search uses these to drive retrieval augmentation.
func MissingIdentifiers(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range missingIdentRe.FindAllStringSubmatch(raw, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// extractGoals pulls the open goals (lines starting with ⊢) from a
// diagnostic so repair prompts can quote just the proof state.
func extractGoals(raw string) []string {
	var goals []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "⊢") {
			goals = append(goals, trimmed)
		}
	}
	return goals
}
