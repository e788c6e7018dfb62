package reasoner

import (
	"regexp"
	"strings"

	"leannerd/internal/types"
)

// The reasoner boundary is textual: the model answers in tags, fenced
// code blocks, and YES/NO verdicts. Everything is parsed into typed
// values here; raw LLM text never leaves this package.

var (
	searchTagRe  = regexp.MustCompile(`(?is)<search>(.*?)</search>`)
	theoremTagRe = regexp.MustCompile(`(?is)<theorem>(.*?)</theorem>`)
	leanFenceRe  = regexp.MustCompile("(?is)```(?:lean4?)\\s*\\n(.*?)```")
)

// ParseSearchQueries extracts <search> tags as retrieval queries.
func ParseSearchQueries(response string) []string {
	var queries []string
	for _, m := range searchTagRe.FindAllStringSubmatch(response, -1) {
		if q := strings.TrimSpace(m[1]); q != "" {
			queries = append(queries, q)
		}
	}
	return queries
}

// MatchSelectedTheorems resolves <theorem> tags against the candidate
// set. A tag matches on the full dotted name or, failing that, on the
// last segment alone, since models often drop the namespace prefix.
func MatchSelectedTheorems(response string, candidates []types.TheoremRecord) []types.TheoremRecord {
	var selected []types.TheoremRecord
	seen := make(map[string]struct{})
	for _, m := range theoremTagRe.FindAllStringSubmatch(response, -1) {
		tag := strings.TrimSpace(m[1])
		if tag == "" {
			continue
		}
		tagLemma := lastSegment(tag)
		for _, cand := range candidates {
			if cand.Name != tag && lastSegment(cand.Name) != tagLemma {
				continue
			}
			if _, ok := seen[cand.Name]; !ok {
				seen[cand.Name] = struct{}{}
				selected = append(selected, cand)
			}
			break
		}
	}
	return selected
}

func lastSegment(name string) string {
	parts := strings.Split(name, ".")
	return parts[len(parts)-1]
}

// ExtractLeanBlocks returns every fenced ```lean / ```lean4 block.
func ExtractLeanBlocks(response string) []string {
	var blocks []string
	for _, m := range leanFenceRe.FindAllStringSubmatch(response, -1) {
		if code := strings.TrimSpace(m[1]); code != "" {
			blocks = append(blocks, code)
		}
	}
	return blocks
}

// ExtractLeanBlock returns the first fenced block, or the whole
// response with stray fence markers stripped when the model skipped
// the fence entirely.
func ExtractLeanBlock(response string) string {
	if blocks := ExtractLeanBlocks(response); len(blocks) > 0 {
		return blocks[0]
	}
	return stripFenceMarkers(response)
}

func stripFenceMarkers(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"```lean4", "```lean", "```"} {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimSpace(text[len(prefix):])
			break
		}
	}
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSpace(text[:len(text)-3])
	}
	return strings.ReplaceAll(text, "`", "")
}

// ParseJudgment reads a correctness verdict. The verdict is the last
// standalone YES or NO in the response; everything before it is the
// justification. A response with no verdict is a rejection, so an
// unparseable judgment can never admit a wrong subgoal.
func ParseJudgment(response string) types.Judgment {
	lines := strings.Split(response, "\n")
	verdictLine := -1
	correct := false
	for i := len(lines) - 1; i >= 0; i-- {
		upper := strings.ToUpper(strings.Trim(strings.TrimSpace(lines[i]), ".!* "))
		if upper == "YES" || upper == "NO" {
			verdictLine = i
			correct = upper == "YES"
			break
		}
	}
	if verdictLine == -1 {
		return types.Judgment{Correct: false, Justification: strings.TrimSpace(response)}
	}
	justification := strings.TrimSpace(strings.Join(lines[:verdictLine], "\n"))
	return types.Judgment{Correct: correct, Justification: justification}
}
