// Package prover talks to a dedicated theorem-proving model served by
// a local vLLM instance (Goedel-Prover by default). The capability is
// optional; the search runs without it.
package prover

import (
	"context"
	"strings"

	"leannerd/internal/llm"
	"leannerd/internal/logging"
	"leannerd/internal/prompt"
)

// Client proves single subgoals with the specialized model.
type Client struct {
	llm     llm.Client
	prompts *prompt.Store
}

// New builds a prover over an OpenAI-compatible endpoint. The same
// chat client implementation serves the reasoner and the prover; only
// the endpoint and model differ.
func New(client llm.Client, prompts *prompt.Store) *Client {
	return &Client{llm: client, prompts: prompts}
}

// ProveSubgoal asks the prover model for a complete proof of the
// statement. An empty return means the model produced nothing usable;
// only transport failures are errors.
func (c *Client) ProveSubgoal(ctx context.Context, statement, header string) (string, error) {
	userPrompt, err := c.prompts.Render("prover", map[string]string{
		"Statement": statement,
		"Header":    header,
	})
	if err != nil {
		return "", err
	}

	response, err := c.llm.Complete(ctx, userPrompt)
	if err != nil {
		return "", err
	}

	proof := extractProof(response)
	if proof == "" {
		logging.Prover("prover returned no usable proof for subgoal")
	}
	return proof, nil
}

// extractProof pulls the fenced Lean block from the model output. A
// proof that still contains sorry is useless downstream and is dropped
// here rather than burning a verifier run.
func extractProof(response string) string {
	var proof string
	if start := strings.Index(response, "```lean"); start >= 0 {
		rest := response[start:]
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			rest = rest[nl+1:]
			if end := strings.Index(rest, "```"); end >= 0 {
				proof = strings.TrimSpace(rest[:end])
			}
		}
	}
	if proof == "" {
		proof = strings.TrimSpace(response)
	}
	if proof == "" || strings.Contains(proof, "sorry") {
		return ""
	}
	return proof
}
