// Package capability implements the LLM-backed Agent Invoker capabilities
// (Planning, Hypothesis, Reflection, Discovery, Continue-decision, Reply) as
// thin wrappers over an llm.Client: render a prompt, request strict JSON back,
// decode it into the capability's result type.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/researchlab/orchestrator/internal/agents/llm"
)

// complete sends prompt to client and extracts the first top-level JSON
// object or array from the response text, tolerating prose the model adds
// around it.
func complete(ctx context.Context, client llm.Client, system, prompt string, maxTokens int, out any) error {
	resp, err := client.Complete(ctx, llm.Request{System: system, Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		return err
	}
	payload := extractJSON(resp.Text)
	if payload == "" {
		return fmt.Errorf("capability: no JSON payload in model response")
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("capability: decode model response: %w", err)
	}
	return nil
}

func extractJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return ""
	}
	open, close := text[start], byte('}')
	if open == '[' {
		close = ']'
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
