package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/researchlab/orchestrator/internal/agents"
	"github.com/researchlab/orchestrator/internal/agents/llm"
)

const hypothesisSystemPrompt = `You are the hypothesis stage of a multi-agent deep research system.
Synthesize a working hypothesis from the objective and the completed task
output below. Respond with a single JSON object:
{"hypothesis": "...", "mode": "draft"|"refined"}`

type hypothesisPayload struct {
	Hypothesis string `json:"hypothesis"`
	Mode       string `json:"mode"`
}

// Hypothesis implements agents.Hypothesis over an llm.Client.
type Hypothesis struct {
	Client llm.Client
}

func (h Hypothesis) Invoke(ctx context.Context, params agents.HypothesisParams) (agents.HypothesisResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n\nCompleted tasks:\n", params.Objective)
	for _, t := range params.Plan {
		if !t.Done() {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n  Output: %s\n", t.Type, t.Objective, t.Output)
	}

	var payload hypothesisPayload
	if err := complete(ctx, h.Client, hypothesisSystemPrompt, b.String(), 2048, &payload); err != nil {
		return agents.HypothesisResult{}, err
	}
	return agents.HypothesisResult{Hypothesis: payload.Hypothesis, Mode: payload.Mode}, nil
}
