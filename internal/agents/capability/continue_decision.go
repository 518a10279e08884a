package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/researchlab/orchestrator/internal/agents"
	"github.com/researchlab/orchestrator/internal/agents/llm"
)

const continueDecisionSystemPrompt = `You decide whether a multi-agent deep research chain should continue with
another iteration. Weigh the suggested next steps against how many automatic
iterations have already run and the cap for this conversation's mode. Respond
with a single JSON object:
{"should_continue": true|false, "confidence": 0.0, "reasoning": "...",
 "trigger_reason": "..."}`

type continueDecisionPayload struct {
	ShouldContinue bool    `json:"should_continue"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	TriggerReason  string  `json:"trigger_reason"`
}

// ContinueDecision implements agents.ContinueDecision over an llm.Client.
type ContinueDecision struct {
	Client llm.Client
}

func (c ContinueDecision) Invoke(ctx context.Context, params agents.ContinueDecisionParams) (agents.ContinueDecisionResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\nIteration number: %d\nMax automatic iterations: %d\n\nSuggested next steps:\n",
		params.Objective, params.IterationNumber, params.MaxAutoIterations)
	for _, t := range params.SuggestedNextSteps {
		fmt.Fprintf(&b, "- [%s] %s\n", t.Type, t.Objective)
	}

	var payload continueDecisionPayload
	if err := complete(ctx, c.Client, continueDecisionSystemPrompt, b.String(), 1024, &payload); err != nil {
		return agents.ContinueDecisionResult{}, err
	}
	return agents.ContinueDecisionResult{
		ShouldContinue: payload.ShouldContinue,
		Confidence:     payload.Confidence,
		Reasoning:      payload.Reasoning,
		TriggerReason:  payload.TriggerReason,
	}, nil
}
