package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/researchlab/orchestrator/internal/agents"
	"github.com/researchlab/orchestrator/internal/agents/llm"
)

const reflectionSystemPrompt = `You are the reflection stage of a multi-agent deep research system.
Given the objective, the current hypothesis, and completed tasks, produce
insights, a methodology summary, and a short conversation title. Only set
"objective" in your response when the research direction fundamentally needs
reframing; leave it empty the overwhelming majority of the time. Respond with
a single JSON object:
{"objective": "", "conversation_title": "...", "current_objective": "...",
 "key_insights": "...", "methodology": "..."}`

type reflectionPayload struct {
	Objective         string `json:"objective"`
	ConversationTitle string `json:"conversation_title"`
	CurrentObjective  string `json:"current_objective"`
	KeyInsights       string `json:"key_insights"`
	Methodology       string `json:"methodology"`
}

// Reflection implements agents.Reflection over an llm.Client.
type Reflection struct {
	Client llm.Client
}

func (r Reflection) Invoke(ctx context.Context, params agents.ReflectionParams) (agents.ReflectionResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\nHypothesis: %s\n\nCompleted tasks:\n", params.Objective, params.Hypothesis)
	for _, t := range params.Plan {
		if !t.Done() {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n", t.Type, t.Objective)
	}

	var payload reflectionPayload
	if err := complete(ctx, r.Client, reflectionSystemPrompt, b.String(), 2048, &payload); err != nil {
		return agents.ReflectionResult{}, err
	}
	return agents.ReflectionResult{
		Objective:         payload.Objective,
		ConversationTitle: payload.ConversationTitle,
		CurrentObjective:  payload.CurrentObjective,
		KeyInsights:       payload.KeyInsights,
		Methodology:       payload.Methodology,
	}, nil
}
