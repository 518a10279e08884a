package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/researchlab/orchestrator/internal/agents"
	"github.com/researchlab/orchestrator/internal/agents/llm"
)

const discoverySystemPrompt = `You surface cross-cutting discoveries in a multi-agent deep research system:
connections between tasks that a single task's output would not reveal on its
own. Respond with a single JSON object: {"discoveries": "..."}`

type discoveryPayload struct {
	Discoveries string `json:"discoveries"`
}

// Discovery implements agents.Discovery over an llm.Client.
type Discovery struct {
	Client llm.Client
}

func (d Discovery) Invoke(ctx context.Context, params agents.DiscoveryParams) (agents.DiscoveryResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n\nCompleted tasks:\n", params.Objective)
	for _, t := range params.Plan {
		if !t.Done() {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n  Output: %s\n", t.Type, t.Objective, t.Output)
	}

	var payload discoveryPayload
	if err := complete(ctx, d.Client, discoverySystemPrompt, b.String(), 1024, &payload); err != nil {
		return agents.DiscoveryResult{}, err
	}
	return agents.DiscoveryResult{Discoveries: payload.Discoveries}, nil
}
