package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/researchlab/orchestrator/internal/agents"
	"github.com/researchlab/orchestrator/internal/agents/llm"
)

const replySystemPrompt = `You compose the user-facing reply for one iteration of a multi-agent deep
research system. Write in clear prose, citing the hypothesis and the tasks
completed this session. If this is the final iteration in the chain, close
with an overall summary. Respond with a single JSON object:
{"reply": "...", "summary": "..."}`

type replyPayload struct {
	Reply   string `json:"reply"`
	Summary string `json:"summary"`
}

// Reply implements agents.Reply over an llm.Client.
type Reply struct {
	Client llm.Client
}

func (r Reply) Invoke(ctx context.Context, params agents.ReplyParams) (agents.ReplyResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\nHypothesis: %s\nFinal iteration: %v\n\nTasks this session:\n",
		params.Objective, params.Hypothesis, params.IsFinal)
	for _, t := range params.SessionTasks {
		fmt.Fprintf(&b, "- [%s] %s\n", t.Type, t.Objective)
	}

	var payload replyPayload
	if err := complete(ctx, r.Client, replySystemPrompt, b.String(), 2048, &payload); err != nil {
		return agents.ReplyResult{}, err
	}
	return agents.ReplyResult{Reply: payload.Reply, Summary: payload.Summary}, nil
}
