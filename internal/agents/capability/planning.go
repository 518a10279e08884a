package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/researchlab/orchestrator/internal/agents"
	"github.com/researchlab/orchestrator/internal/agents/llm"
	"github.com/researchlab/orchestrator/internal/domain"
)

const planningSystemPrompt = `You are the planning stage of a multi-agent deep research system.
Given a research objective and the tasks already attempted, propose the next
cohort of literature and analysis tasks. Respond with a single JSON object:
{"tasks": [{"type": "LITERATURE"|"ANALYSIS", "objective": "...", "datasets": ["..."]}],
 "current_objective": "..."}
Only include "datasets" for ANALYSIS tasks, referencing the uploaded dataset
filenames provided. Do not include commentary outside the JSON object.`

type planningTask struct {
	Type      string   `json:"type"`
	Objective string   `json:"objective"`
	Datasets  []string `json:"datasets"`
}

type planningPayload struct {
	Tasks            []planningTask `json:"tasks"`
	CurrentObjective string         `json:"current_objective"`
}

// Planning implements agents.Planning over an llm.Client.
type Planning struct {
	Client llm.Client
}

func (p Planning) Invoke(ctx context.Context, params agents.PlanningParams) (agents.PlanningResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n", params.Objective)
	if params.CurrentObjective != "" {
		fmt.Fprintf(&b, "Current objective: %s\n", params.CurrentObjective)
	}
	if len(params.Plan) > 0 {
		b.WriteString("Existing tasks:\n")
		for _, t := range params.Plan {
			fmt.Fprintf(&b, "- [%s] level %d: %s\n", t.Type, t.Level, t.Objective)
		}
	}
	if len(params.Datasets) > 0 {
		b.WriteString("Uploaded datasets:\n")
		for _, d := range params.Datasets {
			fmt.Fprintf(&b, "- %s\n", d.Filename)
		}
	}
	fmt.Fprintf(&b, "Mode: %s\n", params.Mode)

	var payload planningPayload
	if err := complete(ctx, p.Client, planningSystemPrompt, b.String(), 2048, &payload); err != nil {
		return agents.PlanningResult{}, err
	}

	level := nextLevel(params.Plan)
	tasks := make([]domain.PlanTask, 0, len(payload.Tasks))
	for _, t := range payload.Tasks {
		taskType := domain.TaskLiterature
		if strings.EqualFold(t.Type, string(domain.TaskAnalysis)) {
			taskType = domain.TaskAnalysis
		}
		tasks = append(tasks, domain.PlanTask{
			ID:        domain.TaskID(taskType, level),
			Type:      taskType,
			Level:     level,
			Objective: t.Objective,
			Datasets:  t.Datasets,
		})
	}
	return agents.PlanningResult{Plan: tasks, CurrentObjective: payload.CurrentObjective}, nil
}

func nextLevel(plan []domain.PlanTask) int {
	max := -1
	for _, t := range plan {
		if t.Level > max {
			max = t.Level
		}
	}
	return max + 1
}
