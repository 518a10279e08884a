package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchlab/orchestrator/internal/agents"
	"github.com/researchlab/orchestrator/internal/agents/llm"
	"github.com/researchlab/orchestrator/internal/domain"
)

type fakeLLM struct {
	text string
	err  error
}

func (f fakeLLM) Complete(context.Context, llm.Request) (llm.Response, error) {
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Text: f.text}, nil
}

func TestExtractJSONToleratesSurroundingProse(t *testing.T) {
	text := "Sure, here is my answer:\n{\"a\": 1, \"b\": [1,2,3]}\nHope that helps!"
	assert.Equal(t, `{"a": 1, "b": [1,2,3]}`, extractJSON(text))
}

func TestExtractJSONReturnsEmptyWithoutPayload(t *testing.T) {
	assert.Equal(t, "", extractJSON("no json here"))
}

func TestContinueDecisionParsesModelResponse(t *testing.T) {
	llmc := fakeLLM{text: `{"should_continue": true, "confidence": 0.8, "reasoning": "more to learn", "trigger_reason": "next-steps"}`}
	cap := ContinueDecision{Client: llmc}

	result, err := cap.Invoke(context.Background(), agents.ContinueDecisionParams{
		Objective:         "study X",
		IterationNumber:   2,
		MaxAutoIterations: 5,
	})
	require.NoError(t, err)
	assert.True(t, result.ShouldContinue)
	assert.Equal(t, 0.8, result.Confidence)
	assert.Equal(t, "more to learn", result.Reasoning)
}

func TestPlanningAssignsNextLevelAboveExistingTasks(t *testing.T) {
	llmc := fakeLLM{text: `{"tasks": [{"type": "LITERATURE", "objective": "find refs"}], "current_objective": "study X"}`}
	cap := Planning{Client: llmc}

	result, err := cap.Invoke(context.Background(), agents.PlanningParams{
		Objective: "study X",
		Plan: []domain.PlanTask{
			{ID: domain.TaskID(domain.TaskLiterature, 0), Type: domain.TaskLiterature, Level: 0, Objective: "initial pass"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Plan, 1)
	assert.Equal(t, 1, result.Plan[0].Level)
	assert.Equal(t, "study X", result.CurrentObjective)
}
