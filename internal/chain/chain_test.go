package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchlab/orchestrator/internal/domain"
)

func TestNextJobIncrementsIterationAndPreservesRootJobID(t *testing.T) {
	predecessor := domain.DeepResearchJobData{
		MessageID:       "msg-1",
		IterationNumber: 1,
		RootJobID:       "msg-0",
	}
	successor := NextJob(predecessor, "msg-2")

	assert.Equal(t, "msg-2", successor.Job.MessageID)
	assert.Equal(t, "msg-2", successor.SuccessorJobID)
	assert.Equal(t, 2, successor.Job.IterationNumber)
	assert.False(t, successor.Job.IsInitialIteration)
	assert.Equal(t, "msg-0", successor.Job.RootJobID)
}

func TestNextJobDefaultsRootJobIDToPredecessorMessage(t *testing.T) {
	predecessor := domain.DeepResearchJobData{MessageID: "msg-1", IterationNumber: 1}
	successor := NextJob(predecessor, "msg-2")
	assert.Equal(t, "msg-1", successor.Job.RootJobID)
}

func TestNoopCreditIsANoop(t *testing.T) {
	var c Credit = NoopCredit{}
	require.NoError(t, c.Complete(context.Background(), "root-1", 3))
	require.NoError(t, c.Refund(context.Background(), "root-1"))
}
