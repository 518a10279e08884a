package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/researchlab/orchestrator/internal/domain"
)

func TestDefaultDiscoveryGateRequiresCompletedTaskThisFanOut(t *testing.T) {
	gate := DiscoveryGate(DefaultDiscoveryGate)
	assert.False(t, gate(DiscoveryContext{
		Plan:          []domain.PlanTask{{Level: 2}},
		JustCompleted: nil,
	}))
}

func TestDefaultDiscoveryGateSkipsFirstLevel(t *testing.T) {
	assert.False(t, DefaultDiscoveryGate(DiscoveryContext{
		Plan:          []domain.PlanTask{{Level: 0}},
		JustCompleted: []domain.PlanTask{{Level: 0}},
	}))
}

func TestDefaultDiscoveryGateRunsPastFirstLevel(t *testing.T) {
	assert.True(t, DefaultDiscoveryGate(DiscoveryContext{
		Plan:          []domain.PlanTask{{Level: 0}, {Level: 1}},
		JustCompleted: []domain.PlanTask{{Level: 1}},
	}))
}
