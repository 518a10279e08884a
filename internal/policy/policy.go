// Package policy holds the small decision functions the Iteration Executor
// delegates to a deployment rather than hard-coding: the discovery gate. The
// per-mode automatic-iteration cap lives in config.Config.MaxAutoIterations.
package policy

import "github.com/researchlab/orchestrator/internal/domain"

// DiscoveryContext is the input to a DiscoveryGate decision.
type DiscoveryContext struct {
	ConversationMessageCount int
	Plan                     []domain.PlanTask
	JustCompleted            []domain.PlanTask
}

// DiscoveryGate decides whether the Discovery agent should run this
// iteration. It is a parameter of the deployment, not a fixed rule: different
// deployments may gate on message count, plan shape, or something else
// entirely.
type DiscoveryGate func(DiscoveryContext) bool

// DefaultDiscoveryGate runs discovery once the plan has reached level 1 or
// higher and at least one task completed this fan-out, avoiding a discovery
// call on a conversation's very first level (level 0).
func DefaultDiscoveryGate(c DiscoveryContext) bool {
	if len(c.JustCompleted) == 0 {
		return false
	}
	maxLevel := -1
	for _, t := range c.Plan {
		if t.Level > maxLevel {
			maxLevel = t.Level
		}
	}
	return maxLevel >= 1
}
