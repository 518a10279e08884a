// Package chain implements the Chain Controller: successor job construction
// and chain-identity bookkeeping (rootJobId propagation) plus the
// credit/payment collaborator seam the Iteration Executor calls on terminal
// success or failure. Max-depth-per-mode enforcement lives in
// config.Config.MaxAutoIterations, which the Executor consults directly; this
// package does not keep a second copy of that cap table.
package chain

import (
	"context"

	"github.com/researchlab/orchestrator/internal/domain"
)

// Credit is the collaborator the Chain Controller notifies when a chain
// reaches a terminal outcome. Implementations typically bill or refund
// against rootJobID, which is the external correlator for accounting.
type Credit interface {
	// Complete is called once, when the chain's final iteration succeeds.
	Complete(ctx context.Context, rootJobID string, iterations int) error
	// Refund is called once, when any iteration in the chain fails-final.
	Refund(ctx context.Context, rootJobID string) error
}

// NoopCredit implements Credit with no-ops, for deployments without a
// credit/payment system wired in.
type NoopCredit struct{}

func (NoopCredit) Complete(context.Context, string, int) error { return nil }
func (NoopCredit) Refund(context.Context, string) error        { return nil }

// Successor is the data needed to enqueue the next job in a chain.
type Successor struct {
	Job             domain.DeepResearchJobData
	SuccessorJobID  string // equals the successor Message id
}

// NextJob builds the successor job payload for a chain continuing past
// predecessor. successorMessageID must be the id of the newly created,
// agent-initiated Message; it doubles as the successor's job id so enqueue
// stays idempotent across retries.
func NextJob(predecessor domain.DeepResearchJobData, successorMessageID string) Successor {
	next := predecessor
	next.MessageID = successorMessageID
	next.IterationNumber = predecessor.IterationNumber + 1
	next.IsInitialIteration = false
	next.RequestedAt = predecessor.RequestedAt
	if next.RootJobID == "" {
		next.RootJobID = predecessor.MessageID
	}
	return Successor{Job: next, SuccessorJobID: successorMessageID}
}
