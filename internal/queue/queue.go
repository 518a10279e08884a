// Package queue defines the Durable Queue Client: at-least-once
// enqueue/reserve/ack/retry/lease-renew on a named queue. Enqueue with a
// caller-supplied job id is idempotent: a non-terminal job with that id makes
// the call a no-op.
package queue

import (
	"context"
	"time"

	"github.com/researchlab/orchestrator/internal/domain"
)

// EnqueueOptions carries the per-queue policy applied at enqueue time.
type EnqueueOptions struct {
	MaxAttempts      int
	BaseBackoff      time.Duration
	SuccessRetention time.Duration
	FailureRetention time.Duration
}

// Queue is the Durable Queue Client contract used by the Worker Runtime and
// Chain Controller.
type Queue interface {
	// Enqueue schedules payload under jobID on queueName. If a non-terminal
	// job with jobID already exists, Enqueue is a no-op returning nil
	// enqueue is idempotent by jobId.
	Enqueue(ctx context.Context, queueName, jobID string, payload domain.DeepResearchJobData, opts EnqueueOptions) error

	// Reserve atomically claims the next available job on queueName for
	// leaseDuration, or returns (nil, nil) if none is available. A reserved
	// job becomes re-reservable once its lease expires without renewal.
	Reserve(ctx context.Context, queueName string, leaseDuration time.Duration) (*domain.Job, error)

	// RenewLease extends a reserved job's lease by extension. Must be safe to
	// call repeatedly and to race with lease expiry (a renewal on an already
	// expired/re-reserved job returns ErrLeaseLost).
	RenewLease(ctx context.Context, jobID string, extension time.Duration) error

	// Ack marks jobID completed. Idempotent: acking an already-completed job
	// is a no-op: completion hooks may be attempted more than once.
	Ack(ctx context.Context, jobID string) error

	// Fail records a failed attempt. If retryable and attempts remain under
	// the job's MaxAttempts, the job becomes reservable again after backoff;
	// otherwise it moves to failed-final.
	Fail(ctx context.Context, jobID string, retryable bool) error

	// GetState reports a job's current lifecycle state.
	GetState(ctx context.Context, jobID string) (domain.JobState, error)

	// StalledJobs returns reserved jobs whose lease has expired without
	// renewal, for the periodic stalled-job sweep.
	StalledJobs(ctx context.Context, queueName string) ([]domain.Job, error)
}

// ErrLeaseLost is returned by RenewLease when the job's lease already expired
// and was (or could be) claimed by another worker.
var ErrLeaseLost = leaseLostError{}

type leaseLostError struct{}

func (leaseLostError) Error() string { return "queue: lease lost" }

// ErrNotFound is returned when an operation references an unknown job id.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "queue: job not found" }
