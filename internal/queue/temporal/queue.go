// Package temporal implements queue.Queue using Temporal as the durable
// execution backend: one Temporal workflow execution per job, keyed by job id
// so Temporal's own "already running" rejection gives Enqueue its
// idempotency. RenewLease maps to a Temporal activity heartbeat.
package temporal

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/orcherr"
	"github.com/researchlab/orchestrator/internal/queue"
)

// IterationRunner performs one Iteration Executor pass. It is
// registered as the Temporal activity invoked by every job's workflow.
type IterationRunner func(ctx context.Context, payload domain.DeepResearchJobData) error

// Options configures the Temporal-backed Queue.
type Options struct {
	// Client is a connected Temporal client. Required.
	Client client.Client
	// TaskQueue is the Temporal task queue workers poll. Required.
	TaskQueue string
	// Runner executes one iteration when the activity is invoked.
	Runner IterationRunner
	// WorkerOptions configures the underlying Temporal worker (concurrency etc).
	WorkerOptions worker.Options
}

// Queue implements queue.Queue over Temporal.
type Queue struct {
	client    client.Client
	taskQueue string
	runner    IterationRunner
	worker    worker.Worker
}

const (
	workflowName = "DeepResearchIterationWorkflow"
	activityName = "RunDeepResearchIteration"
)

// New constructs a Temporal-backed Queue and registers its workflow/activity
// with a worker on opts.TaskQueue. Callers must still call Worker().Start/Run.
func New(opts Options) (*Queue, error) {
	if opts.Client == nil {
		return nil, errors.New("temporal client is required")
	}
	if opts.TaskQueue == "" {
		return nil, errors.New("task queue is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("iteration runner is required")
	}
	q := &Queue{client: opts.Client, taskQueue: opts.TaskQueue, runner: opts.Runner}
	w := worker.New(opts.Client, opts.TaskQueue, opts.WorkerOptions)
	w.RegisterWorkflowWithOptions(iterationWorkflow, workflow.RegisterOptions{Name: workflowName})
	w.RegisterActivityWithOptions(q.runActivity, activity.RegisterOptions{Name: activityName})
	q.worker = w
	return q, nil
}

// Worker returns the underlying Temporal worker so the caller can run it
// (cmd/worker runs it directly; the Worker Runtime's Pool is not used with
// this backend).
func (q *Queue) Worker() worker.Worker { return q.worker }

// Enqueue starts one workflow execution per job id. A duplicate StartWorkflow
// for a still-running execution returns a WorkflowExecutionAlreadyStarted
// error from Temporal, which Enqueue treats as the idempotent no-op success
// the Durable Queue Client contract requires.
func (q *Queue) Enqueue(ctx context.Context, queueName, jobID string, payload domain.DeepResearchJobData, opts queue.EnqueueOptions) error {
	retry := &temporal.RetryPolicy{
		MaximumAttempts:    int32(maxInt(opts.MaxAttempts, 1)),
		InitialInterval:    maxDuration(opts.BaseBackoff, time.Second),
		BackoffCoefficient: 2.0,
	}
	_, err := q.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    jobID,
		TaskQueue:             queueName,
		WorkflowExecutionTimeout: opts.FailureRetention,
		RetryPolicy:           retry,
	}, workflowName, payload)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}

// Reserve has no meaning against Temporal: job dispatch is the worker pool's
// own task-queue polling, driven by q.worker. It is implemented to satisfy
// queue.Queue for callers that treat every backend uniformly, but always
// returns (nil, nil); the Worker Runtime must not poll a Temporal-backed Queue.
func (q *Queue) Reserve(context.Context, string, time.Duration) (*domain.Job, error) {
	return nil, nil
}

// RenewLease is a no-op for Temporal: runActivity calls
// activity.RecordHeartbeat every minute while the iteration runs, which plays
// the equivalent role against the workflow's HeartbeatTimeout.
func (q *Queue) RenewLease(context.Context, string, time.Duration) error { return nil }

// Ack is a no-op: a Temporal activity/workflow completing successfully is
// itself the acknowledgement.
func (q *Queue) Ack(context.Context, string) error { return nil }

// Fail is a no-op: returning an error from runActivity drives Temporal's
// configured RetryPolicy directly.
func (q *Queue) Fail(context.Context, string, bool) error { return nil }

// GetState maps a job id onto its workflow execution's status via Temporal's
// visibility API.
func (q *Queue) GetState(ctx context.Context, jobID string) (domain.JobState, error) {
	desc, err := q.client.DescribeWorkflowExecution(ctx, jobID, "")
	if err != nil {
		return "", queue.ErrNotFound
	}
	status := desc.GetWorkflowExecutionInfo().GetStatus()
	switch status.String() {
	case "Completed":
		return domain.JobCompleted, nil
	case "Failed", "Terminated", "TimedOut":
		return domain.JobFailedFinal, nil
	case "Running", "ContinuedAsNew":
		return domain.JobReserved, nil
	default:
		return domain.JobPending, nil
	}
}

// StalledJobs is unsupported: Temporal's own task-queue backlog and workflow
// task timeout already provide stalled-worker protection, so there is
// nothing extra to surface here.
func (q *Queue) StalledJobs(context.Context, string) ([]domain.Job, error) {
	return nil, nil
}

// iterationWorkflow is the deterministic workflow body: it schedules exactly
// one activity (RunDeepResearchIteration) and returns its result.
func iterationWorkflow(ctx workflow.Context, payload domain.DeepResearchJobData) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    5 * time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	return workflow.ExecuteActivity(ctx, activityName, payload).Get(ctx, nil)
}

// runActivity wraps the Iteration Executor's result so Temporal's own
// RetryPolicy (built from EnqueueOptions.MaxAttempts in Enqueue) only retries
// errors orcherr classifies as retryable; a non-retryable orcherr.Data
// failure fails the activity on the first attempt instead of being retried
// up to MaxAttempts.
func (q *Queue) runActivity(ctx context.Context, payload domain.DeepResearchJobData) error {
	const heartbeatInterval = time.Minute
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	err := q.runner(ctx, payload)
	if err == nil || orcherr.Retryable(err) {
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), "NonRetryable", err)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
