// Package memory implements queue.Queue in-process. It is the reference
// implementation exercised by its own and the Worker Runtime test suites
// (the Iteration Executor tests use their own fake; the Temporal adapter in internal/queue/temporal implements the same
// contract against a real cluster).
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/queue"
)

type record struct {
	job        domain.Job
	readyAt    time.Time // not reservable before this time (backoff delay)
	retainTill time.Time // record purged after this time once terminal; zero means never purged

	baseBackoff      time.Duration // per-queue base delay from EnqueueOptions, applied in Fail
	successRetention time.Duration
	failureRetention time.Duration
}

// Queue is a goroutine-safe, in-memory queue.Queue.
type Queue struct {
	mu      sync.Mutex
	records map[string]*record // jobID -> record
	clock   func() time.Time
}

// New constructs an empty in-memory Queue.
func New() *Queue {
	return &Queue{records: map[string]*record{}, clock: time.Now}
}

// NewWithClock constructs a Queue using a custom clock, for deterministic
// lease/backoff tests.
func NewWithClock(clock func() time.Time) *Queue {
	return &Queue{records: map[string]*record{}, clock: clock}
}

func (q *Queue) Enqueue(_ context.Context, queueName, jobID string, payload domain.DeepResearchJobData, opts queue.EnqueueOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	q.purgeExpiredLocked(now)

	if existing, ok := q.records[jobID]; ok {
		if existing.job.State != domain.JobCompleted && existing.job.State != domain.JobFailedFinal {
			return nil // idempotent no-op: non-terminal job with this id exists
		}
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseBackoff := opts.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = baseBackoffUnit
	}
	q.records[jobID] = &record{
		job: domain.Job{
			ID:          jobID,
			QueueName:   queueName,
			Payload:     payload,
			MaxAttempts: maxAttempts,
			State:       domain.JobPending,
		},
		readyAt:          now,
		baseBackoff:      baseBackoff,
		successRetention: opts.SuccessRetention,
		failureRetention: opts.FailureRetention,
	}
	return nil
}

func (q *Queue) Reserve(_ context.Context, queueName string, leaseDuration time.Duration) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	q.expireStaleLeasesLocked(now)

	var best *record
	for _, r := range q.records {
		if r.job.QueueName != queueName || r.job.State != domain.JobPending {
			continue
		}
		if r.readyAt.After(now) {
			continue
		}
		if best == nil || r.readyAt.Before(best.readyAt) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	best.job.State = domain.JobReserved
	best.job.Attempts++
	best.job.Lease = domain.Lease{Owner: uuid.NewString(), Deadline: now.Add(leaseDuration)}
	cp := best.job
	return &cp, nil
}

func (q *Queue) RenewLease(_ context.Context, jobID string, extension time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.records[jobID]
	if !ok {
		return queue.ErrNotFound
	}
	now := q.clock()
	if r.job.State != domain.JobReserved || r.job.Lease.Expired(now) {
		return queue.ErrLeaseLost
	}
	r.job.Lease.Deadline = now.Add(extension)
	return nil
}

func (q *Queue) Ack(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.records[jobID]
	if !ok {
		return queue.ErrNotFound
	}
	if r.job.State == domain.JobCompleted {
		return nil // idempotent: ack may be attempted more than once
	}
	r.job.State = domain.JobCompleted
	if r.successRetention > 0 {
		r.retainTill = q.clock().Add(r.successRetention)
	}
	return nil
}

func (q *Queue) Fail(_ context.Context, jobID string, retryable bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.records[jobID]
	if !ok {
		return queue.ErrNotFound
	}
	if !retryable || r.job.Attempts >= r.job.MaxAttempts {
		r.job.State = domain.JobFailedFinal
		if r.failureRetention > 0 {
			r.retainTill = q.clock().Add(r.failureRetention)
		}
		return nil
	}
	r.job.State = domain.JobFailedRetrying
	// exponential backoff: per-queue base (from EnqueueOptions.BaseBackoff) * 2^(attempts-1)
	backoff := time.Duration(1) << uint(r.job.Attempts-1)
	r.readyAt = q.clock().Add(backoff * r.baseBackoff)
	r.job.State = domain.JobPending
	return nil
}

// baseBackoffUnit is the fallback base delay used when a caller enqueues
// without setting EnqueueOptions.BaseBackoff.
const baseBackoffUnit = 1 * time.Second

// purgeExpiredLocked drops terminal records past their configured retention
// window (EnqueueOptions.SuccessRetention/FailureRetention, recorded on
// Ack/Fail as retainTill). Records with a zero retainTill are kept
// indefinitely. Called opportunistically from Enqueue so the map doesn't
// grow unbounded across a long-running worker without a dedicated sweep
// goroutine.
func (q *Queue) purgeExpiredLocked(now time.Time) {
	for id, r := range q.records {
		if r.retainTill.IsZero() || now.Before(r.retainTill) {
			continue
		}
		if r.job.State == domain.JobCompleted || r.job.State == domain.JobFailedFinal {
			delete(q.records, id)
		}
	}
}

func (q *Queue) GetState(_ context.Context, jobID string) (domain.JobState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.records[jobID]
	if !ok {
		return "", queue.ErrNotFound
	}
	return r.job.State, nil
}

func (q *Queue) StalledJobs(_ context.Context, queueName string) ([]domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	var out []domain.Job
	for _, r := range q.records {
		if r.job.QueueName == queueName && r.job.State == domain.JobReserved && r.job.Lease.Expired(now) {
			out = append(out, r.job)
		}
	}
	return out, nil
}

// expireStaleLeasesLocked flips reserved jobs whose lease has expired back
// to pending, making them reservable again.
func (q *Queue) expireStaleLeasesLocked(now time.Time) {
	for _, r := range q.records {
		if r.job.State == domain.JobReserved && r.job.Lease.Expired(now) {
			r.job.State = domain.JobPending
			r.readyAt = now
		}
	}
}
