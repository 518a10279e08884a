package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/queue"
	memqueue "github.com/researchlab/orchestrator/internal/queue/memory"
)

type countingRunner struct {
	mu  sync.Mutex
	ran []string
	hook func(domain.Job)
}

func (r *countingRunner) Run(_ context.Context, job domain.Job) error {
	r.mu.Lock()
	r.ran = append(r.ran, job.ID)
	r.mu.Unlock()
	if r.hook != nil {
		r.hook(job)
	}
	return nil
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ran)
}

func TestPoolReservesAndRunsEnqueuedJob(t *testing.T) {
	q := memqueue.New()
	require.NoError(t, q.Enqueue(context.Background(), "deep-research", "job-1", domain.DeepResearchJobData{}, queue.EnqueueOptions{MaxAttempts: 3}))

	runner := &countingRunner{}
	pool := NewPool(q, runner, QueueConfig{
		Name:          "deep-research",
		Concurrency:   1,
		PollInterval:  5 * time.Millisecond,
		LeaseDuration: time.Minute,
	}, nil, nil)

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx, &wg)

	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)

	pool.Drain()
	cancel()
	wg.Wait()

	assert.Equal(t, []string{"job-1"}, runner.ran)
}

// renewSpy wraps a queue.Queue, counting RenewLease calls so the test can
// observe the heartbeat without racing on reserved-job state.
type renewSpy struct {
	queue.Queue
	mu      sync.Mutex
	renewed int
}

func (s *renewSpy) RenewLease(ctx context.Context, jobID string, extension time.Duration) error {
	s.mu.Lock()
	s.renewed++
	s.mu.Unlock()
	return s.Queue.RenewLease(ctx, jobID, extension)
}

func (s *renewSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renewed
}

func TestPoolHeartbeatsLeaseWhileRunning(t *testing.T) {
	inner := memqueue.New()
	require.NoError(t, inner.Enqueue(context.Background(), "deep-research", "job-2", domain.DeepResearchJobData{}, queue.EnqueueOptions{MaxAttempts: 3}))
	q := &renewSpy{Queue: inner}

	release := make(chan struct{})
	runner := &countingRunner{hook: func(domain.Job) { <-release }}
	pool := NewPool(q, runner, QueueConfig{
		Name:          "deep-research",
		Concurrency:   1,
		PollInterval:  5 * time.Millisecond,
		LeaseDuration: 50 * time.Millisecond,
		LeaseRenewal:  10 * time.Millisecond,
	}, nil, nil)

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx, &wg)

	require.Eventually(t, func() bool { return q.count() >= 2 }, time.Second, 5*time.Millisecond,
		"heartbeat should renew the lease repeatedly while the job is in flight")

	close(release)
	pool.Drain()
	cancel()
	wg.Wait()
}

