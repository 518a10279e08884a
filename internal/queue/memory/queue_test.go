package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/queue"
)

func TestEnqueueIsIdempotentByJobID(t *testing.T) {
	q := New()
	ctx := context.Background()
	opts := queue.EnqueueOptions{MaxAttempts: 2}

	require.NoError(t, q.Enqueue(ctx, "deep-research", "job-1", domain.DeepResearchJobData{}, opts))
	require.NoError(t, q.Enqueue(ctx, "deep-research", "job-1", domain.DeepResearchJobData{}, opts))

	job, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)

	// Only one execution exists: a second reserve call finds nothing else.
	second, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestReserveIsRetryableAfterLeaseExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	q := NewWithClock(clock)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "deep-research", "job-1", domain.DeepResearchJobData{}, queue.EnqueueOptions{MaxAttempts: 2}))
	job, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)

	// Before lease expiry, no other worker can reserve it.
	none, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, none)

	// Advance past the lease deadline: the job becomes reservable again.
	now = now.Add(2 * time.Minute)
	redelivered, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
	assert.Equal(t, 2, redelivered.Attempts)
}

func TestFailRetryableRequeuesUntilMaxAttempts(t *testing.T) {
	q := New()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "deep-research", "job-1", domain.DeepResearchJobData{}, queue.EnqueueOptions{MaxAttempts: 2}))

	job, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, job.Attempts)
	require.NoError(t, q.Fail(ctx, job.ID, true))

	state, err := q.GetState(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, state)

	job2, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job2)
	require.Equal(t, 2, job2.Attempts)
	require.NoError(t, q.Fail(ctx, job2.ID, true))

	state, err = q.GetState(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailedFinal, state)
}

func TestAckIsIdempotent(t *testing.T) {
	q := New()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "deep-research", "job-1", domain.DeepResearchJobData{}, queue.EnqueueOptions{MaxAttempts: 1}))
	job, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)

	require.NoError(t, q.Ack(ctx, job.ID))
	require.NoError(t, q.Ack(ctx, job.ID)) // second ack is a no-op, not an error

	state, err := q.GetState(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, state)
}

func TestFailUsesConfiguredBaseBackoff(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	q := NewWithClock(clock)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "deep-research", "job-1", domain.DeepResearchJobData{}, queue.EnqueueOptions{
		MaxAttempts: 3,
		BaseBackoff: 5 * time.Second,
	}))

	job, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, job.ID, true))

	// Not reservable before the configured 5s backoff elapses.
	none, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, none)

	now = now.Add(5 * time.Second)
	redelivered, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
}

func TestSuccessRetentionPurgesCompletedJobAfterWindow(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	q := NewWithClock(clock)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "deep-research", "job-1", domain.DeepResearchJobData{}, queue.EnqueueOptions{
		MaxAttempts:      1,
		SuccessRetention: time.Hour,
	}))
	job, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, job.ID))

	// Still present right after completion.
	_, err = q.GetState(ctx, job.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	// Purge runs opportunistically from Enqueue.
	require.NoError(t, q.Enqueue(ctx, "deep-research", "job-2", domain.DeepResearchJobData{}, queue.EnqueueOptions{MaxAttempts: 1}))

	_, err = q.GetState(ctx, job.ID)
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestStalledJobsSurfacesExpiredReservations(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	q := NewWithClock(clock)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "deep-research", "job-1", domain.DeepResearchJobData{}, queue.EnqueueOptions{MaxAttempts: 1}))
	_, err := q.Reserve(ctx, "deep-research", time.Minute)
	require.NoError(t, err)

	stalled, err := q.StalledJobs(ctx, "deep-research")
	require.NoError(t, err)
	assert.Empty(t, stalled)

	now = now.Add(2 * time.Minute)
	stalled, err = q.StalledJobs(ctx, "deep-research")
	require.NoError(t, err)
	assert.Len(t, stalled, 1)
}
