// Package worker implements the Worker Runtime: a concurrency-bounded poll
// loop per queue, lease-renewal heartbeating for in-flight jobs, a periodic
// stalled-job sweep, and graceful drain on SIGTERM/SIGINT.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/queue"
	"github.com/researchlab/orchestrator/internal/telemetry"
)

// Runner executes exactly one pass over a reserved job. internal/iteration.Executor
// satisfies this for the deep-research queue; other queues (chat, file-ingest,
// paper) supply their own Runner.
type Runner interface {
	Run(ctx context.Context, job domain.Job) error
}

// QueueConfig is the per-queue pool and lease policy the Worker Runtime
// applies while polling one named queue.
type QueueConfig struct {
	Name               string
	Concurrency        int
	LeaseDuration      time.Duration
	LeaseRenewal       time.Duration
	StalledSweepPeriod time.Duration
	PollInterval       time.Duration
}

// DefaultQueueConfig returns config's 30min lease / 5min renewal / 10min
// sweep defaults for a named queue at the given concurrency.
func DefaultQueueConfig(name string, concurrency int) QueueConfig {
	return QueueConfig{
		Name:               name,
		Concurrency:        concurrency,
		LeaseDuration:      30 * time.Minute,
		LeaseRenewal:       5 * time.Minute,
		StalledSweepPeriod: 10 * time.Minute,
		PollInterval:       500 * time.Millisecond,
	}
}

// Pool runs one QueueConfig's worker goroutines against a Queue, dispatching
// each reserved job to Runner and heartbeating its lease until Run returns.
type Pool struct {
	Queue   queue.Queue
	Runner  Runner
	Config  QueueConfig
	Logger  telemetry.Logger
	Metrics telemetry.Metrics

	draining chan struct{}
	once     sync.Once
}

// NewPool constructs a Pool ready to Start.
func NewPool(q queue.Queue, runner Runner, cfg QueueConfig, logger telemetry.Logger, metrics telemetry.Metrics) *Pool {
	return &Pool{
		Queue:    q,
		Runner:   runner,
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		draining: make(chan struct{}),
	}
}

// Drain stops the pool from reserving new jobs. In-flight jobs are allowed to
// run to natural completion; Start's returned wait group tracks them. Safe to
// call more than once.
func (p *Pool) Drain() {
	p.once.Do(func() { close(p.draining) })
}

func (p *Pool) isDraining() bool {
	select {
	case <-p.draining:
		return true
	default:
		return false
	}
}

// Start launches Concurrency poll-loop goroutines and a stalled-job sweep
// goroutine, registering them on wg so the caller can wait for full drain.
func (p *Pool) Start(ctx context.Context, wg *sync.WaitGroup) {
	concurrency := p.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.pollLoop(ctx)
		}()
	}

	if p.Config.StalledSweepPeriod > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.sweepLoop(ctx)
		}()
	}
}

func (p *Pool) pollLoop(ctx context.Context) {
	interval := p.Config.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if p.isDraining() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reserveAndRun(ctx)
		}
	}
}

func (p *Pool) reserveAndRun(ctx context.Context) {
	job, err := p.Queue.Reserve(ctx, p.Config.Name, p.Config.LeaseDuration)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn(ctx, "reserve failed", "queue", p.Config.Name, "err", err)
		}
		return
	}
	if job == nil {
		return
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go p.heartbeat(heartbeatCtx, job.ID)

	started := time.Now()
	if p.Logger != nil {
		p.Logger.Info(ctx, "job started", "queue", p.Config.Name, "job_id", job.ID, "attempt", job.Attempts)
	}
	err = p.Runner.Run(ctx, *job)
	if p.Metrics != nil {
		p.Metrics.RecordTimer("worker.job.duration", time.Since(started), "queue", p.Config.Name)
	}
	if err != nil && p.Logger != nil {
		p.Logger.Warn(ctx, "job run returned error", "queue", p.Config.Name, "job_id", job.ID, "attempt", job.Attempts, "err", err)
	}
}

// heartbeat renews job's lease every LeaseRenewal until ctx is canceled
// (the owning Run call returned). A 6x safety margin between renewal period
// and lease duration absorbs scheduling jitter without letting the lease lapse.
func (p *Pool) heartbeat(ctx context.Context, jobID string) {
	interval := p.Config.LeaseRenewal
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Queue.RenewLease(ctx, jobID, p.Config.LeaseDuration); err != nil && p.Logger != nil {
				p.Logger.Warn(ctx, "lease renewal failed", "queue", p.Config.Name, "job_id", jobID, "err", err)
			}
		}
	}
}

// sweepLoop periodically asks the queue for jobs whose lease expired without
// renewal (the worker that reserved them died mid-lease) and logs them; the
// Queue itself is responsible for making a stalled job reservable again.
func (p *Pool) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(p.Config.StalledSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stalled, err := p.Queue.StalledJobs(ctx, p.Config.Name)
			if err != nil {
				if p.Logger != nil {
					p.Logger.Warn(ctx, "stalled sweep failed", "queue", p.Config.Name, "err", err)
				}
				continue
			}
			if len(stalled) > 0 && p.Logger != nil {
				p.Logger.Info(ctx, "stalled jobs observed", "queue", p.Config.Name, "count", len(stalled))
			}
			if p.Metrics != nil {
				p.Metrics.RecordGauge("worker.stalled_jobs", float64(len(stalled)), "queue", p.Config.Name)
			}
		}
	}
}
