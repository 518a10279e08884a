package worker

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Runtime owns every queue's Pool and coordinates a single graceful shutdown
// across all of them: on SIGTERM/SIGINT it drains every pool (stop reserving,
// let in-flight iterations finish) before returning.
type Runtime struct {
	pools []*Pool
}

// NewRuntime collects pools under one shutdown sequence.
func NewRuntime(pools ...*Pool) *Runtime {
	return &Runtime{pools: pools}
}

// Run starts every pool and blocks until ctx is canceled or a SIGTERM/SIGINT
// is received, then drains all pools and waits for in-flight jobs to finish.
func (r *Runtime) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	var wg sync.WaitGroup
	for _, p := range r.pools {
		p.Start(ctx, &wg)
	}

	select {
	case <-sigc:
	case <-ctx.Done():
	}

	for _, p := range r.pools {
		p.Drain()
	}
	wg.Wait()
}
