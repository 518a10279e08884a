// Package memory implements lock.Locker in-process for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/researchlab/orchestrator/internal/lock"
)

type entry struct {
	token   string
	expires time.Time
}

// Locker is a goroutine-safe in-memory lock.Locker.
type Locker struct {
	mu    sync.Mutex
	held  map[string]entry
	retry lock.RetryOptions
}

// New constructs an in-memory Locker using the given retry budget.
func New(retry lock.RetryOptions) *Locker {
	if retry.MaxAttempts <= 0 {
		retry = lock.DefaultRetryOptions()
	}
	return &Locker{held: map[string]entry{}, retry: retry}
}

func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (lock.Handle, error) {
	token := uuid.NewString()
	for attempt := 0; attempt < l.retry.MaxAttempts; attempt++ {
		if l.tryAcquire(name, token, ttl) {
			return lock.Handle{Name: name, Token: token}, nil
		}
		select {
		case <-ctx.Done():
			return lock.Handle{}, ctx.Err()
		case <-time.After(l.retry.Backoff * time.Duration(attempt+1)):
		}
	}
	return lock.Handle{}, lock.ErrAcquireTimeout
}

func (l *Locker) tryAcquire(name, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if e, ok := l.held[name]; ok && e.expires.After(now) {
		return false
	}
	l.held[name] = entry{token: token, expires: now.Add(ttl)}
	return true
}

func (l *Locker) Release(_ context.Context, h lock.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.held[h.Name]; ok && e.token == h.Token {
		delete(l.held, h.Name)
	}
	return nil
}
