// Package redislock implements lock.Locker as a Redis SET-if-absent with TTL.
// The same Redis connection that backs the Pulse notification bus can back
// this lock.
package redislock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/researchlab/orchestrator/internal/lock"
)

// releaseScript deletes the key only if the value still matches the token
// this holder set, so a lock cannot be released by a different owner after
// its TTL expired and was re-acquired.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// Options configures the Redis-backed Locker.
type Options struct {
	// Client is the Redis connection used for lock keys. Required.
	Client *redis.Client
	// Retry controls the acquire retry loop. Defaults to lock.DefaultRetryOptions().
	Retry lock.RetryOptions
}

// Locker implements lock.Locker over Redis.
type Locker struct {
	client *redis.Client
	retry  lock.RetryOptions
}

// New constructs a Redis-backed Locker.
func New(opts Options) (*Locker, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	retry := opts.Retry
	if retry.MaxAttempts <= 0 {
		retry = lock.DefaultRetryOptions()
	}
	return &Locker{client: opts.Client, retry: retry}, nil
}

// Acquire retries SET NX up to Retry.MaxAttempts times with linear backoff,
// returning lock.ErrAcquireTimeout if the budget is exhausted.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (lock.Handle, error) {
	token := uuid.NewString()
	for attempt := 0; attempt < l.retry.MaxAttempts; attempt++ {
		ok, err := l.client.SetNX(ctx, name, token, ttl).Result()
		if err != nil {
			return lock.Handle{}, err
		}
		if ok {
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

// Release deletes the lock key only if it is still held by h's token.
func (l *Locker) Release(ctx context.Context, h lock.Handle) error {
	return l.client.Eval(ctx, releaseScript, []string{h.Name}, h.Token).Err()
}
