// Package lock defines the Distributed Lock: a named mutex
// with TTL and retry, used to serialize concurrent mutation of
// ConversationState.UploadedDatasets across workers.
package lock

import (
	"context"
	"fmt"
	"time"
)

// Handle identifies a held lock so it can be released by its owner only.
type Handle struct {
	Name  string
	Token string
}

// ConversationStateLockName builds the lock name used for
// guarding concurrent ConversationState.UploadedDatasets mutation.
func ConversationStateLockName(conversationStateID string) string {
	return fmt.Sprintf("lock:conversation_state:%s", conversationStateID)
}

// Locker acquires and releases named, TTL-bounded locks. Acquire retries up
// to a caller-configured budget with linear backoff; on exhaustion it returns
// ErrAcquireTimeout so the caller fails the write explicitly rather than
// silently proceeding.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Handle, error)
	Release(ctx context.Context, h Handle) error
}

// ErrAcquireTimeout is returned when a lock could not be acquired within the
// configured retry budget.
var ErrAcquireTimeout = fmt.Errorf("lock: acquire timed out")

// RetryOptions configures the acquire retry loop shared by Locker
// implementations (default: 10 attempts, 100ms linear backoff).
type RetryOptions struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryOptions returns the package's default retry policy.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{MaxAttempts: 10, Backoff: 100 * time.Millisecond}
}
