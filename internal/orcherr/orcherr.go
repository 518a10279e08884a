// Package orcherr classifies orchestrator failures into four kinds:
// transient, data, agent, and capacity. The queue's retry policy and the
// Iteration Executor both consult Kind to decide whether a failure is
// retryable.
package orcherr

import "errors"

// Kind is one of the four recognized error classes.
type Kind string

const (
	// Transient covers timeouts, lock contention, and transport errors. Retryable.
	Transient Kind = "transient"
	// Data covers missing Message/ConversationState/IterationState records.
	// Non-retryable: fail-final immediately.
	Data Kind = "data"
	// Agent covers an agent returning an error payload. Retryable for the
	// enclosing iteration, except in S3 where it is absorbed into task output.
	Agent Kind = "agent"
	// Capacity covers queue rejection. Retryable.
	Capacity Kind = "capacity"
)

// Error wraps an underlying cause with a Kind and the identifying context a
// log line needs (job id, iteration number, message id, attempt count).
type Error struct {
	Kind      Kind
	JobID     string
	Iteration int
	MessageID string
	Attempt   int
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the queue should schedule another attempt.
// Data errors are the only non-retryable kind.
func (e *Error) Retryable() bool { return e.Kind != Data }

// New builds an Error of the given kind wrapping err.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// WithContext returns a copy of e annotated with job/iteration/message/attempt,
// as required for intermediate-failure log lines.
func (e *Error) WithContext(jobID string, iteration int, messageID string, attempt int) *Error {
	cp := *e
	cp.JobID = jobID
	cp.Iteration = iteration
	cp.MessageID = messageID
	cp.Attempt = attempt
	return &cp
}

// KindOf extracts the Kind of err if it (or something it wraps) is an *Error,
// defaulting to Transient for unclassified errors so unexpected failures are
// retried rather than silently dropped.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return Transient
}

// Retryable reports whether err should be retried by the queue.
func Retryable(err error) bool {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Retryable()
	}
	return true
}

// IsData reports whether err is a non-retryable data error (missing record).
func IsData(err error) bool { return KindOf(err) == Data }
