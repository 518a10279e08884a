// Package filebarrier implements the file-ready barrier the Iteration
// Executor runs before planning on an initial iteration: wait for every
// pending file-ingest job attached to a conversation state to reach a
// terminal state before proceeding.
package filebarrier

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// FileState is the ingest job's terminal or pending state.
type FileState string

const (
	FileReady   FileState = "ready"
	FileError   FileState = "error"
	FilePending FileState = "pending"
	// FileAbsent means the ingest job already completed and was reaped; the
	// barrier treats it the same as FileReady.
	FileAbsent FileState = "absent"
)

// FileStatus is one pending file's ingest state.
type FileStatus struct {
	FileID string
	State  FileState
}

// IngestQueue reports the ingest state of files attached to a conversation
// state. Implementations query the file-ingest queue (internal/queue) keyed
// by conversationStateID.
type IngestQueue interface {
	PendingFiles(ctx context.Context, conversationStateID string) ([]FileStatus, error)
}

// Options configures Wait.
type Options struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Wait polls q for the given conversation state until every attached file
// reaches FileReady, FileError, or FileAbsent, or opts.Timeout elapses.
// Files in FileError are returned in errored but do not abort the wait; the
// caller is expected to log them and exclude them from planning.
func Wait(ctx context.Context, q IngestQueue, conversationStateID string, opts Options) (errored []FileStatus, err error) {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A token-bucket limiter rather than a bare ticker paces PendingFiles
	// calls, so barrier waits across many conversations starting at once
	// don't burst the ingest queue beyond its configured poll cadence.
	limiter := rate.NewLimiter(rate.Every(poll), 1)

	var lastSeen []FileStatus
	for {
		if err := limiter.Wait(ctx); err != nil {
			return collectErrored(lastSeen), nil
		}
		files, err := q.PendingFiles(ctx, conversationStateID)
		if err != nil {
			return nil, err
		}
		lastSeen = files
		if allTerminal(files) {
			return collectErrored(files), nil
		}
	}
}

func allTerminal(files []FileStatus) bool {
	for _, f := range files {
		if f.State == FilePending {
			return false
		}
	}
	return true
}

func collectErrored(files []FileStatus) []FileStatus {
	var out []FileStatus
	for _, f := range files {
		if f.State == FileError {
			out = append(out, f)
		}
	}
	return out
}
