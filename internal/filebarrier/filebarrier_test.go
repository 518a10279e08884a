package filebarrier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngestQueue struct {
	mu    sync.Mutex
	polls int
	seq   [][]FileStatus
}

func (q *fakeIngestQueue) PendingFiles(context.Context, string) ([]FileStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.polls
	if idx >= len(q.seq) {
		idx = len(q.seq) - 1
	}
	q.polls++
	return q.seq[idx], nil
}

func TestWaitReturnsOnceAllFilesReachTerminalState(t *testing.T) {
	q := &fakeIngestQueue{seq: [][]FileStatus{
		{{FileID: "f1", State: FilePending}},
		{{FileID: "f1", State: FileReady}},
	}}
	errored, err := Wait(context.Background(), q, "cs-1", Options{PollInterval: time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)
	assert.Empty(t, errored)
}

func TestWaitCollectsErroredFilesWithoutFailing(t *testing.T) {
	q := &fakeIngestQueue{seq: [][]FileStatus{
		{{FileID: "f1", State: FileError}, {FileID: "f2", State: FileReady}},
	}}
	errored, err := Wait(context.Background(), q, "cs-1", Options{PollInterval: time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, "f1", errored[0].FileID)
}

func TestWaitStopsAtTimeoutWithoutError(t *testing.T) {
	q := &fakeIngestQueue{seq: [][]FileStatus{
		{{FileID: "f1", State: FilePending}},
	}}
	errored, err := Wait(context.Background(), q, "cs-1", Options{PollInterval: time.Millisecond, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.Empty(t, errored)
}

func TestWaitPropagatesQueueError(t *testing.T) {
	q := &erroringIngestQueue{}
	_, err := Wait(context.Background(), q, "cs-1", Options{PollInterval: time.Millisecond, Timeout: time.Second})
	require.Error(t, err)
}

type erroringIngestQueue struct{}

func (erroringIngestQueue) PendingFiles(context.Context, string) ([]FileStatus, error) {
	return nil, assertErr("ingest queue unreachable")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
