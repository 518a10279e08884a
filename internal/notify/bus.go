// Package notify defines the Notification Bus: a best-effort
// publish/subscribe fan-out of progress events scoped to a conversation
// channel.
package notify

import (
	"context"
	"time"
)

// EventType is one of the closed set of recognized event kinds.
type EventType string

const (
	EventJobStarted      EventType = "job:started"
	EventJobProgress     EventType = "job:progress"
	EventJobCompleted    EventType = "job:completed"
	EventJobFailed       EventType = "job:failed"
	EventMessageUpdated  EventType = "message:updated"
	EventStateUpdated    EventType = "state:updated"
	EventFileReady       EventType = "file:ready"
	EventFileError       EventType = "file:error"
	EventPaperStarted    EventType = "paper:started"
	EventPaperProgress   EventType = "paper:progress"
	EventPaperCompleted  EventType = "paper:completed"
	EventPaperFailed     EventType = "paper:failed"
)

// Progress reports a stage name and completion percentage, as published
// through each stage of the Iteration Executor.
type Progress struct {
	Stage   string
	Percent int
}

// Event is a small tagged record published on a conversation channel.
type Event struct {
	Type           EventType
	JobID          string
	ConversationID string
	MessageID      string
	StateID        string
	FileID         string
	PaperID        string
	Progress       *Progress
	Error          string
	Description    string
	PublishedAt    time.Time
}

// Channel returns the canonical channel name for a conversation.
func Channel(conversationID string) string {
	return "conversation:" + conversationID
}

// Bus publishes events and hands subscribers a stream of events for a
// channel. Publication is best-effort: failures are logged by the caller and
// never fail the owning job.
type Bus interface {
	Publish(ctx context.Context, channel string, event Event) error
	Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error)
}
