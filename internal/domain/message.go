package domain

import "time"

// Message is immutable once terminal: Content and ResponseTime are written
// exactly once, by the iteration that owns the message.
type Message struct {
	ID             string
	ConversationID string
	UserID         string

	// Question is empty for agent-initiated continuation messages.
	Question string
	// Content is the reply text, empty until the owning iteration writes it.
	Content string
	Summary string

	Source  string
	StateID string

	ResponseTime *time.Duration
}

// IsAgentInitiated reports whether this message was created by the Chain
// Controller as a successor rather than by a user request.
func (m *Message) IsAgentInitiated() bool { return m.Question == "" }

// IsComplete reports whether the owning iteration has written its reply.
func (m *Message) IsComplete() bool { return m.ResponseTime != nil }

// IterationStatus is the terminal status recorded on an IterationState.
type IterationStatus string

const (
	IterationRunning IterationStatus = "running"
	IterationFailed  IterationStatus = "failed"
	IterationDone    IterationStatus = "done"
)

// IterationState is the per-iteration scratch record. Source is the
// originating surface (e.g. "api", "chain"); IsDeepResearch is set true by S1
// Bootstrap.
type IterationState struct {
	ID             string
	MessageID      string
	ConversationID string
	UserID         string
	Source         string
	IsDeepResearch bool
	Status         IterationStatus
	Error          string
}
