// Package store defines the State Store Adapter: transactional
// read/modify/write access to Conversation, ConversationState, Message, and
// IterationState records. Updates are last-write-wins at the record level;
// cross-record atomicity is not required except where a single operation demands it
// (enforced by callers via internal/lock, not by this interface).
package store

import (
	"context"
	"time"

	"github.com/researchlab/orchestrator/internal/domain"
)

// Conversation is the top-level container owning Messages and one
// ConversationState.
type Conversation struct {
	ID     string
	UserID string
}

// MessageUpdate carries the fields updateMessage is allowed to write
// content, summary, response_time.
type MessageUpdate struct {
	Content      *string
	Summary      *string
	ResponseTime *time.Duration
}

// StateUpdate carries arbitrary IterationState field writes.
type StateUpdate struct {
	IsDeepResearch *bool
	Status         *domain.IterationStatus
	Error          *string
}

// ConversationStateUpdate carries a partial ConversationState write.
// PreserveUploadedDatasets, when true, tells the store to leave
// UploadedDatasets untouched even if the incoming Values has a different
// slice (used by callers that mutate datasets exclusively through
// internal/lock-guarded paths).
type ConversationStateUpdate struct {
	Values                   domain.ConversationState
	PreserveUploadedDatasets bool
}

// Store is the State Store Adapter used by the orchestrator.
type Store interface {
	GetConversation(ctx context.Context, id string) (Conversation, error)
	GetConversationState(ctx context.Context, id string) (domain.ConversationState, error)
	GetMessage(ctx context.Context, id string) (domain.Message, error)
	GetState(ctx context.Context, id string) (domain.IterationState, error)

	CreateMessage(ctx context.Context, msg domain.Message) error
	UpdateMessage(ctx context.Context, id string, update MessageUpdate) error
	UpdateState(ctx context.Context, id string, update StateUpdate) error
	UpdateConversationState(ctx context.Context, id string, update ConversationStateUpdate) error
}

// ErrNotFound is returned by Get* methods when the requested record does not
// exist. Callers in internal/iteration treat this as a non-retryable data
// error.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "record not found" }
