// Package ingest implements the dataset-ingest-completion handler: the call
// path that applies a finished file-ingest job's Dataset to the owning
// ConversationState. Multiple file-ingest completions for the same
// conversation can race, so the mutation is serialized through the
// Distributed Lock (internal/lock) rather than written directly.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/lock"
	"github.com/researchlab/orchestrator/internal/notify"
	"github.com/researchlab/orchestrator/internal/store"
)

// Handler applies dataset-ready completions to the ConversationState they
// belong to. It is the only writer of ConversationState.UploadedDatasets.
type Handler struct {
	Store   store.Store
	Locker  lock.Locker
	Notify  notify.Bus
	LockTTL time.Duration
}

// HandleDatasetReady acquires lock:conversation_state:<conversationStateID>,
// inserts or replaces dataset in UploadedDatasets, persists the state, and
// releases the lock. Returns lock.ErrAcquireTimeout if the lock's retry
// budget is exhausted, per §4.4's "fail the write explicitly" contract.
func (h *Handler) HandleDatasetReady(ctx context.Context, conversationStateID string, dataset domain.Dataset) error {
	ttl := h.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	name := lock.ConversationStateLockName(conversationStateID)
	handle, err := h.Locker.Acquire(ctx, name, ttl)
	if err != nil {
		return fmt.Errorf("acquire conversation state lock: %w", err)
	}
	defer h.Locker.Release(ctx, handle)

	state, err := h.Store.GetConversationState(ctx, conversationStateID)
	if err != nil {
		return fmt.Errorf("load conversation state: %w", err)
	}
	state.AddDataset(dataset)
	if err := h.Store.UpdateConversationState(ctx, conversationStateID, store.ConversationStateUpdate{Values: state}); err != nil {
		return fmt.Errorf("persist conversation state: %w", err)
	}

	if h.Notify != nil {
		_ = h.Notify.Publish(ctx, notify.Channel(state.ConversationID), notify.Event{
			Type:           notify.EventStateUpdated,
			ConversationID: state.ConversationID,
			Description:    "dataset uploaded",
			PublishedAt:    time.Now(),
		})
	}
	return nil
}
