package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/lock"
	lockmemory "github.com/researchlab/orchestrator/internal/lock/memory"
	notifymemory "github.com/researchlab/orchestrator/internal/notify/memory"
	storememory "github.com/researchlab/orchestrator/internal/store/memory"
)

func TestHandleDatasetReadyInsertsDataset(t *testing.T) {
	st := storememory.New()
	st.SeedConversationState(domain.ConversationState{ID: "cs-1", ConversationID: "conv-1"})

	h := &Handler{
		Store:  st,
		Locker: lockmemory.New(lock.DefaultRetryOptions()),
		Notify: notifymemory.New(),
	}

	err := h.HandleDatasetReady(context.Background(), "cs-1", domain.Dataset{ID: "d-1", Filename: "a.csv"})
	require.NoError(t, err)

	got, err := st.GetConversationState(context.Background(), "cs-1")
	require.NoError(t, err)
	require.Len(t, got.UploadedDatasets, 1)
	assert.Equal(t, "d-1", got.UploadedDatasets[0].ID)
	assert.Equal(t, "a.csv", got.UploadedDatasets[0].Filename)
}

func TestHandleDatasetReadyReplacesSameFilename(t *testing.T) {
	st := storememory.New()
	st.SeedConversationState(domain.ConversationState{
		ID:               "cs-1",
		ConversationID:   "conv-1",
		UploadedDatasets: []domain.Dataset{{ID: "old", Filename: "a.csv"}},
	})

	h := &Handler{Store: st, Locker: lockmemory.New(lock.DefaultRetryOptions()), Notify: notifymemory.New()}

	err := h.HandleDatasetReady(context.Background(), "cs-1", domain.Dataset{ID: "new", Filename: "a.csv"})
	require.NoError(t, err)

	got, err := st.GetConversationState(context.Background(), "cs-1")
	require.NoError(t, err)
	require.Len(t, got.UploadedDatasets, 1)
	assert.Equal(t, "new", got.UploadedDatasets[0].ID)
}

func TestHandleDatasetReadyMissingConversationState(t *testing.T) {
	st := storememory.New()
	h := &Handler{Store: st, Locker: lockmemory.New(lock.DefaultRetryOptions()), Notify: notifymemory.New()}

	err := h.HandleDatasetReady(context.Background(), "missing", domain.Dataset{ID: "d-1", Filename: "a.csv"})
	assert.Error(t, err)
}
