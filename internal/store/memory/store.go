// Package memory implements store.Store in-process for tests and the
// in-memory Worker Runtime mode, mirroring the in-memory store adapter
// and runtime/agent/runlog/inmem fakes.
package memory

import (
	"context"
	"sync"

	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/store"
)

// Store is a goroutine-safe in-memory store.Store.
type Store struct {
	mu            sync.Mutex
	conversations map[string]store.Conversation
	states        map[string]domain.ConversationState
	messages      map[string]domain.Message
	iterations    map[string]domain.IterationState
}

// New constructs an empty in-memory Store.
func New() *Store {
	return &Store{
		conversations: map[string]store.Conversation{},
		states:        map[string]domain.ConversationState{},
		messages:      map[string]domain.Message{},
		iterations:    map[string]domain.IterationState{},
	}
}

// SeedConversation inserts a Conversation record directly, bypassing the
// normal write path; used by tests to set up fixtures.
func (s *Store) SeedConversation(c store.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c
}

// SeedConversationState inserts a ConversationState record directly.
func (s *Store) SeedConversationState(cs domain.ConversationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[cs.ID] = cs
}

// SeedIterationState inserts an IterationState record directly.
func (s *Store) SeedIterationState(it domain.IterationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iterations[it.ID] = it
}

func (s *Store) GetConversation(_ context.Context, id string) (store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return store.Conversation{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetConversationState(_ context.Context, id string) (domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.states[id]
	if !ok {
		return domain.ConversationState{}, store.ErrNotFound
	}
	return cloneState(cs), nil
}

func (s *Store) GetMessage(_ context.Context, id string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return domain.Message{}, store.ErrNotFound
	}
	return m, nil
}

func (s *Store) GetState(_ context.Context, id string) (domain.IterationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.iterations[id]
	if !ok {
		return domain.IterationState{}, store.ErrNotFound
	}
	return it, nil
}

func (s *Store) CreateMessage(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = msg
	return nil
}

func (s *Store) UpdateMessage(_ context.Context, id string, update store.MessageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return store.ErrNotFound
	}
	if update.Content != nil {
		m.Content = *update.Content
	}
	if update.Summary != nil {
		m.Summary = *update.Summary
	}
	if update.ResponseTime != nil {
		d := *update.ResponseTime
		m.ResponseTime = &d
	}
	s.messages[id] = m
	return nil
}

func (s *Store) UpdateState(_ context.Context, id string, update store.StateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.iterations[id]
	if !ok {
		return store.ErrNotFound
	}
	if update.IsDeepResearch != nil {
		it.IsDeepResearch = *update.IsDeepResearch
	}
	if update.Status != nil {
		it.Status = *update.Status
	}
	if update.Error != nil {
		it.Error = *update.Error
	}
	s.iterations[id] = it
	return nil
}

func (s *Store) UpdateConversationState(_ context.Context, id string, update store.ConversationStateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.states[id]
	if !ok {
		return store.ErrNotFound
	}
	incoming := update.Values
	if update.PreserveUploadedDatasets {
		incoming.UploadedDatasets = existing.UploadedDatasets
	}
	incoming.ID = id
	s.states[id] = incoming
	return nil
}

func cloneState(cs domain.ConversationState) domain.ConversationState {
	out := cs
	out.Plan = append([]domain.PlanTask(nil), cs.Plan...)
	out.SuggestedNextSteps = append([]domain.PlanTask(nil), cs.SuggestedNextSteps...)
	out.UploadedDatasets = append([]domain.Dataset(nil), cs.UploadedDatasets...)
	out.FreeForm = make(map[string]string, len(cs.FreeForm))
	for k, v := range cs.FreeForm {
		out.FreeForm[k] = v
	}
	return out
}
