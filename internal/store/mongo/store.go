// Package mongo implements store.Store over MongoDB. Store wraps a Client
// interface, keeping driver details out of orchestrator code.
package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/researchlab/orchestrator/internal/domain"
	clientsmongo "github.com/researchlab/orchestrator/internal/store/mongo/clients/mongo"
	"github.com/researchlab/orchestrator/internal/store"
)

// Options configures the Mongo-backed Store.
type Options struct {
	Client clientsmongo.Client
}

// Store implements store.Store by delegating to a Mongo client.
type Store struct {
	client clientsmongo.Client
}

// NewStore builds a Store using the provided client.
func NewStore(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: opts.Client}, nil
}

// NewStoreFromMongo constructs the underlying client and wraps it in a Store.
func NewStoreFromMongo(opts clientsmongo.Options) (*Store, error) {
	client, err := clientsmongo.New(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(Options{Client: client})
}

func (s *Store) GetConversation(ctx context.Context, id string) (store.Conversation, error) {
	doc, err := s.client.GetConversation(ctx, id)
	if errors.Is(err, clientsmongo.ErrNoDocuments) {
		return store.Conversation{}, store.ErrNotFound
	}
	if err != nil {
		return store.Conversation{}, err
	}
	return store.Conversation{ID: doc.ID, UserID: doc.UserID}, nil
}

func (s *Store) GetConversationState(ctx context.Context, id string) (domain.ConversationState, error) {
	cs, err := s.client.GetConversationState(ctx, id)
	if errors.Is(err, clientsmongo.ErrNoDocuments) {
		return domain.ConversationState{}, store.ErrNotFound
	}
	return cs, err
}

func (s *Store) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	m, err := s.client.GetMessage(ctx, id)
	if errors.Is(err, clientsmongo.ErrNoDocuments) {
		return domain.Message{}, store.ErrNotFound
	}
	return m, err
}

func (s *Store) GetState(ctx context.Context, id string) (domain.IterationState, error) {
	it, err := s.client.GetIterationState(ctx, id)
	if errors.Is(err, clientsmongo.ErrNoDocuments) {
		return domain.IterationState{}, store.ErrNotFound
	}
	return it, err
}

func (s *Store) CreateMessage(ctx context.Context, msg domain.Message) error {
	return s.client.InsertMessage(ctx, msg)
}

func (s *Store) UpdateMessage(ctx context.Context, id string, update store.MessageUpdate) error {
	set := bson.M{}
	if update.Content != nil {
		set["content"] = *update.Content
	}
	if update.Summary != nil {
		set["summary"] = *update.Summary
	}
	if update.ResponseTime != nil {
		set["response_time_ns"] = update.ResponseTime.Nanoseconds()
	}
	if len(set) == 0 {
		return nil
	}
	return s.client.UpdateMessage(ctx, id, set)
}

func (s *Store) UpdateState(ctx context.Context, id string, update store.StateUpdate) error {
	set := bson.M{}
	if update.IsDeepResearch != nil {
		set["is_deep_research"] = *update.IsDeepResearch
	}
	if update.Status != nil {
		set["status"] = string(*update.Status)
	}
	if update.Error != nil {
		set["error"] = *update.Error
	}
	if len(set) == 0 {
		return nil
	}
	return s.client.UpdateIterationState(ctx, id, set)
}

func (s *Store) UpdateConversationState(ctx context.Context, id string, update store.ConversationStateUpdate) error {
	values := update.Values
	values.ID = id
	return s.client.UpsertConversationState(ctx, values, update.PreserveUploadedDatasets)
}
