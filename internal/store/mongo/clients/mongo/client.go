// Package mongo hosts the MongoDB client backing the State Store Adapter. It
// mirrors other Mongo client adapters' layering: a thin Client interface
// wrapping driver collections, with documents kept private to this package.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/researchlab/orchestrator/internal/domain"
)

const (
	conversationsCollection = "conversations"
	statesCollection        = "conversation_states"
	messagesCollection      = "messages"
	iterationsCollection    = "iteration_states"
	defaultOpTimeout        = 5 * time.Second
)

// Options configures the Mongo client.
type Options struct {
	Client   *mongodriver.Client
	Database string
	Timeout  time.Duration
}

// ConversationDoc is the persisted shape of store.Conversation.
type ConversationDoc struct {
	ID     string `bson:"_id"`
	UserID string `bson:"user_id"`
}

// Client exposes Mongo-backed CRUD for every record kind the State Store
// Adapter needs.
type Client interface {
	Ping(ctx context.Context) error

	GetConversation(ctx context.Context, id string) (ConversationDoc, error)
	GetConversationState(ctx context.Context, id string) (domain.ConversationState, error)
	GetMessage(ctx context.Context, id string) (domain.Message, error)
	GetIterationState(ctx context.Context, id string) (domain.IterationState, error)

	InsertMessage(ctx context.Context, msg domain.Message) error
	UpdateMessage(ctx context.Context, id string, set bson.M) error
	UpdateIterationState(ctx context.Context, id string, set bson.M) error
	UpsertConversationState(ctx context.Context, state domain.ConversationState, preserveDatasets bool) error
}

type client struct {
	mongo   *mongodriver.Client
	db      *mongodriver.Database
	timeout time.Duration
}

// New constructs a Client backed by MongoDB.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &client{mongo: opts.Client, db: opts.Client.Database(opts.Database), timeout: timeout}, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) GetConversation(ctx context.Context, id string) (ConversationDoc, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc ConversationDoc
	err := c.db.Collection(conversationsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return ConversationDoc{}, ErrNoDocuments
	}
	return doc, err
}

func (c *client) GetConversationState(ctx context.Context, id string) (domain.ConversationState, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc conversationStateDoc
	err := c.db.Collection(statesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return domain.ConversationState{}, ErrNoDocuments
	}
	if err != nil {
		return domain.ConversationState{}, err
	}
	return doc.toDomain(), nil
}

func (c *client) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc messageDoc
	err := c.db.Collection(messagesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return domain.Message{}, ErrNoDocuments
	}
	if err != nil {
		return domain.Message{}, err
	}
	return doc.toDomain(), nil
}

func (c *client) GetIterationState(ctx context.Context, id string) (domain.IterationState, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc iterationStateDoc
	err := c.db.Collection(iterationsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return domain.IterationState{}, ErrNoDocuments
	}
	if err != nil {
		return domain.IterationState{}, err
	}
	return doc.toDomain(), nil
}

func (c *client) InsertMessage(ctx context.Context, msg domain.Message) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.db.Collection(messagesCollection).InsertOne(ctx, fromMessage(msg))
	return err
}

func (c *client) UpdateMessage(ctx context.Context, id string, set bson.M) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.db.Collection(messagesCollection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (c *client) UpdateIterationState(ctx context.Context, id string, set bson.M) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.db.Collection(iterationsCollection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (c *client) UpsertConversationState(ctx context.Context, state domain.ConversationState, preserveDatasets bool) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	doc := fromConversationState(state)
	set := bson.M{
		"conversation_id":      doc.ConversationID,
		"objective":            doc.Objective,
		"current_objective":    doc.CurrentObjective,
		"plan":                 doc.Plan,
		"current_level":        doc.CurrentLevel,
		"suggested_next_steps": doc.SuggestedNextSteps,
		"current_hypothesis":   doc.CurrentHypothesis,
		"key_insights":         doc.KeyInsights,
		"discoveries":          doc.Discoveries,
		"methodology":          doc.Methodology,
		"conversation_title":   doc.ConversationTitle,
		"research_mode":        doc.ResearchMode,
		"free_form":            doc.FreeForm,
	}
	if !preserveDatasets {
		set["uploaded_datasets"] = doc.UploadedDatasets
	}
	_, err := c.db.Collection(statesCollection).UpdateOne(ctx, bson.M{"_id": state.ID},
		bson.M{"$set": set}, options.UpdateOne().SetUpsert(true))
	return err
}

// ErrNoDocuments is returned when a Get* lookup finds nothing, decoupling
// callers from the driver's sentinel.
var ErrNoDocuments = errors.New("mongo: no documents in result")
