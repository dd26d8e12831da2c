package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arthur-debert/nanotodo/nanotodo/storage"
	"github.com/arthur-debert/nanotodo/types"
)

const disconnectTimeout = 5 * time.Second

// MongoStore is the document-store backend. Each todo is one document
// carrying its own ownerKey field.
type MongoStore struct {
	uri        string
	database   string
	collection string
	logger     *slog.Logger

	mu          sync.Mutex
	client      *mongo.Client
	coll        *mongo.Collection
	ownsClient  bool
	initialized bool
}

// NewMongoStore creates a document-store backend for uri. The connection is
// made by Init and owned by the store until Close.
func NewMongoStore(uri string, opts ...Option) *MongoStore {
	o := newOptions(opts)
	return &MongoStore{
		uri:        uri,
		database:   o.database,
		collection: o.collection,
		logger:     o.logger.With("backend", BackendMongo, "database", o.database, "collection", o.collection),
		ownsClient: true,
	}
}

// newMongoStoreWithCollection binds the store to an existing collection
// whose client is owned by the caller.
func newMongoStoreWithCollection(coll *mongo.Collection, opts ...Option) *MongoStore {
	o := newOptions(opts)
	return &MongoStore{
		database:   coll.Database().Name(),
		collection: coll.Name(),
		logger:     o.logger.With("backend", BackendMongo, "collection", coll.Name()),
		coll:       coll,
	}
}

// Init connects (once) and ensures the indexes exist.
func (s *MongoStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	if s.coll == nil {
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(s.uri))
		if err != nil {
			return fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return fmt.Errorf("failed to reach mongo: %w", err)
		}
		s.client = client
		s.coll = client.Database(s.database).Collection(s.collection)
	}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "ownerKey", Value: 1}}},
		{
			Keys:    bson.D{{Key: "id", Value: 1}, {Key: "ownerKey", Value: 1}},
			Options: mongooptions.Index().SetUnique(true),
		},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	s.initialized = true
	s.logger.Debug("collection ready")
	return nil
}

// FindAll implements storage.Backend.
func (s *MongoStore) FindAll(ctx context.Context, ownerKey string) ([]types.Todo, error) {
	coll, err := s.collectionHandle()
	if err != nil {
		return nil, err
	}
	findOpts := mongooptions.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "id", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{"ownerKey": ownerKey}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}

	todos := []types.Todo{}
	if err := cursor.All(ctx, &todos); err != nil {
		return nil, fmt.Errorf("failed to decode todos: %w", err)
	}
	return todos, nil
}

// FindByID implements storage.Backend.
func (s *MongoStore) FindByID(ctx context.Context, id, ownerKey string) (*types.Todo, error) {
	coll, err := s.collectionHandle()
	if err != nil {
		return nil, err
	}
	var todo types.Todo
	err = coll.FindOne(ctx, ownerFilter(id, ownerKey)).Decode(&todo)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	return &todo, nil
}

// Insert implements storage.Backend.
func (s *MongoStore) Insert(ctx context.Context, todo types.Todo) (*types.Todo, error) {
	coll, err := s.collectionHandle()
	if err != nil {
		return nil, err
	}
	if _, err := coll.InsertOne(ctx, todo); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("todo %s already exists: %w", todo.ID, err)
		}
		return nil, fmt.Errorf("failed to insert todo: %w", err)
	}
	return &todo, nil
}

// ReplaceOrMerge implements storage.Backend.
func (s *MongoStore) ReplaceOrMerge(ctx context.Context, id, ownerKey string, patch types.Patch) (*types.Todo, error) {
	coll, err := s.collectionHandle()
	if err != nil {
		return nil, err
	}
	update := bson.M{"$set": patchFields(patch)}
	updateOpts := mongooptions.FindOneAndUpdate().SetReturnDocument(mongooptions.After)

	var todo types.Todo
	err = coll.FindOneAndUpdate(ctx, ownerFilter(id, ownerKey), update, updateOpts).Decode(&todo)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return &todo, nil
}

// Remove implements storage.Backend.
func (s *MongoStore) Remove(ctx context.Context, id, ownerKey string) (bool, error) {
	coll, err := s.collectionHandle()
	if err != nil {
		return false, err
	}
	res, err := coll.DeleteOne(ctx, ownerFilter(id, ownerKey))
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// Close disconnects the client if the store opened it.
func (s *MongoStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	if s.client == nil || !s.ownsClient {
		s.coll = nil
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	err := s.client.Disconnect(ctx)
	s.client = nil
	s.coll = nil
	return err
}

func (s *MongoStore) collectionHandle() (*mongo.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || s.coll == nil {
		return nil, errNotInitialized
	}
	return s.coll, nil
}

func ownerFilter(id, ownerKey string) bson.M {
	return bson.M{"id": id, "ownerKey": ownerKey}
}

func patchFields(patch types.Patch) bson.M {
	set := bson.M{"updatedAt": patch.UpdatedAt}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.DueDate != nil {
		set["dueDate"] = *patch.DueDate
	}
	if patch.Done != nil {
		set["done"] = *patch.Done
	}
	return set
}
