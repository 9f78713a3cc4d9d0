package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBackend stores each kind in its own collection with _id set to the record id
type MongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoBackend creates a new mongo backend over database db of client
func NewMongoBackend(client *mongo.Client, db string) *MongoBackend {
	return &MongoBackend{client: client, db: client.Database(db)}
}

func (m *MongoBackend) c(kind Kind) *mongo.Collection {
	return m.db.Collection(string(kind))
}

// EnsureIndexes creates the indexes used by the common filters
func (m *MongoBackend) EnsureIndexes(ctx context.Context) error {
	indexes := map[Kind][]string{
		KindEvents:        {"host_id"},
		KindInvites:       {"event_id", "invitee_id"},
		KindFollows:       {"follower_id", "following_id"},
		KindReactions:     {"target_key", "user_id"},
		KindComments:      {"target_key"},
		KindPhotos:        {"event_id"},
		KindNotifications: {"user_id"},
	}
	for kind, fields := range indexes {
		idx := make([]mongo.IndexModel, 0, len(fields))
		for _, f := range fields {
			idx = append(idx, mongo.IndexModel{Keys: bson.D{{Key: f, Value: 1}}})
		}
		if _, err := m.c(kind).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", kind, err)
		}
	}
	return nil
}

// FetchAll returns every record of kind
func (m *MongoBackend) FetchAll(ctx context.Context, kind Kind) ([]Document, error) {
	return m.Query(ctx, kind)
}

// FetchByID retrieves a record by ID
func (m *MongoBackend) FetchByID(ctx context.Context, kind Kind, id string) (Document, error) {
	var raw bson.M
	if err := m.c(kind).FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(kind, id)
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return fromBSON(raw)
}

// Insert creates a new document
func (m *MongoBackend) Insert(ctx context.Context, kind Kind, doc Document) (Document, error) {
	stored, err := cloneDocument(doc)
	if err != nil {
		return nil, err
	}
	if stored.ID() == "" {
		stored["id"] = uuid.New().String()
	}

	raw := bson.M{"_id": stored.ID()}
	for k, v := range stored {
		raw[k] = v
	}
	if _, err := m.c(kind).InsertOne(ctx, raw); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s %s: %w", kind, stored.ID(), ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	return stored, nil
}

// Update applies patch with $set and returns the updated document
func (m *MongoBackend) Update(ctx context.Context, kind Kind, id string, patch Patch) (Document, error) {
	if len(patch) == 0 {
		return m.FetchByID(ctx, kind, id)
	}

	set := bson.M{}
	for k, v := range patch {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var raw bson.M
	err := m.c(kind).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(kind, id)
		}
		return nil, fmt.Errorf("failed to update %s: %w", kind, err)
	}
	return fromBSON(raw)
}

// Delete removes a document by ID
func (m *MongoBackend) Delete(ctx context.Context, kind Kind, id string) error {
	res, err := m.c(kind).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if res.DeletedCount == 0 {
		return notFound(kind, id)
	}
	return nil
}

// Query returns documents matching every filter, oldest first
func (m *MongoBackend) Query(ctx context.Context, kind Kind, filters ...Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	filter := bson.M{}
	for _, f := range filters {
		filter[f.Field] = f.Value
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := m.c(kind).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer cur.Close(ctx)

	var docs []Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
		}
		doc, err := fromBSON(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", kind, err)
	}
	return docs, nil
}

// Ping checks the server is reachable
func (m *MongoBackend) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client
func (m *MongoBackend) Close() error {
	return m.client.Disconnect(context.Background())
}

func fromBSON(raw bson.M) (Document, error) {
	delete(raw, "_id")
	return toDocument(map[string]any(raw))
}
