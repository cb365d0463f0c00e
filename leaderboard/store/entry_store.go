// leaderboard/store/entry_store.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ftotnem/isabot-go/shared/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EntryStore persists leaderboard snapshots in MongoDB. Entries are never updated.
type EntryStore struct {
	collection *mongo.Collection
}

func NewEntryStore(collection *mongo.Collection) *EntryStore {
	return &EntryStore{collection: collection}
}

// Create inserts the entry under a fresh UUID and returns that id.
func (es *EntryStore) Create(ctx context.Context, entry models.Entry) (string, error) {
	entry.ID = uuid.New().String()
	if _, err := es.collection.InsertOne(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to insert leaderboard entry %s: %w", entry.ID, err)
	}
	return entry.ID, nil
}

// Latest returns the most recently created entry.
func (es *EntryStore) Latest(ctx context.Context) (*models.Entry, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "date_created", Value: -1}})

	var entry models.Entry
	err := es.collection.FindOne(ctx, bson.M{}, opts).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest leaderboard entry: %w", err)
	}
	return &entry, nil
}

// List returns up to limit entries, newest first.
func (es *EntryStore) List(ctx context.Context, limit int) ([]models.Entry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date_created", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit)))

	cursor, err := es.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.Entry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard entries: %w", err)
	}
	return entries, nil
}

// EnsureIndexes creates the date_created index used by Latest and List.
func (es *EntryStore) EnsureIndexes(ctx context.Context) error {
	_, err := es.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date_created", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create leaderboard entry index: %w", err)
	}
	return nil
}
