// leaderboard/store/account_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Ftotnem/isabot-go/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AccountStore reads registered accounts from MongoDB. The documents are
// created by the login flow; only the character list is written here.
type AccountStore struct {
	collection *mongo.Collection
}

func NewAccountStore(collection *mongo.Collection) *AccountStore {
	return &AccountStore{collection: collection}
}

func (as *AccountStore) ListAccounts(ctx context.Context) ([]models.Account, error) {
	cursor, err := as.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	accounts := []models.Account{}
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

// UpdateCharacters replaces an account's character list.
func (as *AccountStore) UpdateCharacters(ctx context.Context, accountID string, characters []models.Character, updatedAt time.Time) error {
	filter := bson.M{"_id": accountID}
	update := bson.M{"$set": bson.M{"characters": characters, "characters_updated_at": updatedAt}}
	res, err := as.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update characters for account %s: %w", accountID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return nil
}
