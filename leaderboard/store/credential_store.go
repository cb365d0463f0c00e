// leaderboard/store/credential_store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ftotnem/isabot-go/shared/models"
	redisu "github.com/Ftotnem/isabot-go/shared/redis"
	"github.com/redis/go-redis/v9"
)

// CredentialStore keeps the current client-credentials token in a single Redis key.
// Saving replaces the previous credential and the key expires with the token.
type CredentialStore struct {
	redisClient redis.UniversalClient
	key         string
	now         func() time.Time
}

func NewCredentialStore(redisClient redis.UniversalClient, clientID string) *CredentialStore {
	return &CredentialStore{
		redisClient: redisClient,
		key:         redisu.CredentialKey(clientID),
		now:         time.Now,
	}
}

// Latest returns the stored credential, or nil when none is stored.
func (cs *CredentialStore) Latest(ctx context.Context) (*models.Credential, error) {
	raw, err := cs.redisClient.Get(ctx, cs.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential %s from Redis: %w", cs.key, err)
	}

	var cred models.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("failed to decode credential %s: %w", cs.key, err)
	}
	return &cred, nil
}

func (cs *CredentialStore) Save(ctx context.Context, cred models.Credential) error {
	ttl := cred.ExpiresAt.Sub(cs.now())
	if ttl <= 0 {
		return fmt.Errorf("refusing to store credential that expired at %s", cred.ExpiresAt.Format(time.RFC3339))
	}

	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	if err := cs.redisClient.Set(ctx, cs.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store credential %s in Redis: %w", cs.key, err)
	}
	return nil
}
