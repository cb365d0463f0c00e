// leaderboard/store/roster_cache.go
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ftotnem/isabot-go/shared/models"
	redisu "github.com/Ftotnem/isabot-go/shared/redis"
	"github.com/redis/go-redis/v9"
)

// RosterCache stores guild roster membership as a Redis set of "realm:characterID" members.
type RosterCache struct {
	redisClient redis.UniversalClient
}

func NewRosterCache(redisClient redis.UniversalClient) *RosterCache {
	return &RosterCache{redisClient: redisClient}
}

// Get reports a miss when the set is absent. Redis never stores empty sets,
// so an empty roster is never cached.
func (rc *RosterCache) Get(ctx context.Context, realmSlug, guildSlug string) (models.RosterMembership, bool, error) {
	key := redisu.RosterKey(realmSlug, guildSlug)
	members, err := rc.redisClient.SMembers(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read roster %s from Redis: %w", key, err)
	}
	if len(members) == 0 {
		return nil, false, nil
	}

	m := make(models.RosterMembership, len(members))
	for _, member := range members {
		k, err := parseRosterMember(member)
		if err != nil {
			return nil, false, fmt.Errorf("corrupt roster member in %s: %w", key, err)
		}
		m[k] = struct{}{}
	}
	return m, true, nil
}

// Set replaces the cached roster atomically.
func (rc *RosterCache) Set(ctx context.Context, realmSlug, guildSlug string, m models.RosterMembership, ttl time.Duration) error {
	key := redisu.RosterKey(realmSlug, guildSlug)
	keys := m.Keys()
	members := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		members = append(members, formatRosterMember(k))
	}

	_, err := rc.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.SAdd(ctx, key, members...)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store roster %s in Redis: %w", key, err)
	}
	return nil
}

func formatRosterMember(k models.RosterKey) string {
	return k.RealmSlug + ":" + strconv.FormatInt(k.CharacterID, 10)
}

func parseRosterMember(s string) (models.RosterKey, error) {
	realm, id, ok := strings.Cut(s, ":")
	if !ok || realm == "" {
		return models.RosterKey{}, fmt.Errorf("malformed member %q", s)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return models.RosterKey{}, fmt.Errorf("malformed character id in %q: %w", s, err)
	}
	return models.RosterKey{RealmSlug: realm, CharacterID: n}, nil
}
