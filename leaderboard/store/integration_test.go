//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Ftotnem/isabot-go/shared/models"
	"github.com/Ftotnem/isabot-go/shared/mongodb"
	redisu "github.com/Ftotnem/isabot-go/shared/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func requireEnv(t *testing.T, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("%s must be set for integration tests", key)
	}
	return v
}

func TestRedisCredentialStore(t *testing.T) {
	rdb, err := redisu.NewRedisClient([]string{requireEnv(t, "REDIS_ADDR")}, os.Getenv("REDIS_PASSWORD"), zap.NewNop())
	require.NoError(t, err)
	defer rdb.Close()

	ctx := context.Background()
	s := NewCredentialStore(rdb, "it-"+uuid.NewString())
	defer rdb.Del(ctx, s.key)

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	cred := models.Credential{AccessToken: "abc", ExpiresAt: time.Now().Add(time.Minute).UTC().Truncate(time.Second), Subject: "app"}
	require.NoError(t, s.Save(ctx, cred))

	got, err = s.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, cred.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, cred.AccessToken, got.AccessToken)

	ttl, err := rdb.TTL(ctx, s.key).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)
	assert.Greater(t, ttl, time.Duration(0))

	assert.Error(t, s.Save(ctx, models.Credential{AccessToken: "old", ExpiresAt: time.Now().Add(-time.Second)}))
}

func TestRedisRosterCache(t *testing.T) {
	rdb, err := redisu.NewRedisClient([]string{requireEnv(t, "REDIS_ADDR")}, os.Getenv("REDIS_PASSWORD"), zap.NewNop())
	require.NoError(t, err)
	defer rdb.Close()

	ctx := context.Background()
	c := NewRosterCache(rdb)
	guild := "it-" + uuid.NewString()
	defer rdb.Del(ctx, redisu.RosterKey("shandris", guild))

	_, ok, err := c.Get(ctx, "shandris", guild)
	require.NoError(t, err)
	assert.False(t, ok)

	m := models.NewRosterMembership(
		models.RosterKey{RealmSlug: "shandris", CharacterID: 1},
		models.RosterKey{RealmSlug: "bronzebeard", CharacterID: 2},
	)
	require.NoError(t, c.Set(ctx, "shandris", guild, m, time.Minute))
	require.NoError(t, c.Set(ctx, "shandris", guild, m, time.Minute))

	got, ok, err := c.Get(ctx, "shandris", guild)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, m, got)
}

func TestMongoStores(t *testing.T) {
	mc, err := mongodb.NewClient(requireEnv(t, "MONGODB_CONN_STR"), "isabot_it", zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	defer mc.Disconnect(ctx)

	entries := mc.Collection("leaderboard_" + uuid.NewString())
	defer entries.Drop(ctx)
	es := NewEntryStore(entries)
	require.NoError(t, es.EnsureIndexes(ctx))

	_, err = es.Latest(ctx)
	assert.True(t, errors.Is(err, ErrEntryNotFound))

	first, err := es.Create(ctx, models.Entry{
		Players:     map[string]models.PlayerInfo{"1": {BattleTag: "p1", ID: "1"}},
		DateCreated: 100,
		Mounts:      map[string]models.MountStats{"1": {NumberOfMounts: 10}},
	})
	require.NoError(t, err)
	second, err := es.Create(ctx, models.Entry{DateCreated: 200})
	require.NoError(t, err)

	latest, err := es.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)

	list, err := es.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[1].ID)
	assert.Equal(t, 10, list[1].Mounts["1"].NumberOfMounts)

	accounts := mc.Collection("users_" + uuid.NewString())
	defer accounts.Drop(ctx)
	_, err = accounts.InsertOne(ctx, models.Account{ID: "sub-1", BattleTag: "p1#1234"})
	require.NoError(t, err)

	as := NewAccountStore(accounts)
	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, as.UpdateCharacters(ctx, "sub-1", []models.Character{{ID: 7, Name: "x", RealmSlug: "shandris"}}, at))
	assert.True(t, errors.Is(as.UpdateCharacters(ctx, "nope", nil, at), ErrAccountNotFound))

	list2, err := as.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list2, 1)
	assert.Equal(t, int64(7), list2[0].Characters[0].ID)
}

func TestPostgresEntryStore(t *testing.T) {
	s, err := OpenPostgresEntryStore(requireEnv(t, "POSTGRES_URL"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	base := time.Now().Unix() * 10
	id, err := s.Create(ctx, models.Entry{
		Players:      map[string]models.PlayerInfo{"1": {BattleTag: "p1", ID: "1"}},
		DateCreated:  base,
		Mounts:       map[string]models.MountStats{"1": {NumberOfMounts: 3}},
		NormalBGWins: map[string]models.BattlegroundStats{"1": {BGTotalWon: 4, BGTotalLost: 5}},
	})
	require.NoError(t, err)
	defer s.db.ExecContext(ctx, "DELETE FROM leaderboard_entries WHERE id = $1", id)

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, models.BattlegroundStats{BGTotalWon: 4, BGTotalLost: 5}, latest.NormalBGWins["1"])

	list, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}
