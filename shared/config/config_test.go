package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLeaderboardServiceConfig_Defaults(t *testing.T) {
	cfg, err := LoadLeaderboardServiceConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8083", cfg.ListenAddr)
	assert.Equal(t, 8083, cfg.ServicePort)
	assert.Equal(t, "ar-club", cfg.GuildSlug)
	assert.Equal(t, []string{"shandris", "bronzebeard"}, cfg.TrackedRealms)
	assert.Equal(t, 2, cfg.TokenFetchAttempts)
	assert.Equal(t, time.Second, cfg.TokenFetchBackoff)
	assert.Equal(t, 3, cfg.BattleNet.MaxAttempts)
	assert.Equal(t, "https://us.api.blizzard.com", cfg.BattleNet.APIBaseURL)
	assert.Equal(t, "mongo", cfg.EntryStoreBackend)
	assert.Equal(t, 7*24*time.Hour, cfg.RunInterval)
	assert.Equal(t, time.Hour, cfg.RunCheckInterval)
	assert.Equal(t, 5*time.Minute, cfg.RunTimeout)
	assert.Equal(t, 3, cfg.DiscordMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.DiscordRetryBackoff)
}

func TestLoadLeaderboardServiceConfig_Overrides(t *testing.T) {
	t.Setenv("LEADERBOARD_SERVICE_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("TRACKED_REALMS", " area-52 , ,illidan")
	t.Setenv("BATTLENET_REGION", "eu")
	t.Setenv("STATS_MAX_CONCURRENCY", "3")
	t.Setenv("ENTRY_STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_URL", "postgres://localhost/isabot?sslmode=disable")

	cfg, err := LoadLeaderboardServiceConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ServicePort)
	assert.Equal(t, []string{"area-52", "illidan"}, cfg.TrackedRealms)
	assert.Equal(t, "https://eu.api.blizzard.com", cfg.BattleNet.APIBaseURL)
	assert.Equal(t, 3, cfg.StatsMaxConcurrency)
	assert.Equal(t, "postgres", cfg.EntryStoreBackend)
}

func TestLoadLeaderboardServiceConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "TOKEN_FETCH_BACKOFF", "soon"},
		{"bad int", "TOKEN_FETCH_ATTEMPTS", "two"},
		{"zero attempts", "TOKEN_FETCH_ATTEMPTS", "0"},
		{"unknown backend", "ENTRY_STORE_BACKEND", "dynamo"},
		{"postgres without url", "ENTRY_STORE_BACKEND", "postgres"},
		{"zero check interval", "LEADERBOARD_RUN_CHECK_INTERVAL", "0s"},
		{"zero run timeout", "LEADERBOARD_RUN_TIMEOUT", "0s"},
		{"negative run timeout", "LEADERBOARD_RUN_TIMEOUT", "-1m"},
		{"zero discord attempts", "DISCORD_MAX_ATTEMPTS", "0"},
		{"bad listen addr", "LEADERBOARD_SERVICE_LISTEN_ADDR", "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := LoadLeaderboardServiceConfig()
			assert.Error(t, err)
		})
	}
}

func TestExtractPort(t *testing.T) {
	port, err := extractPort(":8081")
	require.NoError(t, err)
	assert.Equal(t, 8081, port)

	port, err = extractPort("127.0.0.1:8082")
	require.NoError(t, err)
	assert.Equal(t, 8082, port)

	_, err = extractPort(":http")
	assert.Error(t, err)
}
