// shared/config/config.go
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// CommonConfig holds configuration fields that are shared across multiple services.
type CommonConfig struct {
	AppEnv                  string        // "development" switches to the console logger
	RedisAddrs              []string      // Redis server addresses; more than one selects cluster mode
	RedisPassword           string        // Redis password for authentication
	HeartbeatInterval       time.Duration // How often to send a heartbeat to registry (e.g., 5s)
	HeartbeatTTL            time.Duration // How long an instance is considered alive without a heartbeat (e.g., 15s)
	RegistryCleanupInterval time.Duration // How often the registry actively cleans stale entries (e.g., 30s)
	ServiceIP               string        // The IP address this service advertises for registration (Kubernetes Pod IP)
	ServicePort             int           // The port this service listens on, used for registration
}

// BattleNetConfig holds the game-data API settings.
type BattleNetConfig struct {
	ClientID     string
	ClientSecret string
	Region       string        // e.g. "us"; selects API host and namespaces
	Locale       string        // e.g. "en_US"
	APIBaseURL   string        // defaults to https://{region}.api.blizzard.com
	TokenURL     string        // defaults to https://oauth.battle.net/token
	HTTPTimeout  time.Duration // per-request timeout
	MaxAttempts  int           // per-call attempts, including the first
	RetryBackoff time.Duration // fixed sleep between attempts
}

// LeaderboardServiceConfig holds configuration specific to the leaderboard-service.
type LeaderboardServiceConfig struct {
	CommonConfig
	BattleNet                 BattleNetConfig
	ListenAddr                string
	MongoDBConnStr            string
	MongoDBDatabase           string
	MongoDBEntriesCollection  string
	MongoDBAccountsCollection string
	EntryStoreBackend         string // "mongo", "postgres" or "memory"
	PostgresURL               string
	GuildSlug                 string
	TrackedRealms             []string // the first realm hosts the guild roster
	TokenFetchAttempts        int
	TokenFetchBackoff         time.Duration
	StatsMaxConcurrency       int
	RosterCacheTTL            time.Duration
	CharacterRefreshInterval  time.Duration // stored characters younger than this are reused
	DiscordWebhookURL         string
	DiscordMaxAttempts        int
	DiscordRetryBackoff       time.Duration
	RunInterval               time.Duration // minimum age of the latest entry before the next scheduled run
	RunCheckInterval          time.Duration // how often the scheduler checks whether a run is due
	RunTimeout                time.Duration
}

// LeaderboardCtlConfig configures the leaderboardctl command.
type LeaderboardCtlConfig struct {
	ServiceURL string
	Timeout    time.Duration
}

// LoadCommonConfig loads common configuration from environment variables.
func LoadCommonConfig() (CommonConfig, error) {
	cfg := CommonConfig{}
	var err error

	cfg.AppEnv = getString("APP_ENV", "production")

	cfg.RedisAddrs = getList("REDIS_ADDRS", []string{"redis:6379"})
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.HeartbeatInterval, err = getDuration("SERVICE_HEARTBEAT_INTERVAL", 5*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.HeartbeatTTL, err = getDuration("SERVICE_HEARTBEAT_TTL", 15*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.RegistryCleanupInterval, err = getDuration("SERVICE_REGISTRY_CLEANUP_INTERVAL", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	// Injected by Kubernetes; falls back for local development.
	cfg.ServiceIP = getString("POD_IP", "0.0.0.0")

	return cfg, nil
}

// LoadBattleNetConfig loads the game-data API settings.
func LoadBattleNetConfig() (BattleNetConfig, error) {
	cfg := BattleNetConfig{
		ClientID:     os.Getenv("BATTLENET_CLIENT_ID"),
		ClientSecret: os.Getenv("BATTLENET_CLIENT_SECRET"),
		Region:       getString("BATTLENET_REGION", "us"),
		Locale:       getString("BATTLENET_LOCALE", "en_US"),
		TokenURL:     getString("BATTLENET_TOKEN_URL", "https://oauth.battle.net/token"),
	}
	cfg.APIBaseURL = getString("BATTLENET_API_URL", fmt.Sprintf("https://%s.api.blizzard.com", cfg.Region))

	var err error
	cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.MaxAttempts, err = getInt("HTTP_MAX_ATTEMPTS", 3)
	if err != nil {
		return cfg, err
	}
	cfg.RetryBackoff, err = getDuration("HTTP_RETRY_BACKOFF", time.Second)
	if err != nil {
		return cfg, err
	}
	if cfg.MaxAttempts <= 0 {
		return cfg, fmt.Errorf("HTTP_MAX_ATTEMPTS must be a positive integer (got %d)", cfg.MaxAttempts)
	}
	return cfg, nil
}

// LoadLeaderboardServiceConfig loads configuration for the leaderboard-service.
func LoadLeaderboardServiceConfig() (*LeaderboardServiceConfig, error) {
	common, err := LoadCommonConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load common config for leaderboard-service: %w", err)
	}
	bnet, err := LoadBattleNetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load battle.net config for leaderboard-service: %w", err)
	}

	cfg := &LeaderboardServiceConfig{
		CommonConfig:              common,
		BattleNet:                 bnet,
		ListenAddr:                getString("LEADERBOARD_SERVICE_LISTEN_ADDR", ":8083"),
		MongoDBConnStr:            getString("MONGODB_CONN_STR", "mongodb://mongodb-service:27017"),
		MongoDBDatabase:           getString("MONGODB_DATABASE", "isabot"),
		MongoDBEntriesCollection:  getString("MONGODB_ENTRIES_COLLECTION", "leaderboard"),
		MongoDBAccountsCollection: getString("MONGODB_ACCOUNTS_COLLECTION", "users"),
		EntryStoreBackend:         getString("ENTRY_STORE_BACKEND", "mongo"),
		PostgresURL:               os.Getenv("POSTGRES_URL"),
		GuildSlug:                 getString("GUILD_SLUG", "ar-club"),
		TrackedRealms:             getList("TRACKED_REALMS", []string{"shandris", "bronzebeard"}),
		DiscordWebhookURL:         os.Getenv("DISCORD_WEBHOOK_URL"),
	}

	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from LEADERBOARD_SERVICE_LISTEN_ADDR '%s': %w", cfg.ListenAddr, err)
	}

	cfg.TokenFetchAttempts, err = getInt("TOKEN_FETCH_ATTEMPTS", 2)
	if err != nil {
		return nil, err
	}
	cfg.TokenFetchBackoff, err = getDuration("TOKEN_FETCH_BACKOFF", time.Second)
	if err != nil {
		return nil, err
	}
	cfg.StatsMaxConcurrency, err = getInt("STATS_MAX_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	cfg.RosterCacheTTL, err = getDuration("ROSTER_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.CharacterRefreshInterval, err = getDuration("CHARACTER_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.DiscordMaxAttempts, err = getInt("DISCORD_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	cfg.DiscordRetryBackoff, err = getDuration("DISCORD_RETRY_BACKOFF", 2*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.RunInterval, err = getDuration("LEADERBOARD_RUN_INTERVAL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.RunCheckInterval, err = getDuration("LEADERBOARD_RUN_CHECK_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.RunTimeout, err = getDuration("LEADERBOARD_RUN_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	if cfg.TokenFetchAttempts <= 0 {
		return nil, fmt.Errorf("TOKEN_FETCH_ATTEMPTS must be a positive integer (got %d)", cfg.TokenFetchAttempts)
	}
	if cfg.StatsMaxConcurrency <= 0 {
		return nil, fmt.Errorf("STATS_MAX_CONCURRENCY must be a positive integer (got %d)", cfg.StatsMaxConcurrency)
	}
	if cfg.DiscordMaxAttempts <= 0 {
		return nil, fmt.Errorf("DISCORD_MAX_ATTEMPTS must be a positive integer (got %d)", cfg.DiscordMaxAttempts)
	}
	if cfg.RunCheckInterval <= 0 || cfg.RunInterval <= 0 || cfg.RunTimeout <= 0 {
		return nil, fmt.Errorf("LEADERBOARD_RUN_INTERVAL, LEADERBOARD_RUN_CHECK_INTERVAL and LEADERBOARD_RUN_TIMEOUT must be positive")
	}
	if len(cfg.TrackedRealms) == 0 {
		return nil, fmt.Errorf("TRACKED_REALMS must name at least one realm")
	}
	switch cfg.EntryStoreBackend {
	case "mongo", "memory":
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("POSTGRES_URL is required when ENTRY_STORE_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported ENTRY_STORE_BACKEND %q", cfg.EntryStoreBackend)
	}

	return cfg, nil
}

// LoadLeaderboardCtlConfig loads configuration for the leaderboardctl command.
func LoadLeaderboardCtlConfig() (*LeaderboardCtlConfig, error) {
	cfg := &LeaderboardCtlConfig{
		ServiceURL: getString("LEADERBOARD_SERVICE_URL", "http://leaderboard-service:8083"),
	}
	var err error
	cfg.Timeout, err = getDuration("LEADERBOARDCTL_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func getString(envKey, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return defaultVal
}

// getList splits a comma separated variable, dropping empty items.
func getList(envKey string, defaultVal []string) []string {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(valStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// Helper function to parse duration from environment variable
func getDuration(envKey string, defaultVal time.Duration) (time.Duration, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format for %s: %w", envKey, err)
	}
	return d, nil
}

// Helper function to parse int from environment variable
func getInt(envKey string, defaultVal int) (int, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer format for %s: %w", envKey, err)
	}
	return i, nil
}

// extractPort extracts the numeric port from a listen address (e.g., ":8083" -> 8083, "0.0.0.0:8083" -> 8083)
func extractPort(listenAddr string) (int, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		if strings.HasPrefix(listenAddr, ":") {
			portStr = strings.TrimPrefix(listenAddr, ":")
		} else {
			return 0, fmt.Errorf("invalid ListenAddr format for port extraction: %w", err)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}
	return port, nil
}
