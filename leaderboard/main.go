// leaderboard/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	leaderboardapi "github.com/Ftotnem/isabot-go/leaderboard/api"
	"github.com/Ftotnem/isabot-go/leaderboard/credential"
	"github.com/Ftotnem/isabot-go/leaderboard/entry"
	"github.com/Ftotnem/isabot-go/leaderboard/notify"
	"github.com/Ftotnem/isabot-go/leaderboard/roster"
	"github.com/Ftotnem/isabot-go/leaderboard/scheduler"
	"github.com/Ftotnem/isabot-go/leaderboard/service"
	"github.com/Ftotnem/isabot-go/leaderboard/stats"
	"github.com/Ftotnem/isabot-go/leaderboard/store"
	"github.com/Ftotnem/isabot-go/shared/api"
	"github.com/Ftotnem/isabot-go/shared/battlenet"
	"github.com/Ftotnem/isabot-go/shared/cluster"
	"github.com/Ftotnem/isabot-go/shared/config"
	"github.com/Ftotnem/isabot-go/shared/logging"
	mongodbu "github.com/Ftotnem/isabot-go/shared/mongodb"
	redisu "github.com/Ftotnem/isabot-go/shared/redis"
	"github.com/Ftotnem/isabot-go/shared/registry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const serviceType = "leaderboard-service"

// standaloneMembers is the replica set of a process running without Redis.
type standaloneMembers struct{ id string }

func (s standaloneMembers) GetActiveServices(context.Context, string) (map[string]registry.ServiceInfo, error) {
	return map[string]registry.ServiceInfo{s.id: {ServiceID: s.id, ServiceType: serviceType}}, nil
}

func main() {
	// --- 1. Load Configuration ---
	cfg, err := config.LoadLeaderboardServiceConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- 2. Logger ---
	logger, err := logging.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("service", serviceType))

	// --- 3. Stores ---
	var (
		entryStore interface {
			entry.Store
			service.EntryReader
		}
		accountStore    service.AccountStore
		credentialStore credential.Store
		rosterCache     roster.Cache
		members         cluster.MemberSource
		serviceID       string
	)

	if cfg.EntryStoreBackend == "memory" {
		logger.Warn("ENTRY_STORE_BACKEND=memory: entries, accounts and credentials are not persisted, registry disabled")
		entryStore = store.NewMemoryEntryStore()
		accountStore = store.NewMemoryAccountStore()
		credentialStore = store.NewMemoryCredentialStore()
		rosterCache = store.NewMemoryRosterCache()
		serviceID = uuid.NewString()
		members = standaloneMembers{id: serviceID}
	} else {
		// --- 3a. Connect to MongoDB ---
		mongoClient, err := mongodbu.NewClient(cfg.MongoDBConnStr, cfg.MongoDBDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
			}
		}()

		// --- 3b. Connect to Redis ---
		redisClient, err := redisu.NewRedisClient(cfg.RedisAddrs, cfg.RedisPassword, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Error closing Redis client", zap.Error(err))
			}
		}()

		accountStore = store.NewAccountStore(mongoClient.Collection(cfg.MongoDBAccountsCollection))
		credentialStore = store.NewCredentialStore(redisClient, cfg.BattleNet.ClientID)
		rosterCache = store.NewRosterCache(redisClient)

		switch cfg.EntryStoreBackend {
		case "postgres":
			pg, err := store.OpenPostgresEntryStore(cfg.PostgresURL)
			if err != nil {
				logger.Fatal("Failed to open Postgres entry store", zap.Error(err))
			}
			defer pg.Close()
			entryStore = pg
		default:
			mongoEntries := store.NewEntryStore(mongoClient.Collection(cfg.MongoDBEntriesCollection))
			indexCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := mongoEntries.EnsureIndexes(indexCtx); err != nil {
				logger.Warn("Failed to ensure leaderboard entry indexes", zap.Error(err))
			}
			cancel()
			entryStore = mongoEntries
		}

		// --- 3c. Service Registrar ---
		registrar := registry.NewServiceRegistrar(redisClient, serviceType, &cfg.CommonConfig, logger)
		registrar.Start()
		defer registrar.Stop()
		serviceID = registrar.GetServiceID()
		members = registry.NewRegistryClient(redisClient, cfg.HeartbeatTTL, logger)
	}

	// --- 4. Battle.net Clients ---
	bnet := battlenet.NewClient(cfg.BattleNet, logger)
	tokenSource := credential.NewClientCredentialsSource(
		cfg.BattleNet.ClientID,
		cfg.BattleNet.ClientSecret,
		cfg.BattleNet.TokenURL,
		api.NewDefaultHTTPClient(cfg.BattleNet.HTTPTimeout),
	)

	// --- 5. Pipeline Components ---
	tokenCache := credential.NewTokenCache(credentialStore, tokenSource, credential.Options{
		MaxAttempts: cfg.TokenFetchAttempts,
		Backoff:     cfg.TokenFetchBackoff,
	}, logger)
	rosterProvider := roster.NewProvider(rosterCache, bnet, cfg.TrackedRealms[0], cfg.GuildSlug, cfg.RosterCacheTTL, logger)
	aggregator := stats.NewAggregator(bnet, cfg.StatsMaxConcurrency, logger)
	builder := entry.NewBuilder(entryStore, logger)
	dispatcher := notify.NewDiscordDispatcher(api.NewDefaultHTTPClient(cfg.BattleNet.HTTPTimeout),
		cfg.DiscordMaxAttempts, cfg.DiscordRetryBackoff, logger)

	// --- 6. Business Logic Service ---
	leaderboardService := service.NewLeaderboardService(service.Dependencies{
		Tokens:     tokenCache,
		Roster:     rosterProvider,
		Accounts:   accountStore,
		Entries:    entryStore,
		Profiles:   bnet,
		Resolver:   roster.NewResolver(cfg.TrackedRealms),
		Aggregator: aggregator,
		Builder:    builder,
		Dispatcher: dispatcher,
	}, service.Options{
		WebhookURL:               cfg.DiscordWebhookURL,
		CharacterRefreshInterval: cfg.CharacterRefreshInterval,
		ProfileConcurrency:       cfg.StatsMaxConcurrency,
	}, logger)

	// --- 7. Assignment Manager and Run Scheduler ---
	assignmentManager := cluster.NewServiceAssignmentManager(members, serviceID, serviceType, cfg.HeartbeatInterval, logger)
	go assignmentManager.Start()
	defer assignmentManager.Stop()

	runScheduler := scheduler.NewRunScheduler(leaderboardService, assignmentManager, scheduler.Options{
		CheckInterval: cfg.RunCheckInterval,
		RunInterval:   cfg.RunInterval,
		RunTimeout:    cfg.RunTimeout,
	}, logger)
	go runScheduler.Start()
	defer runScheduler.Stop()

	// --- 8. Setup HTTP Server and Register Routes ---
	baseServer := api.NewBaseServer(cfg.ListenAddr, cfg.RunTimeout+10*time.Second, logger)
	leaderboardapi.NewLeaderboardAPIHandlers(leaderboardService, cfg.RunTimeout, logger).RegisterRoutes(baseServer.Router)

	// --- 9. Start HTTP Server ---
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- baseServer.Start()
	}()

	// --- 10. Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := baseServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Server gracefully stopped")
}
