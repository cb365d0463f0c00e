// leaderboard/service/leaderboard_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ftotnem/isabot-go/leaderboard/entry"
	"github.com/Ftotnem/isabot-go/leaderboard/notify"
	"github.com/Ftotnem/isabot-go/leaderboard/roster"
	"github.com/Ftotnem/isabot-go/leaderboard/table"
	"github.com/Ftotnem/isabot-go/shared/battlenet"
	"github.com/Ftotnem/isabot-go/shared/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRunInProgress       = fmt.Errorf("a leaderboard run is already in progress")
	ErrAccountsUnavailable = fmt.Errorf("registered accounts unavailable")
)

// CredentialProvider hands out the application's client-credentials token.
type CredentialProvider interface {
	GetToken(ctx context.Context) (models.Credential, error)
}

type RosterSource interface {
	Membership(ctx context.Context, cred models.Credential) (models.RosterMembership, error)
}

type AccountStore interface {
	ListAccounts(ctx context.Context) ([]models.Account, error)
	UpdateCharacters(ctx context.Context, accountID string, characters []models.Character, updatedAt time.Time) error
}

// EntryReader serves persisted entries, newest first.
type EntryReader interface {
	Latest(ctx context.Context) (*models.Entry, error)
	List(ctx context.Context, limit int) ([]models.Entry, error)
}

type ProfileFetcher interface {
	AccountProfile(ctx context.Context, userToken string) (*battlenet.AccountProfileResponse, error)
}

type StatsAggregator interface {
	Aggregate(ctx context.Context, inScope map[string][]models.Character, accounts map[string]models.Account, cred models.Credential) (map[string]models.AccountAggregate, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, messages []notify.Message, webhookURL string) int
}

// Dependencies groups the collaborators of a LeaderboardService.
type Dependencies struct {
	Tokens     CredentialProvider
	Roster     RosterSource
	Accounts   AccountStore
	Entries    EntryReader
	Profiles   ProfileFetcher
	Resolver   *roster.Resolver
	Aggregator StatsAggregator
	Builder    *entry.Builder
	Dispatcher Dispatcher
}

type Options struct {
	WebhookURL string
	// Stored character lists younger than this are reused without a profile call.
	CharacterRefreshInterval time.Duration
	ProfileConcurrency       int
	Now                      func() time.Time
}

// RunResult summarizes one completed pipeline run.
type RunResult struct {
	RunID           string        `json:"run_id"`
	EntryID         string        `json:"entry_id"`
	DateCreated     int64         `json:"date_created"`
	Accounts        int           `json:"accounts"`
	InScopeAccounts int           `json:"in_scope_accounts"`
	RosterSize      int           `json:"roster_size"`
	Notifications   int           `json:"notifications"`
	Duration        time.Duration `json:"duration_ns"`
}

// LeaderboardService runs the weekly pipeline: credential, roster, characters,
// statistics, entry, tables and notification.
type LeaderboardService struct {
	deps    Dependencies
	opts    Options
	running sync.Mutex
	logger  *zap.Logger
}

func NewLeaderboardService(deps Dependencies, opts Options, logger *zap.Logger) *LeaderboardService {
	if opts.ProfileConcurrency <= 0 {
		opts.ProfileConcurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LeaderboardService{
		deps:   deps,
		opts:   opts,
		logger: logger.Named("leaderboard"),
	}
}

// Run executes one pipeline run. Only one run executes at a time per process;
// overlapping calls fail with ErrRunInProgress.
func (s *LeaderboardService) Run(ctx context.Context) (*RunResult, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	start := s.opts.Now()
	result := &RunResult{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", result.RunID))
	log.Info("leaderboard run started")

	// 1. Application credential
	cred, err := s.deps.Tokens.GetToken(ctx)
	if err != nil {
		log.Error("leaderboard run aborted: no credential", zap.Error(err))
		return nil, err
	}

	// 2. Registered accounts
	accounts, err := s.deps.Accounts.ListAccounts(ctx)
	if err != nil {
		log.Error("leaderboard run aborted: cannot list accounts", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrAccountsUnavailable, err)
	}
	result.Accounts = len(accounts)
	byID := make(map[string]models.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	// 3. Guild roster
	membership, err := s.deps.Roster.Membership(ctx, cred)
	if err != nil {
		log.Error("leaderboard run aborted: roster unavailable", zap.Error(err))
		return nil, err
	}
	result.RosterSize = len(membership)

	// 4. Character lists
	characters := s.refreshCharacters(ctx, log, accounts)

	// 5. Scope and statistics
	inScope := s.deps.Resolver.ResolveInScope(characters, membership)
	result.InScopeAccounts = len(inScope)
	log.Info("accounts resolved",
		zap.Int("accounts", len(accounts)),
		zap.Int("with_characters", len(characters)),
		zap.Int("in_scope", len(inScope)),
		zap.Int("roster_size", len(membership)))

	aggregates, err := s.deps.Aggregator.Aggregate(ctx, inScope, byID, cred)
	if err != nil {
		log.Error("leaderboard run aborted: aggregation failed", zap.Error(err))
		return nil, err
	}

	// 6. Entry
	e := s.deps.Builder.Build(aggregates, byID)
	id, err := s.deps.Builder.Persist(ctx, e)
	if err != nil {
		log.Error("leaderboard run aborted: entry not persisted", zap.Error(err))
		return nil, err
	}
	e.ID = id
	result.EntryID = id
	result.DateCreated = e.DateCreated

	// 7. Tables and notification, best effort
	result.Notifications = s.deps.Dispatcher.Dispatch(ctx, s.messages(log, e), s.opts.WebhookURL)

	result.Duration = s.opts.Now().Sub(start)
	log.Info("leaderboard run finished",
		zap.String("entry_id", id),
		zap.Int("in_scope", result.InScopeAccounts),
		zap.Int("notifications", result.Notifications),
		zap.Duration("duration", result.Duration))
	return result, nil
}

var metricTitles = map[models.Metric]string{
	models.MetricMounts:       "**Mount Leaderboard**",
	models.MetricNormalBGWins: "**Normal Battleground Wins Leaderboard**",
}

func (s *LeaderboardService) messages(log *zap.Logger, e models.Entry) []notify.Message {
	var out []notify.Message
	for _, m := range models.Metrics() {
		t, err := table.Format(e, m)
		if err != nil {
			log.Error("failed to format leaderboard table", zap.String("metric", string(m)), zap.Error(err))
			continue
		}
		out = append(out, notify.Message{Title: metricTitles[m], Table: t})
	}
	return out
}

// refreshCharacters returns each account's character list, refreshed from the
// account profile where the stored list is stale. Any failure falls back to the
// stored list. Accounts that end up without characters are omitted.
func (s *LeaderboardService) refreshCharacters(ctx context.Context, log *zap.Logger, accounts []models.Account) map[string][]models.Character {
	var (
		mu  sync.Mutex
		out = make(map[string][]models.Character, len(accounts))
	)
	now := s.opts.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ProfileConcurrency)
	for _, a := range accounts {
		g.Go(func() error {
			chars := s.accountCharacters(gctx, log, a, now)
			if len(chars) == 0 {
				return nil
			}
			mu.Lock()
			out[a.ID] = chars
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *LeaderboardService) accountCharacters(ctx context.Context, log *zap.Logger, a models.Account, now time.Time) []models.Character {
	fresh := a.CharactersUpdatedAt != nil && now.Sub(*a.CharactersUpdatedAt) < s.opts.CharacterRefreshInterval
	if (fresh && len(a.Characters) > 0) || !a.HasUsableToken(now) {
		return a.Characters
	}

	profile, err := s.deps.Profiles.AccountProfile(ctx, a.AccessToken)
	if err != nil {
		log.Warn("character refresh failed, using stored characters",
			zap.String("account_id", a.ID),
			zap.Int("stored", len(a.Characters)),
			zap.Error(err))
		return a.Characters
	}

	chars := profile.Characters()
	if err := s.deps.Accounts.UpdateCharacters(ctx, a.ID, chars, now); err != nil {
		log.Warn("failed to store refreshed characters", zap.String("account_id", a.ID), zap.Error(err))
	}
	return chars
}

// LatestEntry returns the newest persisted entry.
func (s *LeaderboardService) LatestEntry(ctx context.Context) (*models.Entry, error) {
	return s.deps.Entries.Latest(ctx)
}

func (s *LeaderboardService) ListEntries(ctx context.Context, limit int) ([]models.Entry, error) {
	return s.deps.Entries.List(ctx, limit)
}

// RenderLatest formats the newest entry for one metric.
func (s *LeaderboardService) RenderLatest(ctx context.Context, metric models.Metric) (string, error) {
	if _, err := table.Header(metric); err != nil {
		return "", err
	}
	e, err := s.deps.Entries.Latest(ctx)
	if err != nil {
		return "", err
	}
	return table.Format(*e, metric)
}
