package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Ftotnem/isabot-go/leaderboard/credential"
	"github.com/Ftotnem/isabot-go/leaderboard/entry"
	"github.com/Ftotnem/isabot-go/leaderboard/notify"
	"github.com/Ftotnem/isabot-go/leaderboard/roster"
	"github.com/Ftotnem/isabot-go/leaderboard/stats"
	"github.com/Ftotnem/isabot-go/leaderboard/store"
	"github.com/Ftotnem/isabot-go/shared/battlenet"
	"github.com/Ftotnem/isabot-go/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockTokens struct {
	getFn func(ctx context.Context) (models.Credential, error)
}

func (m mockTokens) GetToken(ctx context.Context) (models.Credential, error) { return m.getFn(ctx) }

type mockRoster struct {
	membershipFn func(ctx context.Context, cred models.Credential) (models.RosterMembership, error)
}

func (m mockRoster) Membership(ctx context.Context, cred models.Credential) (models.RosterMembership, error) {
	return m.membershipFn(ctx, cred)
}

type mockProfiles struct {
	mu      sync.Mutex
	tokens  []string
	fetchFn func(ctx context.Context, userToken string) (*battlenet.AccountProfileResponse, error)
}

func (m *mockProfiles) AccountProfile(ctx context.Context, userToken string) (*battlenet.AccountProfileResponse, error) {
	m.mu.Lock()
	m.tokens = append(m.tokens, userToken)
	m.mu.Unlock()
	return m.fetchFn(ctx, userToken)
}

type mockAggregator struct {
	aggregateFn func(ctx context.Context, inScope map[string][]models.Character, accounts map[string]models.Account, cred models.Credential) (map[string]models.AccountAggregate, error)
}

func (m mockAggregator) Aggregate(ctx context.Context, inScope map[string][]models.Character, accounts map[string]models.Account, cred models.Credential) (map[string]models.AccountAggregate, error) {
	return m.aggregateFn(ctx, inScope, accounts, cred)
}

type recordingDispatcher struct {
	messages []notify.Message
	url      string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, messages []notify.Message, webhookURL string) int {
	d.messages = append(d.messages, messages...)
	d.url = webhookURL
	return len(messages)
}

type failingEntryStore struct{}

func (failingEntryStore) Create(context.Context, models.Entry) (string, error) {
	return "", errors.New("disk full")
}

var (
	now  = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	cred = models.Credential{AccessToken: "cc", ExpiresAt: now.Add(time.Hour)}
)

type fixture struct {
	accounts   *store.MemoryAccountStore
	entries    *store.MemoryEntryStore
	profiles   *mockProfiles
	dispatcher *recordingDispatcher
	deps       Dependencies
}

func newFixture(accounts ...models.Account) *fixture {
	f := &fixture{
		accounts:   store.NewMemoryAccountStore(accounts...),
		entries:    store.NewMemoryEntryStore(),
		dispatcher: &recordingDispatcher{},
		profiles: &mockProfiles{fetchFn: func(context.Context, string) (*battlenet.AccountProfileResponse, error) {
			return nil, errors.New("profile fetch not expected")
		}},
	}
	f.deps = Dependencies{
		Tokens: mockTokens{getFn: func(context.Context) (models.Credential, error) { return cred, nil }},
		Roster: mockRoster{membershipFn: func(context.Context, models.Credential) (models.RosterMembership, error) {
			return models.NewRosterMembership(
				models.RosterKey{RealmSlug: "shandris", CharacterID: 1},
				models.RosterKey{RealmSlug: "shandris", CharacterID: 2},
			), nil
		}},
		Accounts: f.accounts,
		Entries:  f.entries,
		Profiles: f.profiles,
		Resolver: roster.NewResolver([]string{"shandris", "bronzebeard"}),
		Aggregator: mockAggregator{aggregateFn: func(_ context.Context, inScope map[string][]models.Character, _ map[string]models.Account, _ models.Credential) (map[string]models.AccountAggregate, error) {
			out := make(map[string]models.AccountAggregate, len(inScope))
			for id, chars := range inScope {
				out[id] = models.AccountAggregate{AccountID: id, MountCount: 10 * len(chars), BGTotalWon: len(chars)}
			}
			return out, nil
		}},
		Builder:    entry.NewBuilder(f.entries, zap.NewNop()),
		Dispatcher: f.dispatcher,
	}
	return f
}

func (f *fixture) service() *LeaderboardService {
	return NewLeaderboardService(f.deps, Options{
		WebhookURL:               "https://discord.test/hook",
		CharacterRefreshInterval: time.Hour,
		Now:                      func() time.Time { return now },
	}, zap.NewNop())
}

func recent() *time.Time {
	t := now.Add(-time.Minute)
	return &t
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(
		models.Account{ID: "1", BattleTag: "p1#1111", CharactersUpdatedAt: recent(), Characters: []models.Character{
			{ID: 1, Name: "a", RealmSlug: "shandris"},
		}},
		models.Account{ID: "2", BattleTag: "p2#2222", CharactersUpdatedAt: recent(), Characters: []models.Character{
			{ID: 2, Name: "b", RealmSlug: "shandris"},
			{ID: 9, Name: "not-in-guild", RealmSlug: "shandris"},
		}},
		models.Account{ID: "3", BattleTag: "p3#3333", CharactersUpdatedAt: recent(), Characters: []models.Character{
			{ID: 1, Name: "elsewhere", RealmSlug: "area-52"},
		}},
	)

	res, err := f.service().Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.Accounts)
	assert.Equal(t, 2, res.InScopeAccounts)
	assert.Equal(t, 2, res.RosterSize)
	assert.Equal(t, now.Unix(), res.DateCreated)
	assert.Equal(t, 2, res.Notifications)

	latest, err := f.entries.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.EntryID, latest.ID)
	assert.Equal(t, map[string]models.PlayerInfo{"1": {BattleTag: "p1", ID: "1"}, "2": {BattleTag: "p2", ID: "2"}}, latest.Players)

	require.Len(t, f.dispatcher.messages, 2)
	assert.Equal(t, "https://discord.test/hook", f.dispatcher.url)
	assert.Equal(t, strings.Join([]string{
		"battletag | Number of Mounts",
		"p1        | 10              ",
		"p2        | 10              ",
	}, "\n"), f.dispatcher.messages[0].Table)
	assert.Contains(t, f.dispatcher.messages[1].Table, "Total Normal BG Wins")
	assert.Empty(t, f.profiles.tokens)
}

func TestRun_RefreshesStaleCharacters(t *testing.T) {
	stale := now.Add(-48 * time.Hour)
	f := newFixture(
		models.Account{ID: "1", BattleTag: "p1#1", AccessToken: "user-1", CharactersUpdatedAt: &stale},
		models.Account{ID: "2", BattleTag: "p2#2", AccessToken: "user-2", Characters: []models.Character{
			{ID: 2, Name: "stored", RealmSlug: "shandris"},
		}},
	)
	f.profiles.fetchFn = func(_ context.Context, token string) (*battlenet.AccountProfileResponse, error) {
		if token == "user-2" {
			return nil, errors.New("401")
		}
		return &battlenet.AccountProfileResponse{WoWAccounts: []battlenet.WoWAccount{{Characters: []battlenet.ProfileCharacter{
			{ID: 1, Name: "fresh", Realm: battlenet.RealmRef{Slug: "shandris"}},
		}}}}, nil
	}

	res, err := f.service().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.InScopeAccounts)
	assert.ElementsMatch(t, []string{"user-1", "user-2"}, f.profiles.tokens)

	accounts, _ := f.accounts.ListAccounts(context.Background())
	require.Len(t, accounts[0].Characters, 1)
	assert.Equal(t, "fresh", accounts[0].Characters[0].Name)
	assert.Equal(t, now, *accounts[0].CharactersUpdatedAt)
	assert.Equal(t, "stored", accounts[1].Characters[0].Name)
	assert.Nil(t, accounts[1].CharactersUpdatedAt)
}

func TestRun_FatalStages(t *testing.T) {
	account := models.Account{ID: "1", CharactersUpdatedAt: recent(), Characters: []models.Character{{ID: 1, RealmSlug: "shandris"}}}

	tests := []struct {
		name    string
		mutate  func(f *fixture)
		wantErr error
	}{
		{
			name: "credential",
			mutate: func(f *fixture) {
				f.deps.Tokens = mockTokens{getFn: func(context.Context) (models.Credential, error) {
					return models.Credential{}, credential.ErrCredentialUnavailable
				}}
			},
			wantErr: credential.ErrCredentialUnavailable,
		},
		{
			name: "roster",
			mutate: func(f *fixture) {
				f.deps.Roster = mockRoster{membershipFn: func(context.Context, models.Credential) (models.RosterMembership, error) {
					return nil, roster.ErrRosterUnavailable
				}}
			},
			wantErr: roster.ErrRosterUnavailable,
		},
		{
			name: "aggregation",
			mutate: func(f *fixture) {
				f.deps.Aggregator = mockAggregator{aggregateFn: func(context.Context, map[string][]models.Character, map[string]models.Account, models.Credential) (map[string]models.AccountAggregate, error) {
					return nil, stats.ErrAggregationUnavailable
				}}
			},
			wantErr: stats.ErrAggregationUnavailable,
		},
		{
			name: "persistence",
			mutate: func(f *fixture) {
				f.deps.Builder = entry.NewBuilder(failingEntryStore{}, zap.NewNop())
			},
			wantErr: entry.ErrPersistenceFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(account)
			tt.mutate(f)

			_, err := f.service().Run(context.Background())
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Empty(t, f.dispatcher.messages)
		})
	}
}

func TestRun_NoAccountsInScopeFails(t *testing.T) {
	f := newFixture()
	f.deps.Aggregator = stats.NewAggregator(nil, 1, zap.NewNop())

	_, err := f.service().Run(context.Background())
	assert.True(t, errors.Is(err, stats.ErrAggregationUnavailable))
}

func TestRun_RejectsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := newFixture(models.Account{ID: "1", CharactersUpdatedAt: recent(), Characters: []models.Character{{ID: 1, RealmSlug: "shandris"}}})
	f.deps.Tokens = mockTokens{getFn: func(context.Context) (models.Credential, error) {
		close(started)
		<-release
		return cred, nil
	}}
	svc := f.service()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background())
		done <- err
	}()
	<-started

	_, err := svc.Run(context.Background())
	assert.True(t, errors.Is(err, ErrRunInProgress))

	close(release)
	assert.NoError(t, <-done)
}

func TestRenderLatest(t *testing.T) {
	f := newFixture()
	svc := f.service()
	ctx := context.Background()

	_, err := svc.RenderLatest(ctx, models.MetricMounts)
	assert.True(t, errors.Is(err, store.ErrEntryNotFound))

	_, err = svc.RenderLatest(ctx, models.Metric("raids"))
	assert.True(t, errors.Is(err, models.ErrUnknownMetric))

	_, err = f.entries.Create(ctx, models.Entry{
		Players: map[string]models.PlayerInfo{"1": {BattleTag: "p1", ID: "1"}},
		Mounts:  map[string]models.MountStats{"1": {NumberOfMounts: 4}},
	})
	require.NoError(t, err)

	got, err := svc.RenderLatest(ctx, models.MetricMounts)
	require.NoError(t, err)
	assert.Equal(t, "battletag | Number of Mounts\np1        | 4               ", got)

	list, err := svc.ListEntries(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
