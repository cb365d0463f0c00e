// leaderboard/store/memory.go
package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Ftotnem/isabot-go/shared/models"
	"github.com/google/uuid"
)

// MemoryEntryStore keeps entries in process memory. Used with
// ENTRY_STORE_BACKEND=memory and in tests.
type MemoryEntryStore struct {
	mu      sync.RWMutex
	entries []models.Entry
}

func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{}
}

func (s *MemoryEntryStore) Create(_ context.Context, entry models.Entry) (string, error) {
	entry.ID = uuid.New().String()
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return entry.ID, nil
}

func (s *MemoryEntryStore) Latest(ctx context.Context) (*models.Entry, error) {
	entries, _ := s.List(ctx, 1)
	if len(entries) == 0 {
		return nil, ErrEntryNotFound
	}
	return &entries[0], nil
}

// List orders by date_created descending; entries created in the same second
// are ordered newest insert first.
func (s *MemoryEntryStore) List(_ context.Context, limit int) ([]models.Entry, error) {
	s.mu.RLock()
	out := slices.Clone(s.entries)
	s.mu.RUnlock()

	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b models.Entry) int {
		return cmp.Compare(b.DateCreated, a.DateCreated)
	})
	if n := normalizeLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// MemoryAccountStore holds registered accounts keyed by id.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

func NewMemoryAccountStore(accounts ...models.Account) *MemoryAccountStore {
	s := &MemoryAccountStore{accounts: make(map[string]models.Account, len(accounts))}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

// ListAccounts returns accounts ordered by id.
func (s *MemoryAccountStore) ListAccounts(context.Context) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b models.Account) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryAccountStore) UpdateCharacters(_ context.Context, accountID string, characters []models.Character, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	a.Characters = slices.Clone(characters)
	a.CharactersUpdatedAt = &updatedAt
	s.accounts[accountID] = a
	return nil
}

// MemoryCredentialStore holds a single credential.
type MemoryCredentialStore struct {
	mu   sync.Mutex
	cred *models.Credential
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (s *MemoryCredentialStore) Latest(context.Context) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, nil
	}
	c := *s.cred
	return &c, nil
}

func (s *MemoryCredentialStore) Save(_ context.Context, cred models.Credential) error {
	s.mu.Lock()
	s.cred = &cred
	s.mu.Unlock()
	return nil
}

type rosterEntry struct {
	membership models.RosterMembership
	expiresAt  time.Time
}

// MemoryRosterCache is a TTL map of guild rosters.
type MemoryRosterCache struct {
	mu      sync.Mutex
	rosters map[string]rosterEntry
	now     func() time.Time
}

func NewMemoryRosterCache() *MemoryRosterCache {
	return &MemoryRosterCache{rosters: make(map[string]rosterEntry), now: time.Now}
}

func (c *MemoryRosterCache) Get(_ context.Context, realmSlug, guildSlug string) (models.RosterMembership, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.rosters[realmSlug+"/"+guildSlug]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return models.NewRosterMembership(e.membership.Keys()...), true, nil
}

func (c *MemoryRosterCache) Set(_ context.Context, realmSlug, guildSlug string, m models.RosterMembership, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rosters[realmSlug+"/"+guildSlug] = rosterEntry{
		membership: models.NewRosterMembership(m.Keys()...),
		expiresAt:  c.now().Add(ttl),
	}
	return nil
}
