// leaderboard/roster/provider.go
package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/Ftotnem/isabot-go/shared/battlenet"
	"github.com/Ftotnem/isabot-go/shared/models"
	"go.uber.org/zap"
)

var ErrRosterUnavailable = fmt.Errorf("guild roster unavailable")

// Cache stores roster membership between runs. Get reports found=false on a miss.
type Cache interface {
	Get(ctx context.Context, realmSlug, guildSlug string) (models.RosterMembership, bool, error)
	Set(ctx context.Context, realmSlug, guildSlug string, membership models.RosterMembership, ttl time.Duration) error
}

// Fetcher reads a guild roster from the game-data API.
type Fetcher interface {
	GuildRoster(ctx context.Context, token, realmSlug, guildSlug string) (*battlenet.GuildRosterResponse, error)
}

// Provider supplies the guild's roster membership, cache first.
type Provider struct {
	cache     Cache
	fetcher   Fetcher
	realmSlug string
	guildSlug string
	ttl       time.Duration
	logger    *zap.Logger
}

func NewProvider(cache Cache, fetcher Fetcher, realmSlug, guildSlug string, ttl time.Duration, logger *zap.Logger) *Provider {
	return &Provider{
		cache:     cache,
		fetcher:   fetcher,
		realmSlug: realmSlug,
		guildSlug: guildSlug,
		ttl:       ttl,
		logger:    logger.Named("roster").With(zap.String("guild", guildSlug), zap.String("realm", realmSlug)),
	}
}

// Membership returns the cached roster, fetching it when the cache is empty or unreadable.
func (p *Provider) Membership(ctx context.Context, cred models.Credential) (models.RosterMembership, error) {
	membership, found, err := p.cache.Get(ctx, p.realmSlug, p.guildSlug)
	switch {
	case err != nil:
		p.logger.Warn("roster cache read failed, fetching from API", zap.Error(err))
	case found:
		return membership, nil
	}
	return p.Refresh(ctx, cred)
}

// Refresh fetches the roster from the API and replaces the cached copy.
func (p *Provider) Refresh(ctx context.Context, cred models.Credential) (models.RosterMembership, error) {
	resp, err := p.fetcher.GuildRoster(ctx, cred.AccessToken, p.realmSlug, p.guildSlug)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRosterUnavailable, err)
	}

	membership := resp.Membership(p.realmSlug)
	if err := p.cache.Set(ctx, p.realmSlug, p.guildSlug, membership, p.ttl); err != nil {
		p.logger.Warn("failed to cache roster", zap.Error(err))
	}
	p.logger.Info("guild roster refreshed", zap.Int("members", len(membership)))
	return membership, nil
}
