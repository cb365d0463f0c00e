// shared/battlenet/client.go
package battlenet

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Ftotnem/isabot-go/shared/api"
	"github.com/Ftotnem/isabot-go/shared/config"
	"go.uber.org/zap"
)

const namespaceHeader = "Battlenet-Namespace"

// Client reads the World of Warcraft game-data and profile APIs. Every call is
// bounded by the HTTP timeout and retried per the configured policy.
type Client struct {
	apiClient *api.Client
	region    string
	locale    string
}

func NewClient(cfg config.BattleNetConfig, logger *zap.Logger) *Client {
	apiClient := api.NewClient(
		strings.TrimRight(cfg.APIBaseURL, "/"),
		api.NewDefaultHTTPClient(cfg.HTTPTimeout),
		api.WithRetry(cfg.MaxAttempts, cfg.RetryBackoff),
		api.WithLogger(logger.Named("battlenet")),
	)
	return &Client{
		apiClient: apiClient,
		region:    cfg.Region,
		locale:    cfg.Locale,
	}
}

func (c *Client) get(ctx context.Context, path, namespace, token string, result interface{}) error {
	return c.apiClient.Get(ctx, path, result,
		api.WithBearerToken(token),
		api.WithHeader(namespaceHeader, fmt.Sprintf("%s-%s", namespace, c.region)),
		api.WithQuery("locale", c.locale),
	)
}

// AccountProfile fetches the characters of the account that owns userToken.
func (c *Client) AccountProfile(ctx context.Context, userToken string) (*AccountProfileResponse, error) {
	var resp AccountProfileResponse
	if err := c.get(ctx, "/profile/user/wow", "profile", userToken, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch account profile: %w", err)
	}
	return &resp, nil
}

// AccountMounts fetches the account-wide mount collection of the account that owns userToken.
func (c *Client) AccountMounts(ctx context.Context, userToken string) (*MountsCollectionResponse, error) {
	var resp MountsCollectionResponse
	if err := c.get(ctx, "/profile/user/wow/collections/mounts", "profile", userToken, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch account mounts: %w", err)
	}
	return &resp, nil
}

// PvPSummary fetches a character's battleground summary using a client credential.
func (c *Client) PvPSummary(ctx context.Context, token, realmSlug, characterName string) (*PvPSummaryResponse, error) {
	path := fmt.Sprintf("/profile/wow/character/%s/%s/pvp-summary",
		url.PathEscape(realmSlug), url.PathEscape(strings.ToLower(characterName)))

	var resp PvPSummaryResponse
	if err := c.get(ctx, path, "profile", token, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch pvp summary for %s-%s: %w", characterName, realmSlug, err)
	}
	return &resp, nil
}

// GuildRoster fetches a guild's member list using a client credential.
func (c *Client) GuildRoster(ctx context.Context, token, realmSlug, guildSlug string) (*GuildRosterResponse, error) {
	path := fmt.Sprintf("/data/wow/guild/%s/%s/roster", url.PathEscape(realmSlug), url.PathEscape(guildSlug))

	var resp GuildRosterResponse
	if err := c.get(ctx, path, "profile", token, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch roster for guild %s on %s: %w", guildSlug, realmSlug, err)
	}
	return &resp, nil
}
