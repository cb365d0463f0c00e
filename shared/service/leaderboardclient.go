// shared/service/leaderboardclient.go
package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Ftotnem/isabot-go/shared/api"
	"github.com/Ftotnem/isabot-go/shared/models"
)

// LeaderboardServiceClient is a client for the leaderboard-service HTTP API.
type LeaderboardServiceClient struct {
	apiClient *api.Client
}

// NewLeaderboardClient creates a client for the leaderboard-service at baseURL.
// timeout bounds each request, including a synchronous run.
func NewLeaderboardClient(baseURL string, timeout time.Duration) *LeaderboardServiceClient {
	return &LeaderboardServiceClient{
		apiClient: api.NewClient(baseURL, api.NewDefaultHTTPClient(timeout)),
	}
}

// RunResult mirrors the response of POST /leaderboard/run.
type RunResult struct {
	RunID           string `json:"run_id"`
	EntryID         string `json:"entry_id"`
	DateCreated     int64  `json:"date_created"`
	Accounts        int    `json:"accounts"`
	InScopeAccounts int    `json:"in_scope_accounts"`
	RosterSize      int    `json:"roster_size"`
	Notifications   int    `json:"notifications"`
	DurationNanos   int64  `json:"duration_ns"`
}

// TriggerRun asks the service to run the pipeline now and waits for it to finish.
// The request is never retried; a second attempt would produce a second entry.
func (c *LeaderboardServiceClient) TriggerRun(ctx context.Context) (*RunResult, error) {
	res := &RunResult{}
	if err := c.apiClient.Post(ctx, "/leaderboard/run", nil, res); err != nil {
		return nil, fmt.Errorf("failed to trigger leaderboard run: %w", err)
	}
	return res, nil
}

// LatestEntry returns api.ErrNotFound (wrapped) when no entry exists yet.
func (c *LeaderboardServiceClient) LatestEntry(ctx context.Context) (*models.Entry, error) {
	e := &models.Entry{}
	if err := c.apiClient.Get(ctx, "/leaderboard/entries/latest", e); err != nil {
		return nil, fmt.Errorf("failed to get latest leaderboard entry: %w", err)
	}
	return e, nil
}

func (c *LeaderboardServiceClient) ListEntries(ctx context.Context, limit int) ([]models.Entry, error) {
	var entries []models.Entry
	var opts []api.RequestOption
	if limit > 0 {
		opts = append(opts, api.WithQuery("limit", strconv.Itoa(limit)))
	}
	if err := c.apiClient.Get(ctx, "/leaderboard/entries", &entries, opts...); err != nil {
		return nil, fmt.Errorf("failed to list leaderboard entries: %w", err)
	}
	return entries, nil
}

// LatestTable returns the newest entry rendered as a text table for metric.
func (c *LeaderboardServiceClient) LatestTable(ctx context.Context, metric models.Metric) (string, error) {
	text, err := c.apiClient.GetText(ctx, "/leaderboard/entries/latest/"+url.PathEscape(string(metric)))
	if err != nil {
		return "", fmt.Errorf("failed to get %s leaderboard table: %w", metric, err)
	}
	return text, nil
}
