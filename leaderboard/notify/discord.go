// leaderboard/notify/discord.go
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Ftotnem/isabot-go/leaderboard/table"
	"github.com/Ftotnem/isabot-go/shared/api"
	"go.uber.org/zap"
)

// Discord rejects message content above this many characters.
const discordMessageLimit = 2000

var ErrNotificationFailure = fmt.Errorf("leaderboard notification failed")

// Message is one rendered table and the line announcing it.
type Message struct {
	Title string
	Table string
}

type webhookPayload struct {
	Content string `json:"content"`
}

// DiscordDispatcher posts rendered tables to a Discord channel webhook.
type DiscordDispatcher struct {
	httpClient   *http.Client
	maxAttempts  int
	retryBackoff time.Duration
	logger       *zap.Logger
}

// NewDiscordDispatcher posts each part up to maxAttempts times. Rate limits and
// server errors are retried; a missing webhook is not.
func NewDiscordDispatcher(httpClient *http.Client, maxAttempts int, retryBackoff time.Duration, logger *zap.Logger) *DiscordDispatcher {
	return &DiscordDispatcher{
		httpClient:   httpClient,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
		logger:       logger.Named("notify"),
	}
}

// Dispatch sends every message to webhookURL, splitting tables that do not fit
// in one Discord message. Failures are logged and never returned; it reports how
// many posts were delivered.
func (d *DiscordDispatcher) Dispatch(ctx context.Context, messages []Message, webhookURL string) int {
	if webhookURL == "" {
		d.logger.Warn("DISCORD_WEBHOOK_URL not set, skipping leaderboard notification",
			zap.Int("messages", len(messages)))
		return 0
	}

	client := api.NewClient(webhookURL, d.httpClient,
		api.WithRetry(d.maxAttempts, d.retryBackoff),
		api.WithLogger(d.logger))
	delivered := 0
	for _, msg := range messages {
		for i, content := range render(msg) {
			if err := client.Post(ctx, "", webhookPayload{Content: content}, nil); err != nil {
				d.logger.Error("failed to post leaderboard table",
					zap.String("title", msg.Title),
					zap.Int("part", i+1),
					zap.Error(fmt.Errorf("%w: %w", ErrNotificationFailure, err)))
				continue
			}
			delivered++
		}
	}
	d.logger.Info("leaderboard notification dispatched", zap.Int("posts", delivered))
	return delivered
}

// render wraps each chunk of the table in a code block. The title is only
// carried on the first part.
func render(msg Message) []string {
	const fence = "```"
	prefix := ""
	if msg.Title != "" {
		prefix = msg.Title + "\n"
	}
	overhead := len(prefix) + len(fence+"\n") + len("\n"+fence)

	chunks := table.Chunk(msg.Table, discordMessageLimit-overhead)
	out := make([]string, 0, len(chunks))
	for i, c := range chunks {
		var b strings.Builder
		if i == 0 {
			b.WriteString(prefix)
		}
		b.WriteString(fence + "\n")
		b.WriteString(c)
		b.WriteString("\n" + fence)
		out = append(out, b.String())
	}
	return out
}
