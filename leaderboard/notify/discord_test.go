package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type webhookRecorder struct {
	mu       sync.Mutex
	contents []string
	statuses []int // consumed one per call before falling back to status
	status   int
}

func newTestDispatcher(client *http.Client, attempts int) *DiscordDispatcher {
	return NewDiscordDispatcher(client, attempts, 0, zap.NewNop())
}

func (rec *webhookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	rec.mu.Lock()
	rec.contents = append(rec.contents, p.Content)
	status := rec.status
	if len(rec.statuses) > 0 {
		status, rec.statuses = rec.statuses[0], rec.statuses[1:]
	}
	rec.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func TestDispatch_PostsEachTableAsCodeBlock(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	d := newTestDispatcher(srv.Client(), 1)
	n := d.Dispatch(context.Background(), []Message{
		{Title: "Mounts", Table: "battletag | Number of Mounts\np1        | 10              "},
		{Title: "Battlegrounds", Table: "battletag | Total Normal BG Wins"},
	}, srv.URL)

	assert.Equal(t, 2, n)
	require.Len(t, rec.contents, 2)
	assert.Equal(t, "Mounts\n```\nbattletag | Number of Mounts\np1        | 10              \n```", rec.contents[0])
	assert.Equal(t, "Battlegrounds\n```\nbattletag | Total Normal BG Wins\n```", rec.contents[1])
}

func TestDispatch_SplitsLongTables(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	lines := []string{"battletag            | Number of Mounts"}
	for i := 0; i < 200; i++ {
		lines = append(lines, fmt.Sprintf("player-%03d           | %-16d", i, 1000-i))
	}

	d := newTestDispatcher(srv.Client(), 1)
	n := d.Dispatch(context.Background(), []Message{{Title: "Mounts", Table: strings.Join(lines, "\n")}}, srv.URL)

	require.Greater(t, n, 1)
	require.Len(t, rec.contents, n)
	rows := 0
	for i, c := range rec.contents {
		assert.LessOrEqual(t, len(c), discordMessageLimit)
		assert.Contains(t, c, lines[0])
		assert.True(t, strings.HasSuffix(c, "\n```"))
		assert.Equal(t, i == 0, strings.HasPrefix(c, "Mounts\n"))
		rows += strings.Count(c, "player-")
	}
	assert.Equal(t, 200, rows)
}

func TestDispatch_FailuresAreSwallowed(t *testing.T) {
	rec := &webhookRecorder{status: http.StatusInternalServerError}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	d := newTestDispatcher(srv.Client(), 3)
	n := d.Dispatch(context.Background(), []Message{{Title: "a", Table: "x"}, {Title: "b", Table: "y"}}, srv.URL)

	assert.Equal(t, 0, n)
	assert.Len(t, rec.contents, 6)
}

func TestDispatch_RetriesTransientFailures(t *testing.T) {
	rec := &webhookRecorder{statuses: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	d := newTestDispatcher(srv.Client(), 3)
	n := d.Dispatch(context.Background(), []Message{{Title: "Mounts", Table: "battletag | Number of Mounts"}}, srv.URL)

	assert.Equal(t, 1, n)
	require.Len(t, rec.contents, 3)
	assert.Equal(t, rec.contents[0], rec.contents[2])
}

func TestDispatch_MissingWebhookIsNotRetried(t *testing.T) {
	rec := &webhookRecorder{status: http.StatusNotFound}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	d := newTestDispatcher(srv.Client(), 3)
	assert.Equal(t, 0, d.Dispatch(context.Background(), []Message{{Title: "a", Table: "x"}}, srv.URL))
	assert.Len(t, rec.contents, 1)
}

func TestDispatch_UnreachableWebhook(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := newTestDispatcher(http.DefaultClient, 2)
	assert.Equal(t, 0, d.Dispatch(context.Background(), []Message{{Title: "a", Table: "x"}}, url))
}

func TestDispatch_EmptyWebhookSkips(t *testing.T) {
	d := newTestDispatcher(http.DefaultClient, 2)
	assert.Equal(t, 0, d.Dispatch(context.Background(), []Message{{Title: "a", Table: "x"}}, ""))
}
