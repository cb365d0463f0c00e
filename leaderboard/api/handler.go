// leaderboard/api/handler.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Ftotnem/isabot-go/leaderboard/credential"
	"github.com/Ftotnem/isabot-go/leaderboard/entry"
	"github.com/Ftotnem/isabot-go/leaderboard/roster"
	"github.com/Ftotnem/isabot-go/leaderboard/service"
	"github.com/Ftotnem/isabot-go/leaderboard/stats"
	"github.com/Ftotnem/isabot-go/leaderboard/store"
	"github.com/Ftotnem/isabot-go/shared/api"
	"github.com/Ftotnem/isabot-go/shared/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Leaderboard is the part of the leaderboard service exposed over HTTP.
type Leaderboard interface {
	Run(ctx context.Context) (*service.RunResult, error)
	LatestEntry(ctx context.Context) (*models.Entry, error)
	ListEntries(ctx context.Context, limit int) ([]models.Entry, error)
	RenderLatest(ctx context.Context, metric models.Metric) (string, error)
}

// LeaderboardAPIHandlers serves the run trigger and the read-only entry endpoints.
type LeaderboardAPIHandlers struct {
	Leaderboard Leaderboard
	RunTimeout  time.Duration
	logger      *zap.Logger
}

func NewLeaderboardAPIHandlers(lb Leaderboard, runTimeout time.Duration, logger *zap.Logger) *LeaderboardAPIHandlers {
	return &LeaderboardAPIHandlers{
		Leaderboard: lb,
		RunTimeout:  runTimeout,
		logger:      logger.Named("api"),
	}
}

// HandleRun executes one pipeline run synchronously.
// POST /leaderboard/run
func (h *LeaderboardAPIHandlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.RunTimeout)
	defer cancel()

	res, err := h.Leaderboard.Run(ctx)
	if err != nil {
		h.writeServiceError(w, "leaderboard run failed", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

// HandleListEntries lists persisted entries, newest first.
// GET /leaderboard/entries?limit=N
func (h *LeaderboardAPIHandlers) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	entries, err := h.Leaderboard.ListEntries(ctx, limit)
	if err != nil {
		h.writeServiceError(w, "failed to list leaderboard entries", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, entries)
}

// GET /leaderboard/entries/latest
func (h *LeaderboardAPIHandlers) HandleLatestEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	e, err := h.Leaderboard.LatestEntry(ctx)
	if err != nil {
		h.writeServiceError(w, "failed to fetch latest leaderboard entry", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, e)
}

// HandleLatestTable renders the newest entry as a plain-text table.
// GET /leaderboard/entries/latest/{metric}
func (h *LeaderboardAPIHandlers) HandleLatestTable(w http.ResponseWriter, r *http.Request) {
	metric, err := models.ParseMetric(mux.Vars(r)["metric"])
	if err != nil {
		api.WriteBadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	t, err := h.Leaderboard.RenderLatest(ctx, metric)
	if err != nil {
		h.writeServiceError(w, "failed to render leaderboard table", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(t + "\n"))
}

// writeServiceError maps pipeline and store errors onto status codes.
func (h *LeaderboardAPIHandlers) writeServiceError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrUnknownMetric):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrEntryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, credential.ErrCredentialUnavailable),
		errors.Is(err, roster.ErrRosterUnavailable),
		errors.Is(err, stats.ErrAggregationUnavailable),
		errors.Is(err, service.ErrAccountsUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, entry.ErrPersistenceFailure):
		status = http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Int("status", status), zap.Error(err))
	} else {
		h.logger.Info(msg, zap.Int("status", status), zap.Error(err))
	}

	body := msg + ": " + err.Error()
	switch status {
	case http.StatusBadRequest:
		api.WriteBadRequest(w, body)
	case http.StatusNotFound:
		api.WriteNotFound(w, body)
	case http.StatusServiceUnavailable:
		api.WriteServiceUnavailable(w, body)
	case http.StatusInternalServerError:
		api.WriteInternalServerError(w, body)
	default:
		api.WriteError(w, status, body)
	}
}

func (h *LeaderboardAPIHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/leaderboard/run", h.HandleRun).Methods("POST")
	router.HandleFunc("/leaderboard/entries", h.HandleListEntries).Methods("GET")
	router.HandleFunc("/leaderboard/entries/latest", h.HandleLatestEntry).Methods("GET")
	router.HandleFunc("/leaderboard/entries/latest/{metric}", h.HandleLatestTable).Methods("GET")
}
