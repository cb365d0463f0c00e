// leaderboard/scheduler/run_scheduler.go
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/Ftotnem/isabot-go/leaderboard/service"
	"github.com/Ftotnem/isabot-go/leaderboard/store"
	"github.com/Ftotnem/isabot-go/shared/models"
	"go.uber.org/zap"
)

// RunTaskKey is hashed onto the replica ring; its owner performs scheduled runs.
const RunTaskKey = "weekly_leaderboard_run"

// Responsibility reports whether this replica owns a task key.
type Responsibility interface {
	IsResponsible(taskKey string) (bool, error)
}

type Runner interface {
	Run(ctx context.Context) (*service.RunResult, error)
	LatestEntry(ctx context.Context) (*models.Entry, error)
}

type Options struct {
	CheckInterval time.Duration
	RunInterval   time.Duration
	RunTimeout    time.Duration
}

// RunScheduler triggers a pipeline run once the latest entry is older than
// RunInterval. Only the replica responsible for RunTaskKey runs it.
type RunScheduler struct {
	runner         Runner
	responsibility Responsibility
	opts           Options
	now            func() time.Time
	logger         *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunScheduler(runner Runner, responsibility Responsibility, opts Options, logger *zap.Logger) *RunScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &RunScheduler{
		runner:         runner,
		responsibility: responsibility,
		opts:           opts,
		now:            time.Now,
		logger:         logger.Named("scheduler"),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start runs the check loop until Stop is called. It blocks.
func (rs *RunScheduler) Start() {
	rs.logger.Info("run scheduler starting",
		zap.Duration("check_interval", rs.opts.CheckInterval),
		zap.Duration("run_interval", rs.opts.RunInterval))
	ticker := time.NewTicker(rs.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.ctx.Done():
			rs.logger.Info("run scheduler shutting down")
			return
		case <-ticker.C:
			rs.tick()
		}
	}
}

func (rs *RunScheduler) Stop() {
	rs.cancel()
}

// tick runs the pipeline when this replica owns the run and one is due.
// It reports whether a run was attempted.
func (rs *RunScheduler) tick() bool {
	responsible, err := rs.responsibility.IsResponsible(RunTaskKey)
	if err != nil {
		rs.logger.Warn("failed to check run responsibility", zap.Error(err))
		return false
	}
	if !responsible {
		return false
	}

	due, err := rs.due()
	if err != nil {
		rs.logger.Warn("failed to check whether a run is due", zap.Error(err))
		return false
	}
	if !due {
		return false
	}

	ctx, cancel := context.WithTimeout(rs.ctx, rs.opts.RunTimeout)
	defer cancel()

	res, err := rs.runner.Run(ctx)
	if err != nil {
		rs.logger.Error("scheduled leaderboard run failed", zap.Error(err))
		return true
	}
	rs.logger.Info("scheduled leaderboard run completed",
		zap.String("run_id", res.RunID),
		zap.String("entry_id", res.EntryID))
	return true
}

func (rs *RunScheduler) due() (bool, error) {
	ctx, cancel := context.WithTimeout(rs.ctx, 10*time.Second)
	defer cancel()

	latest, err := rs.runner.LatestEntry(ctx)
	if errors.Is(err, store.ErrEntryNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	next := time.Unix(latest.DateCreated, 0).Add(rs.opts.RunInterval)
	return !rs.now().Before(next), nil
}
