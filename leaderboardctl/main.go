// leaderboardctl/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ftotnem/isabot-go/shared/api"
	"github.com/Ftotnem/isabot-go/shared/config"
	"github.com/Ftotnem/isabot-go/shared/logging"
	"github.com/Ftotnem/isabot-go/shared/models"
	"github.com/Ftotnem/isabot-go/shared/service"
	"go.uber.org/zap"
)

// Exit codes beyond the usual 0/1/2.
const (
	exitRunInProgress = 3
	exitNoEntry       = 4
)

const usage = `usage: leaderboardctl <command> [args]

commands:
  run                 run the leaderboard pipeline now and wait for it
  latest              print the latest entry as JSON
  table <metric>      print the latest entry as a table (mounts, normal_bg_wins)
  entries [-limit N]  list recent entries as JSON
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg, err := config.LoadLeaderboardCtlConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	logger, err := logging.New(os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client := service.NewLeaderboardClient(cfg.ServiceURL, cfg.Timeout)

	switch args[0] {
	case "run":
		res, err := client.TriggerRun(ctx)
		if err != nil {
			return fail(logger, "leaderboard run failed", err, zap.String("service_url", cfg.ServiceURL))
		}
		logger.Info("leaderboard run completed",
			zap.String("run_id", res.RunID),
			zap.String("entry_id", res.EntryID),
			zap.Int("in_scope_accounts", res.InScopeAccounts),
			zap.Int("notifications", res.Notifications))
		return printJSON(res)

	case "latest":
		e, err := client.LatestEntry(ctx)
		if err != nil {
			return fail(logger, "failed to fetch latest entry", err)
		}
		return printJSON(e)

	case "table":
		if len(args) != 2 {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		metric, err := models.ParseMetric(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		t, err := client.LatestTable(ctx, metric)
		if err != nil {
			return fail(logger, "failed to fetch leaderboard table", err)
		}
		fmt.Print(t)
		return 0

	case "entries":
		fs := flag.NewFlagSet("entries", flag.ContinueOnError)
		limit := fs.Int("limit", 10, "number of entries to list")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		entries, err := client.ListEntries(ctx, *limit)
		if err != nil {
			return fail(logger, "failed to list entries", err)
		}
		return printJSON(entries)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

// fail logs err and turns the service's answer into an exit code.
func fail(logger *zap.Logger, msg string, err error, fields ...zap.Field) int {
	code := exitCode(err)
	switch code {
	case exitRunInProgress:
		logger.Warn("another leaderboard run is already in progress", fields...)
	case exitNoEntry:
		logger.Warn("no leaderboard entry has been recorded yet", fields...)
	default:
		fields = append(fields, zap.Int("status", api.GetHTTPStatusCode(err)), zap.Error(err))
		logger.Error(msg, fields...)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case api.IsHTTPError(err, http.StatusConflict):
		return exitRunInProgress
	case api.IsHTTPError(err, http.StatusNotFound):
		return exitNoEntry
	default:
		return 1
	}
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		return 1
	}
	return 0
}
