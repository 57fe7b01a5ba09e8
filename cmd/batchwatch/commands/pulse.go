package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/batchwatch/am"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
	"github.com/teranos/batchwatch/pulse"
	"github.com/teranos/batchwatch/report"
	"github.com/teranos/batchwatch/store"
)

// PulseCmd groups the scheduled report daemon commands
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Run reports on a cron schedule",
	Long: `Pulse runs the status report on pulse.schedule (a 5-field cron expression,
default "0 7 * * *") and records every run in the execution history.

Each run is independent: a failed run is logged and recorded, and the next
one proceeds on schedule. When pulse.watch_config is set, edits to the active
am.toml apply to the next run without a restart.

Examples:
  batchwatch pulse start
  batchwatch pulse start --run-now
  batchwatch pulse history --status failed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// PulseStartCmd starts the daemon in the foreground
var PulseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Pulse daemon",
	Args:  cobra.NoArgs,
	RunE:  runPulseStart,
}

var pulseHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent report runs",
	Args:  cobra.NoArgs,
	RunE:  runPulseHistory,
}

var pulseCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old execution history",
	Args:  cobra.NoArgs,
	RunE:  runPulseCleanup,
}

var (
	pulseRunNow        bool
	pulseHistoryLimit  int
	pulseHistoryOffset int
	pulseHistoryStatus string
	pulseRetentionDays int
)

func init() {
	PulseStartCmd.Flags().BoolVar(&pulseRunNow, "run-now", false, "Run a report immediately in addition to the schedule")
	pulseHistoryCmd.Flags().IntVar(&pulseHistoryLimit, "limit", 20, "Number of runs to show")
	pulseHistoryCmd.Flags().IntVar(&pulseHistoryOffset, "offset", 0, "Skip this many recent runs")
	pulseHistoryCmd.Flags().StringVar(&pulseHistoryStatus, "status", "", "Only runs with this status (running, completed, failed)")
	pulseCleanupCmd.Flags().IntVar(&pulseRetentionDays, "days", pulse.DefaultRetentionDays, "Keep runs started within this many days")

	PulseCmd.AddCommand(PulseStartCmd)
	PulseCmd.AddCommand(pulseHistoryCmd)
	PulseCmd.AddCommand(pulseCleanupCmd)
}

func runPulseStart(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	mailer, err := smtpMailer(cfg)
	if err != nil {
		return err
	}

	runner := report.NewRunner(store.New(database), cfg, logger.ComponentLogger("report"))
	publisher := report.NewPublisher(runner, mailer, logger.ComponentLogger("notify"))

	var recorder pulse.Recorder
	if tracksHistory(cfg) {
		recorder = pulse.NewExecutionStore(database)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon, err := pulse.NewDaemon(ctx, publisher, recorder, pulse.Config{
		Schedule:   cfg.Pulse.Schedule,
		RunOnStart: cfg.Pulse.RunOnStart || pulseRunNow,
		Location:   cfg.Report.Location(),
	}, logger.ComponentLogger("pulse"))
	if err != nil {
		return err
	}

	if cfg.Pulse.WatchConfig {
		watcher, err := watchConfig(runner, daemon)
		if err != nil {
			return err
		}
		if watcher != nil {
			defer watcher.Stop()
		}
	}

	if err := daemon.Start(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pulse daemon started\n")
	fmt.Fprintf(out, "  Schedule: %s (%s)\n", cfg.Pulse.Schedule, cfg.Report.Location())
	fmt.Fprintf(out, "  Next run: %s\n", report.FormatTimestamp(daemon.NextRun()))
	fmt.Fprintf(out, "\nPress Ctrl+C to stop\n\n")

	<-ctx.Done()

	fmt.Fprintf(out, "\nStopping Pulse daemon...\n")
	daemon.Stop()

	stats := daemon.GetStats()
	fmt.Fprintf(out, "Pulse daemon stopped after %d run(s), %d failed\n", stats.Runs, stats.Failures)
	return nil
}

// watchConfig applies edits of the active config file to subsequent runs.
// Returns nil when no config file is in use.
func watchConfig(runner *report.Runner, daemon *pulse.Daemon) (*am.ConfigWatcher, error) {
	path := am.ActiveConfigFile()
	if path == "" {
		logger.Infow("No config file loaded, not watching for changes")
		return nil, nil
	}

	watcher, err := am.NewConfigWatcher(path, logger.ComponentLogger("am"))
	if err != nil {
		return nil, err
	}
	watcher.OnReload(func(cfg *am.Config) error {
		runner.SetConfig(cfg)
		return daemon.Reschedule(cfg.Pulse.Schedule)
	})
	am.SetGlobalWatcher(watcher)
	watcher.Start()
	return watcher, nil
}

func runPulseHistory(cmd *cobra.Command, args []string) error {
	executions, err := withExecutionStore(cmd.Context(), func(ctx context.Context, s *pulse.ExecutionStore) ([]*pulse.Execution, error) {
		list, total, err := s.List(ctx, pulseHistoryLimit, pulseHistoryOffset, pulseHistoryStatus)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d run(s)\n\n", len(list), total)
		return list, nil
	})
	if err != nil {
		return err
	}
	return renderTable(cmd.OutOrStdout(), executionsTable(executions))
}

func runPulseCleanup(cmd *cobra.Command, args []string) error {
	deleted, err := withExecutionStore(cmd.Context(), func(ctx context.Context, s *pulse.ExecutionStore) (int, error) {
		return s.Cleanup(ctx, pulseRetentionDays)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s) older than %d days\n", deleted, pulseRetentionDays)
	return nil
}

// withExecutionStore opens the history database for the duration of fn
func withExecutionStore[T any](ctx context.Context, fn func(context.Context, *pulse.ExecutionStore) (T, error)) (T, error) {
	var zero T
	cfg, err := am.Load()
	if err != nil {
		return zero, errors.Wrap(err, "failed to load config")
	}
	if !tracksHistory(cfg) {
		return zero, errors.WithHint(
			errors.Newf("execution history is not kept for %s databases", cfg.Database.Driver),
			"history is recorded only when database.driver is sqlite3")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return zero, err
	}
	defer database.Close()
	return fn(ctx, pulse.NewExecutionStore(database))
}
