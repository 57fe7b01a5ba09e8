package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/batchwatch/am"
	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/due"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
	"github.com/teranos/batchwatch/report"
	"github.com/teranos/batchwatch/store"
	"github.com/teranos/batchwatch/window"
)

// DueCmd lists the due set for a report window
var DueCmd = &cobra.Command{
	Use:   "due",
	Short: "List the jobs due in a report window",
	Long: `Resolve the report window and list the jobs that were due to run in it,
in report order, without classifying them or sending anything.

Examples:
  batchwatch due
  batchwatch due --at 2023-12-14T09:00:00-05:00
  batchwatch due --payallfdates 2023-12-01`,
	Args: cobra.NoArgs,
	RunE: runDue,
}

var (
	dueAt      string
	duePayAllF string
)

func init() {
	DueCmd.Flags().StringVar(&dueAt, "at", "", "Report instant (RFC 3339), default now")
	DueCmd.Flags().StringVar(&duePayAllF, "payallfdates", "", "Pay-all-F dates ('#'-separated yyyy-MM-dd)")
}

func runDue(cmd *cobra.Command, args []string) error {
	now, err := parseAt(dueAt)
	if err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now()
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	log := logger.ComponentLogger("due")
	st := store.New(database)

	values, err := st.ConfigValues(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read config overrides")
	}
	cfg, _ = cfg.ApplyOverrides(values, log)

	cal := report.BuildCalendar(cfg.Calendar, duePayAllF, log)
	w := window.NewResolver(cfg.Report.LookbackHours, cfg.Report.CutoverTime, log).
		Resolve(now.In(cfg.Report.Location()))

	jobs, err := due.NewResolver(st, cal, log).Resolve(ctx, w)
	if err != nil {
		return errors.Wrap(err, "failed to resolve due jobs")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Window: %s - %s (%d due)\n\n",
		report.FormatTimestamp(w.Start), report.FormatTimestamp(w.End), len(jobs))
	return renderTable(out, dueTable(jobs))
}

// ScheduleCmd lists schedule entries
var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "List active schedule entries",
	Long: `List active ICM schedule entries, Sunday first, optionally for one weekday.

Examples:
  batchwatch schedule
  batchwatch schedule --day Thursday`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

var scheduleDay string

func init() {
	ScheduleCmd.Flags().StringVar(&scheduleDay, "day", "", "Only entries for this weekday (e.g. Monday)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	var day *batch.Weekday
	if scheduleDay != "" {
		d, err := batch.ParseWeekday(scheduleDay)
		if err != nil {
			return errors.Wrapf(err, "invalid --day %q", scheduleDay)
		}
		day = &d
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	entries, err := store.New(database).ListScheduleEntries(cmd.Context(), day)
	if err != nil {
		return err
	}
	return renderTable(cmd.OutOrStdout(), scheduleTable(entries))
}
