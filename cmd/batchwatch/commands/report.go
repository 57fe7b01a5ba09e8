package commands

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/batchwatch/am"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
	"github.com/teranos/batchwatch/notify"
	"github.com/teranos/batchwatch/pulse"
	"github.com/teranos/batchwatch/report"
	"github.com/teranos/batchwatch/store"
)

// legacyPayAllFArg is the positional form accepted by the old report job
const legacyPayAllFArg = "payallfdates="

// ReportCmd runs one report
var ReportCmd = &cobra.Command{
	Use:   "report [payallfdates=<yyyy-MM-dd#...>]",
	Short: "Run the status report once and mail it",
	Long: `Run the ICM daily jobs status report once.

The report window ends now (or at --at) and starts either report.lookback_hours
earlier or at the previous day's cutover time. Every job due in the window is
classified and the result is mailed to mail.to / mail.cc.

Pay-all-F dates replace the configured list for this run. They may be given
with --payallfdates or, as the legacy job did, as a positional argument.

Examples:
  batchwatch report
  batchwatch report --dry-run --out /tmp/report.html
  batchwatch report --dry-run --print
  batchwatch report payallfdates=2023-12-01#2023-12-15`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var (
	reportPayAllF string
	reportDryRun  bool
	reportOut     string
	reportPrint   bool
	reportRaw     bool
	reportAt      string
)

func init() {
	ReportCmd.Flags().StringVar(&reportPayAllF, "payallfdates", "", "Pay-all-F dates for this run ('#'-separated yyyy-MM-dd)")
	ReportCmd.Flags().BoolVar(&reportDryRun, "dry-run", false, "Render the report without mailing it")
	ReportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "With --dry-run, write the report to this file instead of stdout")
	ReportCmd.Flags().BoolVar(&reportPrint, "print", false, "Print the report rows as a table")
	ReportCmd.Flags().BoolVar(&reportRaw, "raw", false, "With --dry-run, write the full mail message instead of the HTML body")
	ReportCmd.Flags().StringVar(&reportAt, "at", "", "Report instant (RFC 3339), default now")
}

func runReport(cmd *cobra.Command, args []string) error {
	payAllF, err := payAllFDates(reportPayAllF, args)
	if err != nil {
		return err
	}
	now, err := parseAt(reportAt)
	if err != nil {
		return err
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

	notifier, err := reportNotifier(cmd, cfg)
	if err != nil {
		return err
	}

	runner := report.NewRunner(store.New(database), cfg, logger.ComponentLogger("report"))
	publisher := report.NewPublisher(runner, notifier, logger.ComponentLogger("notify"))

	var recorder pulse.Recorder
	if !reportDryRun && tracksHistory(cfg) {
		recorder = pulse.NewExecutionStore(database)
	}
	tracker := pulse.NewTracker(publisher, recorder, logger.ComponentLogger("pulse"))

	_, res, err := tracker.Track(cmd.Context(), pulse.TriggerManual, report.Options{
		Now:          now,
		PayAllFDates: payAllF,
	})
	if err != nil {
		return err
	}
	if reportPrint {
		return printRows(cmd.OutOrStdout(), res)
	}
	return nil
}

// reportNotifier picks the delivery for this run: a file or stdout sink for
// dry runs, the SMTP relay otherwise
func reportNotifier(cmd *cobra.Command, cfg *am.Config) (notify.Notifier, error) {
	if reportDryRun {
		var w io.Writer = cmd.OutOrStdout()
		if reportPrint && reportOut == "" {
			// the table goes to stdout instead
			w = io.Discard
		}
		return notify.FileSink{
			Path:   reportOut,
			Writer: w,
			Raw:    reportRaw,
			Logger: logger.ComponentLogger("notify"),
		}, nil
	}
	mailer, err := smtpMailer(cfg)
	if err != nil {
		return nil, err
	}
	return mailer, nil
}

func smtpMailer(cfg *am.Config) (*notify.SMTPMailer, error) {
	if !cfg.Mail.Enabled {
		return nil, errors.WithHint(
			errors.New("mail delivery is disabled"),
			"set mail.enabled = true in am.toml, or use --dry-run to preview the report")
	}
	smtp := cfg.Mail.SMTP
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     smtp.Host,
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		TLS:      smtp.TLS,
	}, logger.ComponentLogger("notify")), nil
}

// payAllFDates returns the pay-all-F override from the flag or the legacy
// positional argument. The flag wins when both are given.
func payAllFDates(flag string, args []string) (string, error) {
	var positional string
	for _, arg := range args {
		if len(arg) < len(legacyPayAllFArg) || !strings.EqualFold(arg[:len(legacyPayAllFArg)], legacyPayAllFArg) {
			return "", errors.WithHint(
				errors.Newf("unexpected argument %q", arg),
				"use --payallfdates 2023-12-01#2023-12-15")
		}
		positional = arg[len(legacyPayAllFArg):]
	}
	if flag != "" {
		return flag, nil
	}
	return positional, nil
}

// parseAt parses --at. Empty means now and yields the zero time.
func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.WithHint(
			errors.Wrapf(err, "invalid --at %q", s),
			"use RFC 3339, e.g. 2023-12-14T09:00:00-05:00")
	}
	return t, nil
}
