package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/batchwatch/cmd/batchwatch/commands"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
)

var rootCmd = &cobra.Command{
	Use:   "batchwatch",
	Short: "batchwatch - ICM daily batch job status report",
	Long: `batchwatch - ICM daily batch job status report.

Reads the ICM job schedule and run history, works out which jobs were due in
the report window, classifies each one and mails the operations team an HTML
status report with an overall batch verdict.

Available commands:
  report   - Run the report once and mail it (or preview it with --dry-run)
  due      - List the jobs due in a report window
  schedule - List schedule entries
  pulse    - Run reports on a cron schedule
  db       - Manage the job database
  am       - Manage batchwatch configuration
  version  - Show build information

Examples:
  batchwatch report --dry-run --out report.html
  batchwatch report --payallfdates 2023-12-01#2023-12-15
  batchwatch due --at 2023-12-14T09:00:00-05:00
  batchwatch pulse start`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON (for runs under a scheduler)")

	rootCmd.AddCommand(commands.ReportCmd)
	rootCmd.AddCommand(commands.DueCmd)
	rootCmd.AddCommand(commands.ScheduleCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}
