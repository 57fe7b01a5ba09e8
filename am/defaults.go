package am

import (
	"github.com/spf13/viper"

	"github.com/teranos/batchwatch/status"
	"github.com/teranos/batchwatch/window"
)

// Default values shared with am init
const (
	DefaultDatabaseDriver = "sqlite3"
	DefaultDatabasePath   = "batchwatch.db"
	DefaultReportTitle    = "ICM Daily Jobs Status Report"
	DefaultSMTPPort       = 25
	DefaultPulseSchedule  = "0 7 * * *"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DefaultDatabaseDriver)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("database.dsn", "")

	// lookback_hours 0 selects the cutover rule
	v.SetDefault("report.lookback_hours", 0)
	v.SetDefault("report.cutover_time", window.DefaultCutover)
	v.SetDefault("report.timezone", "Local")
	v.SetDefault("report.title", DefaultReportTitle)
	v.SetDefault("report.logo_path", "")
	v.SetDefault("report.excluded_jobs", status.DefaultExcludedJobs)

	v.SetDefault("calendar.holidays", "")
	v.SetDefault("calendar.pay_all_f_dates", "")
	v.SetDefault("calendar.file", "")

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.to", []string{})
	v.SetDefault("mail.cc", []string{})
	v.SetDefault("mail.smtp.host", "localhost")
	v.SetDefault("mail.smtp.port", DefaultSMTPPort)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.tls", false)

	v.SetDefault("pulse.schedule", DefaultPulseSchedule)
	v.SetDefault("pulse.run_on_start", false)
	v.SetDefault("pulse.watch_config", true)
}

// BindSensitiveEnvVars binds secrets that should never live in am.toml.
// AutomaticEnv only resolves keys viper already knows about, so these are bound explicitly.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("mail.smtp.password", "BATCHWATCH_MAIL_SMTP_PASSWORD")
	v.BindEnv("database.dsn", "BATCHWATCH_DATABASE_DSN", "DATABASE_URL")
}
