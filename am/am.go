package am

import "time"

// Config represents the batchwatch configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Report   ReportConfig   `mapstructure:"report" toml:"report"`
	Calendar CalendarConfig `mapstructure:"calendar" toml:"calendar"`
	Mail     MailConfig     `mapstructure:"mail" toml:"mail"`
	Pulse    PulseConfig    `mapstructure:"pulse" toml:"pulse"`
}

// DatabaseConfig selects the ICM job database.
// Path is used by the sqlite3 driver, DSN by postgres.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" toml:"driver" validate:"oneof=sqlite3 postgres"`
	Path   string `mapstructure:"path" toml:"path"`
	DSN    string `mapstructure:"dsn" toml:"dsn,omitempty"`
}

// DataSource returns the connection string for the configured driver
func (d DatabaseConfig) DataSource() string {
	if d.Driver == "postgres" {
		return d.DSN
	}
	if d.DSN != "" {
		return d.DSN
	}
	return d.Path
}

// ReportConfig configures the report window and rendering
type ReportConfig struct {
	LookbackHours int      `mapstructure:"lookback_hours" toml:"lookback_hours"` // > 0 wins over cutover_time
	CutoverTime   string   `mapstructure:"cutover_time" toml:"cutover_time"`     // HH:MM on the previous day
	Timezone      string   `mapstructure:"timezone" toml:"timezone"`
	Title         string   `mapstructure:"title" toml:"title"`
	LogoPath      string   `mapstructure:"logo_path" toml:"logo_path,omitempty"`
	ExcludedJobs  []string `mapstructure:"excluded_jobs" toml:"excluded_jobs"`
}

// Location returns the zone report windows are computed in.
// An empty or unknown timezone falls back to time.Local.
func (r ReportConfig) Location() *time.Location {
	if r.Timezone == "" || r.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CalendarConfig holds the '#'-separated date lists and an optional YAML calendar file
type CalendarConfig struct {
	Holidays     string `mapstructure:"holidays" toml:"holidays"`
	PayAllFDates string `mapstructure:"pay_all_f_dates" toml:"pay_all_f_dates"`
	File         string `mapstructure:"file" toml:"file,omitempty"`
}

// MailConfig configures report delivery
type MailConfig struct {
	Enabled bool       `mapstructure:"enabled" toml:"enabled"`
	From    string     `mapstructure:"from" toml:"from" validate:"omitempty,email"`
	To      []string   `mapstructure:"to" toml:"to" validate:"dive,email"`
	Cc      []string   `mapstructure:"cc" toml:"cc" validate:"dive,email"`
	SMTP    SMTPConfig `mapstructure:"smtp" toml:"smtp"`
}

// SMTPConfig configures the outgoing mail server
type SMTPConfig struct {
	Host     string `mapstructure:"host" toml:"host" validate:"omitempty,hostname_rfc1123|ip"`
	Port     int    `mapstructure:"port" toml:"port" validate:"min=1,max=65535"`
	Username string `mapstructure:"username" toml:"username,omitempty"`
	Password string `mapstructure:"password" toml:"-"` // BATCHWATCH_MAIL_SMTP_PASSWORD
	TLS      bool   `mapstructure:"tls" toml:"tls"`
}

// PulseConfig configures daemon mode
type PulseConfig struct {
	Schedule    string `mapstructure:"schedule" toml:"schedule"` // standard 5-field cron expression
	RunOnStart  bool   `mapstructure:"run_on_start" toml:"run_on_start"`
	WatchConfig bool   `mapstructure:"watch_config" toml:"watch_config"`
}

// File and directory permissions for files written by am
const (
	DefaultDirPermissions  = 0o750
	DefaultFilePermissions = 0o644
)
