package am

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/teranos/batchwatch/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report field errors by their config key rather than the Go field name
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks that the configuration is usable.
// Malformed cutover times are not an error here; the window resolver falls back to 17:00.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.WithHint(
				errors.Mark(errors.Newf("%s failed %q validation (value %v)", configKey(fe.Namespace()), fe.Tag(), fe.Value()), errors.ErrInvalidConfig),
				"check am.toml or the matching BATCHWATCH_ environment variable",
			)
		}
		return errors.Mark(errors.Wrap(err, "failed to validate config"), errors.ErrInvalidConfig)
	}

	// lookback_hours: 0 = use the cutover rule, negative = invalid
	if c.Report.LookbackHours < 0 {
		return errors.Mark(errors.Newf("report.lookback_hours must be >= 0, got %d", c.Report.LookbackHours), errors.ErrInvalidConfig)
	}

	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return errors.Mark(errors.New("database.dsn is required for the postgres driver"), errors.ErrInvalidConfig)
	}
	if c.Database.Driver == "sqlite3" && c.Database.DataSource() == "" {
		return errors.Mark(errors.New("database.path cannot be empty for the sqlite3 driver"), errors.ErrInvalidConfig)
	}

	if c.Mail.Enabled {
		if c.Mail.SMTP.Host == "" {
			return errors.Mark(errors.New("mail.smtp.host cannot be empty when mail is enabled"), errors.ErrInvalidConfig)
		}
		if c.Mail.From == "" || len(c.Mail.To) == 0 {
			return errors.Mark(errors.New("mail.from and mail.to are required when mail is enabled"), errors.ErrInvalidConfig)
		}
	}

	if _, err := cron.ParseStandard(c.Pulse.Schedule); err != nil {
		return errors.Mark(errors.Wrapf(err, "pulse.schedule %q is not a valid cron expression", c.Pulse.Schedule), errors.ErrInvalidConfig)
	}

	return nil
}

// configKey turns "Config.mail.smtp.port" into "mail.smtp.port"
func configKey(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
