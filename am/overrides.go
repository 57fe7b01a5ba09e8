package am

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/batchwatch/logger"
)

// Keys read from the app_config table. A value stored there wins over am.toml
// and the environment for the run that read it.
const (
	OverrideLookbackHours = "report.lookback_hours"
	OverrideCutoverTime   = "report.cutover_time"
	OverrideMailFrom      = "mail.from"
	OverrideMailTo        = "mail.to"
	OverrideMailCc        = "mail.cc"
	OverrideHolidays      = "calendar.holidays"
)

// ApplyOverrides returns a copy of c with the recognised app_config values
// applied. Malformed values are logged and ignored; unknown keys are skipped.
// The returned map records which keys were applied.
func (c *Config) ApplyOverrides(values map[string]string, log *zap.SugaredLogger) (*Config, map[string]SourceInfo) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	out := *c
	out.Mail.To = append([]string(nil), c.Mail.To...)
	out.Mail.Cc = append([]string(nil), c.Mail.Cc...)
	applied := make(map[string]SourceInfo)

	mark := func(key string) {
		applied[key] = SourceInfo{Source: SourceDatabase, Path: "app_config"}
	}

	for key, raw := range values {
		value := strings.TrimSpace(raw)
		switch key {
		case OverrideLookbackHours:
			hours, err := strconv.Atoi(value)
			if err != nil || hours < 0 {
				log.Warnw("Ignoring malformed config override",
					logger.FieldRule, key,
					"value", raw)
				continue
			}
			out.Report.LookbackHours = hours
		case OverrideCutoverTime:
			// validated later by the window resolver, which falls back to 17:00
			out.Report.CutoverTime = value
		case OverrideMailFrom:
			if !strings.Contains(value, "@") {
				log.Warnw("Ignoring malformed config override",
					logger.FieldRule, key,
					"value", raw)
				continue
			}
			out.Mail.From = value
		case OverrideMailTo:
			out.Mail.To = SplitAddresses(value)
		case OverrideMailCc:
			out.Mail.Cc = SplitAddresses(value)
		case OverrideHolidays:
			out.Calendar.Holidays = value
		default:
			continue
		}
		mark(key)
	}

	if len(applied) > 0 {
		log.Debugw("Applied config overrides from database",
			logger.FieldCount, len(applied))
	}
	return &out, applied
}

// SplitAddresses splits a recipient list on commas or semicolons, dropping blanks
func SplitAddresses(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
