// Package window computes the report window: the period a status report
// looks back over, ending at the moment the report runs.
package window

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/logger"
)

// DefaultCutover is used when no cutover time is configured or the
// configured value cannot be read.
const DefaultCutover = "17:00"

var defaultCutover = batch.TimeOfDay{Hour: 17}

// ParseCutover reads an "HH:MM" time of day. A value without a colon is
// taken as a bare hour. Parts that are not numbers, or a result outside a
// day, fall back to 17:00; ok is false when any fallback was applied.
// An empty value is the default and is not treated as malformed.
func ParseCutover(s string) (tod batch.TimeOfDay, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultCutover, true
	}

	hourPart, minutePart, hasMinute := strings.Cut(s, ":")
	ok = true

	hour, err := strconv.Atoi(strings.TrimSpace(hourPart))
	if err != nil {
		hour, ok = defaultCutover.Hour, false
	}
	minute := 0
	if hasMinute {
		if minute, err = strconv.Atoi(strings.TrimSpace(minutePart)); err != nil {
			minute, ok = defaultCutover.Minute, false
		}
	}

	tod, err = batch.NewTimeOfDay(hour, minute)
	if err != nil {
		return defaultCutover, false
	}
	return tod, ok
}

// Resolve returns the report window ending at now. A positive lookback
// starts the window that many hours before now; otherwise it starts at the
// cutover time on the previous calendar day.
func Resolve(now time.Time, lookbackHours int, cutover batch.TimeOfDay) batch.Window {
	if lookbackHours > 0 {
		return batch.Window{Start: now.Add(-time.Duration(lookbackHours) * time.Hour), End: now}
	}
	return batch.Window{Start: cutover.On(now.AddDate(0, 0, -1)), End: now}
}

// Resolver holds the configured window settings.
type Resolver struct {
	LookbackHours int
	Cutover       string
	logger        *zap.SugaredLogger
}

// NewResolver creates a window resolver. A nil logger discards warnings.
func NewResolver(lookbackHours int, cutover string, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{LookbackHours: lookbackHours, Cutover: cutover, logger: log}
}

// Resolve returns the window for a report running at now. A malformed
// cutover is logged and replaced by its default; it never fails the run.
func (r *Resolver) Resolve(now time.Time) batch.Window {
	cutover, ok := ParseCutover(r.Cutover)
	if !ok && r.LookbackHours <= 0 {
		r.logger.Warnw("Malformed cutover time, using default",
			"cutover", r.Cutover,
			"effective", cutover.String())
	}

	w := Resolve(now, r.LookbackHours, cutover)
	r.logger.Debugw("Resolved report window",
		logger.FieldWindowStart, w.Start,
		logger.FieldWindowEnd, w.End)
	return w
}
