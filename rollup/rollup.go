// Package rollup decides the overall verdict of a batch night: the batch is
// done once the last job scheduled before 11:00 today has finished inside
// the report window.
package rollup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/calendar"
	"github.com/teranos/batchwatch/due"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
)

// Verdict is the overall batch status.
type Verdict int

const (
	InProgress Verdict = iota
	Success
)

func (v Verdict) String() string {
	if v == Success {
		return "Success"
	}
	return "InProgress"
}

// Source finds the gate job and checks whether it ran.
type Source interface {
	// LatestScheduledBefore returns the job of the latest active entry on
	// day before cutoff, skipping jobs whose names end in one of
	// excludeNameSuffixes.
	LatestScheduledBefore(ctx context.Context, day batch.Weekday, cutoff batch.TimeOfDay, excludeNameSuffixes []string) (int64, bool, error)
	HasRunWithin(ctx context.Context, jobID int64, start, end time.Time) (bool, error)
}

// monthlyJobs run only on their own days, so on other days they cannot be
// the gate job.
var monthlyJobs = []string{due.JobIPSTransactions, due.JobACRADebtLoader}

// Checker computes the batch verdict.
type Checker struct {
	source Source
	logger *zap.SugaredLogger
}

// NewChecker creates a rollup checker.
func NewChecker(src Source, log *zap.SugaredLogger) *Checker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Checker{source: src, logger: log}
}

// Overall returns Success when the gate job for the day of w.End has a run
// that started and finished inside w. On IPS and ACRA run days those jobs
// may be the gate; on other days they are skipped.
func (c *Checker) Overall(ctx context.Context, w batch.Window) (Verdict, error) {
	log := logger.FromContext(ctx, c.logger)
	today := calendar.Today(w.End)

	var exclude []string
	if !calendar.IsRollupDay(today) {
		exclude = monthlyJobs
	}

	day := batch.WeekdayOf(w.End)
	jobID, ok, err := c.source.LatestScheduledBefore(ctx, day, batch.MorningCutoff, exclude)
	if err != nil {
		return InProgress, errors.Wrap(err, "failed to find batch gate job")
	}
	if !ok {
		log.Warnw("No job scheduled before the morning cutoff, batch reported in progress",
			logger.FieldWeekday, day.String())
		return InProgress, nil
	}

	ran, err := c.source.HasRunWithin(ctx, jobID, w.Start, w.End)
	if err != nil {
		return InProgress, errors.Wrapf(err, "failed to check gate job %d", jobID)
	}

	v := InProgress
	if ran {
		v = Success
	}
	log.Infow("Batch verdict",
		logger.FieldJobID, jobID,
		logger.FieldVerdict, v.String(),
		"rollup_day", exclude == nil)
	return v, nil
}
