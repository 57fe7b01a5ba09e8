package due

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/calendar"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
)

// Source lists the active schedule entries that may be due. Implementations
// may pre-filter; the resolver re-applies Matches either way.
type Source interface {
	ListDueScheduleEntries(ctx context.Context, startDay batch.Weekday, startTime batch.TimeOfDay, endDay batch.Weekday) ([]batch.ScheduleEntry, error)
}

// Job is a due schedule entry. Occurrences counts the due entries of the
// same job on the same weekday; Occurrence is this entry's 1-based position
// among them.
type Job struct {
	batch.ScheduleEntry
	Occurrence  int
	Occurrences int
}

// Resolver builds the ordered due list for a report window.
type Resolver struct {
	source   Source
	calendar calendar.Calendar
	rules    Rules
	logger   *zap.SugaredLogger
}

// NewResolver creates a resolver using DefaultRules.
func NewResolver(src Source, cal calendar.Calendar, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{source: src, calendar: cal, rules: DefaultRules(), logger: log}
}

// WithRules replaces the exception table.
func (r *Resolver) WithRules(rules Rules) *Resolver {
	r.rules = rules
	return r
}

// Resolve returns the jobs due in w in report order. "Today" for the
// exception rules is the calendar date of w.End.
func (r *Resolver) Resolve(ctx context.Context, w batch.Window) ([]Job, error) {
	log := logger.FromContext(ctx, r.logger)
	start := time.Now()

	entries, err := r.source.ListDueScheduleEntries(ctx,
		batch.WeekdayOf(w.Start), batch.TimeOfDayOf(w.Start), batch.WeekdayOf(w.End))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due schedule entries")
	}

	matched := make([]batch.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		if Matches(e, w) {
			matched = append(matched, e)
		}
	}
	Sort(matched)
	matched = dedupe(matched)

	rc := Context{Today: calendar.Today(w.End), Calendar: r.calendar}
	kept := make([]batch.ScheduleEntry, 0, len(matched))
	for _, e := range matched {
		ok, rule := r.rules.Include(e.JobName, rc)
		if !ok {
			log.Debugw("Skipping due job",
				logger.FieldJobID, e.JobID,
				logger.FieldJobName, e.JobName,
				logger.FieldRule, rule.Reason)
			continue
		}
		kept = append(kept, e)
	}

	jobs := number(kept)
	log.Infow("Resolved due jobs",
		logger.FieldCount, len(jobs),
		logger.FieldWindowStart, w.Start,
		logger.FieldWindowEnd, w.End,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return jobs, nil
}

type jobDay struct {
	jobID int64
	day   batch.Weekday
}

func number(entries []batch.ScheduleEntry) []Job {
	totals := make(map[jobDay]int)
	for _, e := range entries {
		totals[jobDay{e.JobID, e.Day}]++
	}
	seen := make(map[jobDay]int)
	jobs := make([]Job, len(entries))
	for i, e := range entries {
		k := jobDay{e.JobID, e.Day}
		seen[k]++
		jobs[i] = Job{ScheduleEntry: e, Occurrence: seen[k], Occurrences: totals[k]}
	}
	return jobs
}
