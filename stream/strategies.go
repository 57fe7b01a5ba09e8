package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/logger"
)

// ObservedHistory spans the runs of the stream's other jobs inside the
// report window: from the earliest start to the latest end, or the latest
// start when a sibling is still running.
//
// Missing values default to one year before the report end, which always
// precedes the report start, so a stream with no sibling history is
// rejected.
type ObservedHistory struct {
	source Source
	logger *zap.SugaredLogger
}

// NewObservedHistory creates the observed-history strategy.
func NewObservedHistory(src Source, log *zap.SugaredLogger) *ObservedHistory {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ObservedHistory{source: src, logger: log}
}

func (*ObservedHistory) Name() string { return "observed_history" }

func (o *ObservedHistory) Window(ctx context.Context, occ Occurrence, report batch.Window) (*batch.Window, error) {
	runs, err := o.source.StreamSiblingRuns(ctx, occ.Stream, occ.Day, occ.JobID, report.Start, report.End)
	if err != nil {
		return nil, err
	}

	noHistory := report.End.AddDate(-1, 0, 0)
	minStart, maxStart, maxEnd := bounds(runs, noHistory)
	if maxStart.After(maxEnd) {
		maxEnd = maxStart
	}

	earlier, err := o.source.CountEarlierOtherStreamRuns(ctx, occ.Day, occ.Stream, occ.Time, report.Start)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, o.logger).Debugw("Stream sibling history",
		logger.FieldStream, occ.Stream,
		logger.FieldJobID, occ.JobID,
		logger.FieldCount, len(runs),
		"earlier_runs", earlier)

	if minStart.Before(report.Start) || maxEnd.Before(report.Start) {
		return nil, nil
	}
	return &batch.Window{Start: minStart, End: maxEnd}, nil
}

func bounds(runs []batch.Span, missing time.Time) (minStart, maxStart, maxEnd time.Time) {
	minStart, maxStart, maxEnd = missing, missing, missing
	haveEnd := false
	for i, r := range runs {
		if i == 0 || r.Start.Before(minStart) {
			minStart = r.Start
		}
		if i == 0 || r.Start.After(maxStart) {
			maxStart = r.Start
		}
		if r.End != nil && (!haveEnd || r.End.After(maxEnd)) {
			maxEnd = *r.End
			haveEnd = true
		}
	}
	return minStart, maxStart, maxEnd
}

// ScheduleDerived spans the stream's earliest and latest schedule times.
// Evening times (17:00 and later) fall on the report's start date, earlier
// ones on its end date, so a stream running across midnight maps onto the
// right days.
type ScheduleDerived struct {
	source Source
}

// NewScheduleDerived creates the schedule-derived strategy.
func NewScheduleDerived(src Source) *ScheduleDerived {
	return &ScheduleDerived{source: src}
}

func (*ScheduleDerived) Name() string { return "schedule_derived" }

func (s *ScheduleDerived) Window(ctx context.Context, occ Occurrence, report batch.Window) (*batch.Window, error) {
	first, last, ok, err := s.source.StreamScheduleBounds(ctx, occ.Stream)
	if err != nil || !ok {
		return nil, err
	}

	start, end := anchor(first, report), anchor(last, report)
	if end.Before(start) {
		start, end = end, start
	}
	return &batch.Window{Start: start, End: end}, nil
}

func anchor(t batch.TimeOfDay, report batch.Window) time.Time {
	if t.IsEvening() {
		return t.On(report.Start)
	}
	return t.On(report.End)
}
