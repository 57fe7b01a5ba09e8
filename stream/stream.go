// Package stream narrows the report window for jobs that run several times
// a day as part of a job stream.
//
// A stream is a set of schedule entries, possibly of different jobs, that
// share a job_stream label and weekday. To decide whether one particular
// occurrence of a job completed, the report window is replaced by the
// span the stream's other jobs actually ran in. When no such history
// exists yet, the stream's configured schedule times are used instead.
package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
)

// Source is the history and schedule data the inferencer reads.
type Source interface {
	JobStream(ctx context.Context, day batch.Weekday, jobID int64, at batch.TimeOfDay) (string, bool, error)
	StreamSiblingRuns(ctx context.Context, stream string, day batch.Weekday, excludeJobID int64, start, end time.Time) ([]batch.Span, error)
	CountEarlierOtherStreamRuns(ctx context.Context, day batch.Weekday, stream string, before batch.TimeOfDay, since time.Time) (int, error)
	StreamScheduleBounds(ctx context.Context, stream string) (first, last batch.TimeOfDay, ok bool, err error)
}

// Occurrence identifies one scheduled run of a job within a stream.
type Occurrence struct {
	JobID  int64
	Day    batch.Weekday
	Time   batch.TimeOfDay
	Stream string
}

// Strategy proposes a window for an occurrence. A nil window means the
// strategy rejects the occurrence and the next one is tried.
type Strategy interface {
	Name() string
	Window(ctx context.Context, occ Occurrence, report batch.Window) (*batch.Window, error)
}

// Strategy names reported in Result.
const (
	StrategyReport = "report_window"
)

// Result is an inferred occurrence window.
type Result struct {
	Window   batch.Window
	Stream   string // empty when the occurrence has no stream
	Strategy string
}

// Inferencer tries its strategies in order; the first accepted window wins.
type Inferencer struct {
	source     Source
	strategies []Strategy
	logger     *zap.SugaredLogger
}

// NewInferencer creates an inferencer with the observed-history strategy
// followed by the schedule-derived one.
func NewInferencer(src Source, log *zap.SugaredLogger) *Inferencer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Inferencer{
		source: src,
		strategies: []Strategy{
			NewObservedHistory(src, log),
			NewScheduleDerived(src),
		},
		logger: log,
	}
}

// Infer returns the window to check one occurrence of jobID against.
// Without a stream, or when every strategy rejects, it is the report window.
func (i *Inferencer) Infer(ctx context.Context, jobID int64, day batch.Weekday, at batch.TimeOfDay, report batch.Window) (Result, error) {
	log := logger.FromContext(ctx, i.logger).With(
		logger.FieldJobID, jobID,
		logger.FieldWeekday, day.String(),
		logger.FieldScheduleTime, at.String())

	name, ok, err := i.source.JobStream(ctx, day, jobID, at)
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to look up job stream for job %d", jobID)
	}
	if !ok {
		return Result{Window: report, Strategy: StrategyReport}, nil
	}

	occ := Occurrence{JobID: jobID, Day: day, Time: at, Stream: name}
	for _, s := range i.strategies {
		w, err := s.Window(ctx, occ, report)
		if err != nil {
			return Result{}, errors.Wrapf(err, "%s window for stream %s", s.Name(), name)
		}
		if w == nil {
			log.Debugw("Stream window rejected",
				logger.FieldStream, name,
				logger.FieldStrategy, s.Name())
			continue
		}
		log.Debugw("Inferred stream window",
			logger.FieldStream, name,
			logger.FieldStrategy, s.Name(),
			logger.FieldWindowStart, w.Start,
			logger.FieldWindowEnd, w.End)
		return Result{Window: *w, Stream: name, Strategy: s.Name()}, nil
	}

	log.Warnw("No stream window could be inferred, using report window",
		logger.FieldStream, name)
	return Result{Window: report, Stream: name, Strategy: StrategyReport}, nil
}
