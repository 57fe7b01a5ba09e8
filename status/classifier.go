package status

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/due"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
	"github.com/teranos/batchwatch/stream"
)

// Source is the history data the classifier reads.
type Source interface {
	JobLoader
	CompletedHistory(ctx context.Context, jobID int64, start, end time.Time) ([]batch.JobHistory, error)
	OpenHistory(ctx context.Context, jobID int64) ([]batch.JobHistory, error)
	TaskHistory(ctx context.Context, historyID int64) ([]batch.TaskHistory, error)
	GetTask(ctx context.Context, jobID, taskID int64) (*batch.Task, error)
}

// WindowInferrer narrows the report window for one occurrence of a job.
type WindowInferrer interface {
	Infer(ctx context.Context, jobID int64, day batch.Weekday, at batch.TimeOfDay, report batch.Window) (stream.Result, error)
}

// DefaultExcludedJobs are jobs whose completed runs are left out of the
// report.
var DefaultExcludedJobs = []string{
	"commissionstatement_csv",
	"downlinehierarchycsv",
	"downlinehierarchypdf",
	"downlinehierarchyxls",
	"productionsummarycsv",
	"productionsummarypdf",
	"productionsummaryxls",
	"statementscsv",
	"statementspdf",
	"statementsxls",
	"GetUpdatesForSync",
}

// Classifier turns due jobs into report rows. A classifier holds the job
// cache of one report run.
type Classifier struct {
	source   Source
	inferrer WindowInferrer
	jobs     *JobCache
	excluded map[string]bool
	now      func() time.Time
	logger   *zap.SugaredLogger
}

// NewClassifier creates a classifier for one report run. inferrer may be
// nil, in which case every job is checked against the report window.
func NewClassifier(src Source, inferrer WindowInferrer, log *zap.SugaredLogger) *Classifier {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Classifier{
		source:   src,
		inferrer: inferrer,
		jobs:     NewJobCache(src),
		now:      time.Now,
		logger:   log,
	}
	return c.WithExcludedJobs(DefaultExcludedJobs)
}

// WithExcludedJobs replaces the excluded job names (case-insensitive).
func (c *Classifier) WithExcludedJobs(names []string) *Classifier {
	c.excluded = make(map[string]bool, len(names))
	for _, n := range names {
		c.excluded[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return c
}

// WithClock sets the clock used for the run time of open runs.
func (c *Classifier) WithClock(now func() time.Time) *Classifier {
	c.now = now
	return c
}

// Jobs returns the run's job cache.
func (c *Classifier) Jobs() *JobCache {
	return c.jobs
}

func (c *Classifier) isExcluded(name string) bool {
	return c.excluded[strings.ToLower(name)]
}

// Classify returns the rows for one due job:
//
//   - one Complete or Failed row per run that finished inside its window
//   - otherwise one InProgress row for the open run
//   - otherwise one NotRun row
//
// Excluded jobs only hide their completed runs; a running excluded job is
// still shown.
//
// Jobs scheduled more than once a day in a stream are checked against the
// inferred occurrence window instead of the report window.
func (c *Classifier) Classify(ctx context.Context, j due.Job, report batch.Window) ([]Row, error) {
	log := logger.FromContext(ctx, c.logger).With(
		logger.FieldJobID, j.JobID,
		logger.FieldJobName, j.JobName)

	job, err := c.jobs.Get(ctx, j.JobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load job %d", j.JobID)
	}

	w, infer := report, stream.Result{Window: report, Strategy: stream.StrategyReport}
	if j.Occurrences > 1 && c.inferrer != nil {
		if infer, err = c.inferrer.Infer(ctx, j.JobID, j.Day, j.Time, report); err != nil {
			return nil, err
		}
		w = infer.Window
	}

	completed, err := c.source.CompletedHistory(ctx, j.JobID, w.Start, w.End)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load completed runs of job %d", j.JobID)
	}
	if len(completed) > 0 {
		if c.isExcluded(job.Name) {
			log.Debugw("Completed runs excluded from report", logger.FieldCount, len(completed))
			return []Row{Placeholder(j.JobID)}, nil
		}
		rows := make([]Row, 0, len(completed))
		for _, h := range completed {
			rows = append(rows, c.finishedRow(job, h, infer))
		}
		log.Debugw("Job completed", logger.FieldCount, len(rows))
		return rows, nil
	}

	open, err := c.source.OpenHistory(ctx, j.JobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load open runs of job %d", j.JobID)
	}
	if len(open) > 0 {
		h := latest(open)
		if len(open) > 1 {
			log.Warnw("Job has more than one open run, reporting the latest",
				logger.FieldCount, len(open),
				logger.FieldHistoryID, h.ID)
		}
		row, err := c.openRow(ctx, job, h, report, infer)
		if err != nil {
			return nil, err
		}
		if row.Stale {
			log.Warnw("Open run started before the report window",
				logger.FieldHistoryID, h.ID,
				logger.FieldWindowStart, report.Start,
				"started", h.Start)
		}
		log.Debugw("Job in progress", logger.FieldStatus, row.Text)
		return []Row{row}, nil
	}

	log.Debugw("Job not yet run")
	return []Row{{
		JobID:       job.ID,
		JobName:     job.Name,
		Description: job.DisplayName(),
		Payout:      job.IsPayout(),
		Status:      NotRun,
		Window:      w,
		Stream:      infer.Stream,
		Strategy:    infer.Strategy,
	}}, nil
}

func (c *Classifier) finishedRow(job *batch.Job, h batch.JobHistory, infer stream.Result) Row {
	s, text := Complete, TextComplete
	if !h.Success {
		s, text = Failed, TextError
	}
	return Row{
		JobID:       job.ID,
		JobName:     job.Name,
		Description: job.DisplayName(),
		Payout:      job.IsPayout(),
		Status:      s,
		Start:       h.Start,
		End:         h.End,
		Elapsed:     Elapsed(h.Start, h.End, c.now()),
		Text:        text,
		Decoration:  Decorate(s, job.IsPayout()),
		Window:      infer.Window,
		Stream:      infer.Stream,
		Strategy:    infer.Strategy,
	}
}

func (c *Classifier) openRow(ctx context.Context, job *batch.Job, h batch.JobHistory, report batch.Window, infer stream.Result) (Row, error) {
	label, err := c.taskLabel(ctx, h)
	if err != nil {
		return Row{}, err
	}

	text, deco := TextNoTask, Decorate(NotRun, false)
	if label != "" {
		text = "Task[" + label + "]"
		deco = Decorate(InProgress, job.IsPayout())
	}
	return Row{
		JobID:       job.ID,
		JobName:     job.Name,
		Description: job.DisplayName(),
		Payout:      job.IsPayout(),
		Status:      InProgress,
		Start:       h.Start,
		Elapsed:     Elapsed(h.Start, nil, c.now()),
		Text:        text,
		TaskLabel:   label,
		Decoration:  deco,
		Stale:       h.Start.Before(report.Start),
		Window:      infer.Window,
		Stream:      infer.Stream,
		Strategy:    infer.Strategy,
	}, nil
}

func latest(runs []batch.JobHistory) batch.JobHistory {
	best := runs[0]
	for _, h := range runs[1:] {
		if h.Start.After(best.Start) || (h.Start.Equal(best.Start) && h.ID > best.ID) {
			best = h
		}
	}
	return best
}
