// Package report runs one ICM daily status report: it resolves the report
// window, lists the due jobs, classifies each one and computes the batch
// verdict. Rendering and delivery of the result live in render.go and the
// notify package.
package report

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/batchwatch/am"
	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/calendar"
	"github.com/teranos/batchwatch/due"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
	"github.com/teranos/batchwatch/rollup"
	"github.com/teranos/batchwatch/status"
	"github.com/teranos/batchwatch/stream"
	"github.com/teranos/batchwatch/window"
)

// Source is everything a report run reads from the job database.
type Source interface {
	due.Source
	stream.Source
	status.Source
	rollup.Source
	ConfigValues(ctx context.Context) (map[string]string, error)
}

// Options adjust a single run.
type Options struct {
	// Now overrides the report instant. Zero means the runner's clock.
	Now time.Time

	// PayAllFDates, when non-empty, replaces the configured pay-all-F list
	// ('#'-separated yyyy-MM-dd).
	PayAllFDates string

	// RunID names the run in logs and execution history. Empty generates one.
	RunID string
}

// Result is a finished report run.
type Result struct {
	RunID    string
	Window   batch.Window
	Due      []due.Job
	Rows     []status.Row
	Verdict  rollup.Verdict
	Subject  string
	Config   *am.Config // effective config after database overrides
	Calendar calendar.Calendar
	Duration time.Duration
}

// Unavailable counts rows whose classification failed.
func (r *Result) Unavailable() int {
	n := 0
	for _, row := range r.Rows {
		if row.Status == status.Unavailable {
			n++
		}
	}
	return n
}

// Runner executes report runs against one source.
type Runner struct {
	source Source
	logger *zap.SugaredLogger
	now    func() time.Time

	mu     sync.RWMutex
	config *am.Config
}

// NewRunner creates a runner. cfg is the file/environment configuration;
// app_config overrides are applied on every run.
func NewRunner(src Source, cfg *am.Config, log *zap.SugaredLogger) *Runner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{source: src, config: cfg, logger: log, now: time.Now}
}

// WithClock replaces the runner's clock.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// SetConfig swaps the configuration used by subsequent runs.
func (r *Runner) SetConfig(cfg *am.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
}

// Config returns the file/environment configuration of the next run.
func (r *Runner) Config() *am.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Run produces one report. Failing to read configuration overrides or to
// resolve the window aborts the run, as does any job database failure while
// listing or classifying due jobs. Any other failure classifying a single
// job becomes an Unavailable row.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	started := time.Now()
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx, r.logger)

	values, err := r.source.ConfigValues(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config overrides")
	}
	cfg, applied := r.Config().ApplyOverrides(values, log)
	for key := range applied {
		log.Debugw("Config value overridden from database", logger.FieldRule, key)
	}

	cal := BuildCalendar(cfg.Calendar, opts.PayAllFDates, log)

	now := opts.Now
	if now.IsZero() {
		now = r.now()
	}
	now = now.In(cfg.Report.Location())

	w := window.NewResolver(cfg.Report.LookbackHours, cfg.Report.CutoverTime, log).Resolve(now)
	if !w.Valid() {
		return nil, errors.Newf("resolved an empty report window %s - %s", w.Start, w.End)
	}
	log.Infow("Starting report run",
		logger.FieldWindowStart, w.Start,
		logger.FieldWindowEnd, w.End)

	jobs, err := due.NewResolver(r.source, cal, r.logger.Named("due")).Resolve(ctx, w)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve due jobs")
	}

	inferrer := stream.NewInferencer(r.source, r.logger.Named("stream"))
	classifier := status.NewClassifier(r.source, inferrer, r.logger.Named("status")).
		WithExcludedJobs(cfg.Report.ExcludedJobs).
		WithClock(func() time.Time { return now })

	rows := make([]status.Row, 0, len(jobs))
	for _, j := range jobs {
		jobRows, err := classifier.Classify(ctx, j, w)
		if errors.IsDataAccessError(err) {
			return nil, errors.Wrapf(err, "failed to classify job %d", j.JobID)
		}
		if err != nil {
			job, _ := classifier.Jobs().Get(ctx, j.JobID)
			log.Errorw("Failed to classify job, reporting it as unavailable",
				logger.FieldJobID, j.JobID,
				logger.FieldJobName, j.JobName,
				logger.FieldError, err)
			rows = append(rows, status.UnavailableRow(j.ScheduleEntry, job, err))
			continue
		}
		rows = append(rows, jobRows...)
	}

	verdict, err := rollup.NewChecker(r.source, r.logger.Named("rollup")).Overall(ctx, w)
	if err != nil {
		// the rows are still worth sending
		log.Errorw("Failed to compute batch verdict, reporting in progress",
			logger.FieldError, err)
		verdict = rollup.InProgress
	}

	res := &Result{
		RunID:    runID,
		Window:   w,
		Due:      jobs,
		Rows:     rows,
		Verdict:  verdict,
		Subject:  Subject(w.End, verdict),
		Config:   cfg,
		Calendar: cal,
		Duration: time.Since(started),
	}

	log.Infow("Report run complete",
		logger.FieldCount, len(rows),
		"due", len(jobs),
		"unavailable", res.Unavailable(),
		logger.FieldVerdict, verdict.String(),
		logger.FieldDurationMS, res.Duration.Milliseconds())
	return res, nil
}

// Subject is the mail subject for a report ending at end.
func Subject(end time.Time, v rollup.Verdict) string {
	return "ICM Daily Jobs Status Report - " + end.Format("1/2/2006") + " - " + v.String()
}

// BuildCalendar assembles the run calendar from the configured date lists,
// the optional calendar file and a command-line pay-all-F override.
// Malformed dates are logged and skipped.
func BuildCalendar(cfg am.CalendarConfig, payAllFOverride string, log *zap.SugaredLogger) calendar.Calendar {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	holidays, err := calendar.ParseDateList(cfg.Holidays)
	if err != nil {
		log.Warnw("Malformed holiday list", logger.FieldError, err)
	}

	payList := cfg.PayAllFDates
	if payAllFOverride != "" {
		payList = payAllFOverride
	}
	payAllF, err := calendar.ParseDateList(payList)
	if err != nil {
		log.Warnw("Malformed pay-all-F date list", logger.FieldError, err)
	}

	cal := calendar.Calendar{Holidays: holidays, PayAllF: payAllF}

	if cfg.File != "" {
		fromFile, err := calendar.LoadFile(cfg.File)
		if err != nil {
			log.Warnw("Problem reading calendar file",
				logger.FieldPath, cfg.File,
				logger.FieldError, err)
		}
		if payAllFOverride != "" {
			fromFile.PayAllF = nil
		}
		cal = cal.Merge(fromFile)
	}

	log.Debugw("Calendar loaded",
		"holidays", len(cal.Holidays),
		"pay_all_f_dates", len(cal.PayAllF))
	return cal
}
