// Package pulse runs the status report on a cron schedule and keeps a
// history of every run in pulse_executions.
package pulse

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
	"github.com/teranos/batchwatch/report"
)

// Config contains configuration for the daemon
type Config struct {
	Schedule   string // standard 5-field cron expression
	RunOnStart bool
	Location   *time.Location // schedule time zone; nil means time.Local
}

// Daemon runs reports on a cron schedule. Runs never overlap; a run that is
// still going when the next one is due causes that tick to be skipped.
type Daemon struct {
	tracker *Tracker
	cron    *cron.Cron
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.SugaredLogger

	runMu sync.Mutex // held for the duration of a run

	mu        sync.Mutex
	entry     cron.EntryID
	lastRunAt time.Time
	runs      int64
	failures  int64
}

// NewDaemon creates a daemon. recorder may be nil to run without history.
func NewDaemon(ctx context.Context, p Publisher, recorder Recorder, cfg Config, log *zap.SugaredLogger) (*Daemon, error) {
	if log == nil {
		log = logger.ComponentLogger("pulse")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "invalid pulse schedule %q", cfg.Schedule),
			"use a 5-field cron expression such as \"0 7 * * *\"")
	}

	daemonCtx, cancel := context.WithCancel(ctx)
	cl := cronLogger{log}
	return &Daemon{
		tracker: NewTracker(p, recorder, log),
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		config: cfg,
		ctx:    daemonCtx,
		cancel: cancel,
		logger: log,
	}, nil
}

// Start registers the schedule and begins the cron loop
func (d *Daemon) Start() error {
	if err := d.Reschedule(d.config.Schedule); err != nil {
		return err
	}
	d.cron.Start()

	if d.config.RunOnStart {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.Execute(TriggerStartup)
		}()
	}

	d.logger.Infow("Pulse daemon started",
		"schedule", d.config.Schedule,
		logger.FieldNextRun, d.NextRun())
	return nil
}

// Stop cancels an in-flight run and waits for it to return
func (d *Daemon) Stop() {
	d.cancel()
	<-d.cron.Stop().Done()
	d.wg.Wait()
	d.logger.Infow("Pulse daemon stopped")
}

// Reschedule replaces the cron entry with spec. Used on config reload.
func (d *Daemon) Reschedule(spec string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.entry != 0 && spec == d.config.Schedule {
		return nil
	}

	id, err := d.cron.AddFunc(spec, func() { d.Execute(TriggerSchedule) })
	if err != nil {
		return errors.Wrapf(err, "invalid pulse schedule %q", spec)
	}
	if d.entry != 0 {
		d.cron.Remove(d.entry)
		d.logger.Infow("Pulse schedule changed",
			"from", d.config.Schedule,
			"to", spec)
	}
	d.entry = id
	d.config.Schedule = spec
	return nil
}

// NextRun returns when the schedule fires next, or zero before Start
func (d *Daemon) NextRun() time.Time {
	d.mu.Lock()
	id := d.entry
	d.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return d.cron.Entry(id).Next
}

// Execute runs one report now and records it. Concurrent calls are
// serialized.
func (d *Daemon) Execute(trigger string) *Execution {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	startTime := time.Now()
	exec, _, err := d.tracker.Track(d.ctx, trigger, report.Options{})

	d.mu.Lock()
	d.lastRunAt = startTime
	d.runs++
	if err != nil {
		d.failures++
	}
	d.mu.Unlock()

	if err == nil {
		d.logger.Infow("Next pulse",
			logger.FieldRunID, exec.ID,
			logger.FieldNextRun, d.NextRun())
	}
	return exec
}

// Stats describes the daemon's activity since Start
type Stats struct {
	Schedule  string
	NextRun   time.Time
	LastRunAt time.Time
	Runs      int64
	Failures  int64
}

// GetStats returns daemon statistics
func (d *Daemon) GetStats() Stats {
	next := d.NextRun()
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Schedule:  d.config.Schedule,
		NextRun:   next,
		LastRunAt: d.lastRunAt,
		Runs:      d.runs,
		Failures:  d.failures,
	}
}

// cronLogger routes robfig/cron's own logging into zap
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, logger.FieldError, err)...)
}
