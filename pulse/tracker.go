package pulse

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/batchwatch/db"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/internal/util"
	"github.com/teranos/batchwatch/logger"
	"github.com/teranos/batchwatch/report"
)

// Publisher produces and delivers one report. *report.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, opts report.Options) (*report.Result, error)
}

// Recorder persists execution history. *ExecutionStore satisfies it.
type Recorder interface {
	Create(ctx context.Context, exec *Execution) error
	Update(ctx context.Context, exec *Execution) error
}

// Tracker wraps report runs in execution records.
type Tracker struct {
	publisher Publisher
	recorder  Recorder
	logger    *zap.SugaredLogger
}

// NewTracker creates a tracker. recorder may be nil to run without history.
func NewTracker(p Publisher, recorder Recorder, log *zap.SugaredLogger) *Tracker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Tracker{publisher: p, recorder: recorder, logger: log}
}

// Track runs one report and records its outcome. The execution id is used
// as the report run id unless opts already names one. The result is
// returned whenever the run produced one, even when delivery failed.
func (t *Tracker) Track(ctx context.Context, trigger string, opts report.Options) (*Execution, *report.Result, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	startTime := time.Now()
	exec := &Execution{
		ID:        opts.RunID,
		Trigger:   trigger,
		Status:    ExecutionStatusRunning,
		StartedAt: startTime.UTC(),
	}
	ctx = logger.WithRunID(ctx, exec.ID)
	log := logger.FromContext(ctx, t.logger)

	log.Infow("Pulse executing report", "trigger", trigger)

	if t.recorder != nil {
		if err := t.recorder.Create(ctx, exec); err != nil {
			// history is best effort; the report still goes out
			log.Errorw("Failed to create execution record", logger.FieldError, err)
		}
	}

	res, err := t.publisher.Publish(ctx, opts)

	completedAt := time.Now()
	durationMs := completedAt.Sub(startTime).Milliseconds()
	exec.CompletedAt = util.Ptr(completedAt.UTC())
	exec.DurationMs = &durationMs

	if res != nil {
		exec.Verdict = util.Ptr(res.Verdict.String())
		exec.Subject = util.Ptr(res.Subject)
		exec.RowCount = util.Ptr(len(res.Rows))
		exec.Unavailable = util.Ptr(res.Unavailable())
	}

	switch {
	case err != nil && (errors.Is(err, context.Canceled) || db.IsDatabaseClosed(err)):
		exec.Status = ExecutionStatusFailed
		exec.ErrorMessage = util.Ptr("interrupted by shutdown")
		log.Infow("Pulse run interrupted by shutdown",
			logger.FieldDurationMS, durationMs)
	case err != nil:
		exec.Status = ExecutionStatusFailed
		exec.ErrorMessage = util.Ptr(err.Error())
		log.Errorw("Pulse FAILED",
			logger.FieldDurationMS, durationMs,
			logger.FieldError, err)
	default:
		exec.Status = ExecutionStatusCompleted
		log.Infow("Pulse OK",
			logger.FieldVerdict, *exec.Verdict,
			logger.FieldCount, *exec.RowCount,
			logger.FieldDurationMS, durationMs)
	}

	if t.recorder != nil {
		// record the outcome even when ctx was cancelled
		if uerr := t.recorder.Update(context.WithoutCancel(ctx), exec); uerr != nil {
			log.Errorw("Failed to update execution record", logger.FieldError, uerr)
		}
	}
	return exec, res, err
}
