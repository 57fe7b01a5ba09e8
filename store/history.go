package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/errors"
)

type historyRow struct {
	ID        int64          `db:"icm_job_history_id"`
	JobID     int64          `db:"icm_job_id"`
	Start     time.Time      `db:"start_date"`
	End       sql.NullTime   `db:"end_date"`
	Success   bool           `db:"success"`
	Message   sql.NullString `db:"message"`
	RunListNo sql.NullInt64  `db:"run_list_no"`
	Filename  sql.NullString `db:"filename"`
}

const historyColumns = `icm_job_history_id, icm_job_id, start_date, end_date, success, message, run_list_no, filename`

func histories(rows []historyRow) []batch.JobHistory {
	out := make([]batch.JobHistory, 0, len(rows))
	for _, r := range rows {
		out = append(out, batch.JobHistory{
			ID:        r.ID,
			JobID:     r.JobID,
			Start:     r.Start,
			End:       timePtr(r.End),
			Success:   r.Success,
			Message:   r.Message.String,
			RunListNo: int(r.RunListNo.Int64),
			Filename:  r.Filename.String,
		})
	}
	return out
}

// CompletedHistory returns the runs of a job that started at or after start
// and ended at or before end, oldest first.
func (s *Store) CompletedHistory(ctx context.Context, jobID int64, start, end time.Time) ([]batch.JobHistory, error) {
	var rows []historyRow
	err := s.selectRows(ctx, &rows, `
		SELECT `+historyColumns+`
		FROM icm_job_history
		WHERE start_date >= ? AND end_date <= ? AND icm_job_id = ?
		ORDER BY start_date, icm_job_history_id`,
		start, end, jobID)
	if err != nil {
		return nil, errors.WrapDataAccess(err, "failed to get completed job history")
	}
	return histories(rows), nil
}

// OpenHistory returns every run of a job without an end date, oldest first.
// More than one is an anomaly the caller reports.
func (s *Store) OpenHistory(ctx context.Context, jobID int64) ([]batch.JobHistory, error) {
	var rows []historyRow
	err := s.selectRows(ctx, &rows, `
		SELECT `+historyColumns+`
		FROM icm_job_history
		WHERE end_date IS NULL AND icm_job_id = ?
		ORDER BY start_date, icm_job_history_id`,
		jobID)
	if err != nil {
		return nil, errors.WrapDataAccess(err, "failed to get open job history")
	}
	return histories(rows), nil
}

// HasRunWithin reports whether a job has a run that started and ended
// inside [start, end].
func (s *Store) HasRunWithin(ctx context.Context, jobID int64, start, end time.Time) (bool, error) {
	var n int
	err := s.getRow(ctx, &n, `
		SELECT COUNT(*)
		FROM icm_job_history
		WHERE icm_job_id = ? AND start_date >= ? AND end_date <= ?`,
		jobID, start, end)
	if err != nil {
		return false, errors.WrapDataAccess(err, "failed to check job history")
	}
	return n > 0, nil
}

type taskHistoryRow struct {
	ID        int64          `db:"icm_job_task_history_id"`
	HistoryID int64          `db:"icm_job_history_id"`
	TaskID    int64          `db:"icm_job_task_id"`
	JobID     int64          `db:"icm_job_id"`
	Start     time.Time      `db:"start_date"`
	End       sql.NullTime   `db:"end_date"`
	Message   sql.NullString `db:"message"`
}

// TaskHistory returns the steps of a run in start order.
func (s *Store) TaskHistory(ctx context.Context, historyID int64) ([]batch.TaskHistory, error) {
	var rows []taskHistoryRow
	err := s.selectRows(ctx, &rows, `
		SELECT icm_job_task_history_id, icm_job_history_id, icm_job_task_id, icm_job_id, start_date, end_date, message
		FROM icm_job_task_history
		WHERE icm_job_history_id = ?
		ORDER BY start_date, icm_job_task_history_id`,
		historyID)
	if err != nil {
		return nil, errors.WrapDataAccess(err, "failed to get task history")
	}

	out := make([]batch.TaskHistory, 0, len(rows))
	for _, r := range rows {
		out = append(out, batch.TaskHistory{
			ID:        r.ID,
			HistoryID: r.HistoryID,
			TaskID:    r.TaskID,
			JobID:     r.JobID,
			Start:     r.Start,
			End:       timePtr(r.End),
			Message:   r.Message.String,
		})
	}
	return out, nil
}

// GetTask returns a task definition, or nil when the job has no such task.
func (s *Store) GetTask(ctx context.Context, jobID, taskID int64) (*batch.Task, error) {
	var r struct {
		JobID    int64         `db:"icm_job_id"`
		TaskID   int64         `db:"icm_job_task_id"`
		Name     string        `db:"task_name"`
		Expected sql.NullInt64 `db:"expected_minutes"`
	}
	err := s.getRow(ctx, &r, `
		SELECT icm_job_id, icm_job_task_id, task_name, expected_minutes
		FROM icm_job_task
		WHERE icm_job_id = ? AND icm_job_task_id = ?`,
		jobID, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapDataAccess(err, "failed to get task")
	}
	return &batch.Task{JobID: r.JobID, TaskID: r.TaskID, Name: r.Name, ExpectedMinutes: int(r.Expected.Int64)}, nil
}
