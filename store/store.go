// Package store reads ICM job, schedule and history records from the job
// database. It works against SQLite and postgres through sqlx; queries are
// written with ? placeholders and rebound for the connected driver.
//
// Weekdays are stored as English names and schedule times as HHMM
// integers; both are converted to batch types here and nowhere else.
//
// History timestamps are stored in UTC. SQLite compares them as text, so
// every time bound is converted to UTC before it is bound to a query.
package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/errors"
)

// Store is the data-access collaborator of a report run.
type Store struct {
	db *sqlx.DB
}

// New creates a store over an open database.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) selectRows(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.db.SelectContext(ctx, dest, s.db.Rebind(query), utcArgs(args)...)
}

func (s *Store) getRow(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.db.GetContext(ctx, dest, s.db.Rebind(query), utcArgs(args)...)
}

// utcArgs returns args with every time.Time moved to UTC.
func utcArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			a = t.UTC()
		}
		out[i] = a
	}
	return out
}

// weekdayOrder sorts schedule_day names Sunday first.
const weekdayOrder = `CASE s.schedule_day
	WHEN 'Sunday' THEN 1 WHEN 'Monday' THEN 2 WHEN 'Tuesday' THEN 3
	WHEN 'Wednesday' THEN 4 WHEN 'Thursday' THEN 5 WHEN 'Friday' THEN 6
	WHEN 'Saturday' THEN 7 ELSE 8 END`

const scheduleColumns = `s.icm_batch_schedule_id, s.icm_job_id, j.job_name, s.schedule_day,
	s.schedule_time, s.job_stream, s.runcycle, s.active`

type scheduleRow struct {
	ID       int64          `db:"icm_batch_schedule_id"`
	JobID    int64          `db:"icm_job_id"`
	JobName  string         `db:"job_name"`
	Day      string         `db:"schedule_day"`
	Time     int            `db:"schedule_time"`
	Stream   sql.NullString `db:"job_stream"`
	RunCycle sql.NullString `db:"runcycle"`
	Active   bool           `db:"active"`
}

func (r scheduleRow) entry() (batch.ScheduleEntry, error) {
	day, err := batch.ParseWeekday(r.Day)
	if err != nil {
		return batch.ScheduleEntry{}, errors.Wrapf(err, "schedule entry %d", r.ID)
	}
	tod, err := batch.FromHHMM(r.Time)
	if err != nil {
		return batch.ScheduleEntry{}, errors.Wrapf(err, "schedule entry %d", r.ID)
	}
	return batch.ScheduleEntry{
		JobID:    r.JobID,
		JobName:  r.JobName,
		Day:      day,
		Time:     tod,
		Stream:   strings.TrimSpace(r.Stream.String),
		RunCycle: r.RunCycle.String,
		Active:   r.Active,
	}, nil
}

func entries(rows []scheduleRow) ([]batch.ScheduleEntry, error) {
	out := make([]batch.ScheduleEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ListDueScheduleEntries returns active entries on startDay at or after
// startTime, and on endDay at or before 11:00, in report order.
func (s *Store) ListDueScheduleEntries(ctx context.Context, startDay batch.Weekday, startTime batch.TimeOfDay, endDay batch.Weekday) ([]batch.ScheduleEntry, error) {
	var rows []scheduleRow
	err := s.selectRows(ctx, &rows, `
		SELECT `+scheduleColumns+`
		FROM icm_batch_schedule s
		JOIN icm_job j ON j.icm_job_id = s.icm_job_id
		WHERE s.active = ?
		  AND ((s.schedule_day = ? AND s.schedule_time >= ?)
		    OR (s.schedule_day = ? AND s.schedule_time <= ?))
		ORDER BY `+weekdayOrder+`, s.schedule_time, s.icm_job_id`,
		true,
		startDay.String(), startTime.HHMM(),
		endDay.String(), batch.MorningCutoff.HHMM())
	if err != nil {
		return nil, errors.WrapDataAccess(err, "failed to list due schedule entries")
	}
	return entries(rows)
}

// ListScheduleEntries returns all schedule entries, optionally for one day.
func (s *Store) ListScheduleEntries(ctx context.Context, day *batch.Weekday) ([]batch.ScheduleEntry, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM icm_batch_schedule s
		JOIN icm_job j ON j.icm_job_id = s.icm_job_id`
	var args []interface{}
	if day != nil {
		query += ` WHERE s.schedule_day = ?`
		args = append(args, day.String())
	}
	query += ` ORDER BY ` + weekdayOrder + `, s.schedule_time, s.icm_job_id`

	var rows []scheduleRow
	if err := s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, errors.WrapDataAccess(err, "failed to list schedule entries")
	}
	return entries(rows)
}

type jobRow struct {
	ID          int64          `db:"icm_job_id"`
	Name        string         `db:"job_name"`
	Description sql.NullString `db:"job_desc"`
	WaitTime    sql.NullInt64  `db:"wait_time"`
	WarnTime    sql.NullInt64  `db:"warn_time"`
	MaxWaitTime sql.NullInt64  `db:"max_wait_time"`
	LastRun     sql.NullTime   `db:"last_run"`
	Active      bool           `db:"active"`
}

// GetJob returns the job with id, or an ErrNotFound error.
func (s *Store) GetJob(ctx context.Context, id int64) (*batch.Job, error) {
	var r jobRow
	err := s.getRow(ctx, &r, `
		SELECT icm_job_id, job_name, job_desc, wait_time, warn_time, max_wait_time, last_run, active
		FROM icm_job
		WHERE icm_job_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job %d", id)
	}
	if err != nil {
		return nil, errors.WrapDataAccess(err, "failed to get job")
	}

	job := &batch.Job{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description.String,
		WaitMinutes:    int(r.WaitTime.Int64),
		WarnMinutes:    int(r.WarnTime.Int64),
		MaxWaitMinutes: int(r.MaxWaitTime.Int64),
		Active:         r.Active,
	}
	if r.LastRun.Valid {
		job.LastRun = &r.LastRun.Time
	}
	return job, nil
}

// ConfigValues returns the app_config overrides.
func (s *Store) ConfigValues(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"config_key"`
		Value string `db:"config_value"`
	}
	if err := s.selectRows(ctx, &rows, `SELECT config_key, config_value FROM app_config`); err != nil {
		return nil, errors.WrapDataAccess(err, "failed to read app_config")
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
