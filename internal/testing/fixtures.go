package testing

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
)

// Fixture seeds ICM records into a test database. Every insert fails the
// test on error.
type Fixture struct {
	t  *testing.T
	db *sqlx.DB
}

// NewFixture returns a seeder for db.
func NewFixture(t *testing.T, db *sqlx.DB) *Fixture {
	return &Fixture{t: t, db: db}
}

func (f *Fixture) exec(query string, args ...interface{}) {
	f.t.Helper()
	if _, err := f.db.Exec(query, args...); err != nil {
		f.t.Fatalf("Failed to seed fixture: %v\n%s", err, query)
	}
}

// Job inserts an active job.
func (f *Fixture) Job(id int64, name, desc string) *Fixture {
	f.t.Helper()
	f.exec("INSERT INTO icm_job (icm_job_id, job_name, job_desc, active) VALUES (?, ?, ?, 1)", id, name, desc)
	return f
}

// Schedule inserts an active schedule entry. An empty stream stores NULL.
func (f *Fixture) Schedule(jobID int64, day string, hhmm int, stream string) *Fixture {
	f.t.Helper()
	var js interface{}
	if stream != "" {
		js = stream
	}
	f.exec("INSERT INTO icm_batch_schedule (icm_job_id, schedule_day, schedule_time, job_stream, runcycle, active) VALUES (?, ?, ?, ?, 'D', 1)",
		jobID, day, hhmm, js)
	return f
}

// InactiveSchedule inserts a disabled schedule entry.
func (f *Fixture) InactiveSchedule(jobID int64, day string, hhmm int) *Fixture {
	f.t.Helper()
	f.exec("INSERT INTO icm_batch_schedule (icm_job_id, schedule_day, schedule_time, runcycle, active) VALUES (?, ?, ?, 'D', 0)",
		jobID, day, hhmm)
	return f
}

// Run inserts a job history row. A nil end leaves the run open. Times are
// stored in UTC, as the batch system writes them.
func (f *Fixture) Run(id, jobID int64, start time.Time, end *time.Time, success bool) *Fixture {
	f.t.Helper()
	f.exec("INSERT INTO icm_job_history (icm_job_history_id, icm_job_id, start_date, end_date, success, message) VALUES (?, ?, ?, ?, ?, '')",
		id, jobID, start.UTC(), utc(end), success)
	return f
}

// Task inserts a task definition.
func (f *Fixture) Task(jobID, taskID int64, name string) *Fixture {
	f.t.Helper()
	f.exec("INSERT INTO icm_job_task (icm_job_id, icm_job_task_id, task_name, expected_minutes) VALUES (?, ?, ?, 5)", jobID, taskID, name)
	return f
}

// TaskRun inserts a task history row of run historyID.
func (f *Fixture) TaskRun(id, historyID, taskID, jobID int64, start time.Time, end *time.Time) *Fixture {
	f.t.Helper()
	f.exec("INSERT INTO icm_job_task_history (icm_job_task_history_id, icm_job_history_id, icm_job_task_id, icm_job_id, start_date, end_date) VALUES (?, ?, ?, ?, ?, ?)",
		id, historyID, taskID, jobID, start.UTC(), utc(end))
	return f
}

// Config inserts an app_config override.
func (f *Fixture) Config(key, value string) *Fixture {
	f.t.Helper()
	f.exec("INSERT INTO app_config (config_key, config_value) VALUES (?, ?)", key, value)
	return f
}

// At returns a UTC timestamp in December 2023, the month most fixtures use.
func At(day, hour, minute int) time.Time {
	return time.Date(2023, time.December, day, hour, minute, 0, 0, time.UTC)
}

func utc(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Ptr returns a pointer to t, for optional end timestamps.
func Ptr(t time.Time) *time.Time {
	return &t
}
