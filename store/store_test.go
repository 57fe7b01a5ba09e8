package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/due"
	"github.com/teranos/batchwatch/errors"
	qtest "github.com/teranos/batchwatch/internal/testing"
	"github.com/teranos/batchwatch/rollup"
	"github.com/teranos/batchwatch/status"
	"github.com/teranos/batchwatch/stream"
)

var (
	_ due.Source    = (*Store)(nil)
	_ stream.Source = (*Store)(nil)
	_ status.Source = (*Store)(nil)
	_ rollup.Source = (*Store)(nil)
)

var at = qtest.At

func setup(t *testing.T) (*Store, *qtest.Fixture) {
	t.Helper()
	db := qtest.CreateTestDB(t)
	return New(db), qtest.NewFixture(t, db)
}

func TestListDueScheduleEntries(t *testing.T) {
	s, f := setup(t)
	f.Job(1, "evening", "Evening job").
		Job(2, "night", "Night job").
		Job(3, "late_morning", "Late job").
		Job(4, "afternoon", "Afternoon job").
		Job(5, "disabled", "Disabled job")
	f.Schedule(1, "Wednesday", 1800, "").
		Schedule(2, "Thursday", 100, "nightly").
		Schedule(3, "Thursday", 1200, "").
		Schedule(4, "Wednesday", 1000, "").
		InactiveSchedule(5, "Wednesday", 1900)

	got, err := s.ListDueScheduleEntries(context.Background(), batch.Wednesday, batch.TimeOfDay{Hour: 14}, batch.Thursday)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "evening", got[0].JobName)
	assert.Equal(t, batch.Wednesday, got[0].Day)
	assert.Equal(t, 1800, got[0].Time.HHMM())
	assert.Empty(t, got[0].Stream)

	assert.Equal(t, "night", got[1].JobName)
	assert.Equal(t, "nightly", got[1].Stream)
	assert.True(t, got[1].Active)
}

func TestListScheduleEntriesOrdersByWeekday(t *testing.T) {
	s, f := setup(t)
	f.Job(1, "a", "").Job(2, "b", "")
	f.Schedule(1, "Saturday", 100, "").
		Schedule(2, "Sunday", 2300, "").
		Schedule(1, "Monday", 500, "").
		InactiveSchedule(2, "Monday", 400)

	all, err := s.ListScheduleEntries(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, batch.Sunday, all[0].Day)
	assert.Equal(t, batch.Monday, all[1].Day)
	assert.False(t, all[1].Active)
	assert.Equal(t, batch.Saturday, all[3].Day)

	monday := batch.Monday
	mon, err := s.ListScheduleEntries(context.Background(), &monday)
	require.NoError(t, err)
	assert.Len(t, mon, 2)
}

func TestGetJob(t *testing.T) {
	s, f := setup(t)
	f.Job(7, "united_payout_all_f", "United Payout All F")

	job, err := s.GetJob(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "united_payout_all_f", job.Name)
	assert.True(t, job.IsPayout())
	assert.True(t, job.Active)
	assert.Nil(t, job.LastRun)

	_, err = s.GetJob(context.Background(), 8)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestHistoryQueries(t *testing.T) {
	s, f := setup(t)
	f.Job(7, "job_x", "Job X")
	f.Run(1, 7, at(13, 15, 0), qtest.Ptr(at(13, 15, 30)), true).
		Run(2, 7, at(13, 20, 0), qtest.Ptr(at(13, 21, 0)), false).
		Run(3, 7, at(12, 15, 0), qtest.Ptr(at(12, 15, 30)), true).
		Run(4, 7, at(14, 8, 0), nil, false)

	w := batch.Window{Start: at(13, 14, 0), End: at(14, 9, 0)}
	ctx := context.Background()

	done, err := s.CompletedHistory(ctx, 7, w.Start, w.End)
	require.NoError(t, err)
	require.Len(t, done, 2)
	assert.Equal(t, int64(1), done[0].ID)
	assert.True(t, done[0].Success)
	assert.True(t, done[0].Start.Equal(at(13, 15, 0)))
	require.NotNil(t, done[0].End)
	assert.True(t, done[0].End.Equal(at(13, 15, 30)))
	assert.False(t, done[1].Success)

	open, err := s.OpenHistory(ctx, 7)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, int64(4), open[0].ID)
	assert.True(t, open[0].Open())

	ran, err := s.HasRunWithin(ctx, 7, w.Start, w.End)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = s.HasRunWithin(ctx, 7, at(14, 0, 0), w.End)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestTasks(t *testing.T) {
	s, f := setup(t)
	f.Job(7, "job_x", "")
	f.Run(11, 7, at(14, 8, 0), nil, false)
	f.Task(7, 1, "extract").Task(7, 2, "load")
	f.TaskRun(1, 11, 1, 7, at(14, 8, 0), qtest.Ptr(at(14, 8, 10))).
		TaskRun(2, 11, 2, 7, at(14, 8, 10), nil)

	ctx := context.Background()
	tasks, err := s.TaskHistory(ctx, 11)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.NotNil(t, tasks[0].End)
	assert.Nil(t, tasks[1].End)
	assert.Equal(t, int64(2), tasks[1].TaskID)

	task, err := s.GetTask(ctx, 7, 2)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "load", task.Name)

	task, err = s.GetTask(ctx, 7, 99)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestStreamQueries(t *testing.T) {
	s, f := setup(t)
	f.Job(1, "stream_a", "").Job(2, "stream_b", "").Job(3, "other", "")
	f.Schedule(1, "Wednesday", 1900, "nightly").
		Schedule(1, "Thursday", 300, "nightly").
		Schedule(2, "Wednesday", 2100, "nightly").
		Schedule(3, "Wednesday", 1800, "early")
	f.Run(1, 2, at(13, 21, 0), qtest.Ptr(at(13, 21, 40)), true).
		Run(2, 2, at(13, 23, 0), nil, false).
		Run(3, 2, at(12, 21, 0), qtest.Ptr(at(12, 21, 40)), true).
		Run(4, 3, at(13, 18, 0), qtest.Ptr(at(13, 18, 5)), true)

	ctx := context.Background()
	w := batch.Window{Start: at(13, 17, 0), End: at(14, 9, 0)}

	name, ok, err := s.JobStream(ctx, batch.Wednesday, 1, batch.TimeOfDay{Hour: 19})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "nightly", name)

	_, ok, err = s.JobStream(ctx, batch.Wednesday, 1, batch.TimeOfDay{Hour: 20})
	require.NoError(t, err)
	assert.False(t, ok)

	runs, err := s.StreamSiblingRuns(ctx, "nightly", batch.Wednesday, 1, w.Start, w.End)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.NotNil(t, runs[0].End)
	assert.Nil(t, runs[1].End)

	n, err := s.CountEarlierOtherStreamRuns(ctx, batch.Wednesday, "nightly", batch.TimeOfDay{Hour: 19}, w.Start)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	first, last, ok, err := s.StreamScheduleBounds(ctx, "nightly")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 300, first.HHMM())
	assert.Equal(t, 2100, last.HHMM())

	_, _, ok, err = s.StreamScheduleBounds(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobStreamLastDuplicateWins(t *testing.T) {
	s, f := setup(t)
	f.Job(1, "dup_named", "").Job(2, "dup_cleared", "")
	f.Schedule(1, "Wednesday", 1900, "").
		Schedule(1, "Wednesday", 1900, "late").
		Schedule(2, "Wednesday", 1900, "early").
		Schedule(2, "Wednesday", 1900, "")
	ctx := context.Background()

	name, ok, err := s.JobStream(ctx, batch.Wednesday, 1, batch.TimeOfDay{Hour: 19})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "late", name)

	_, ok, err = s.JobStream(ctx, batch.Wednesday, 2, batch.TimeOfDay{Hour: 19})
	require.NoError(t, err)
	assert.False(t, ok, "a NULL stream on the last entry means no stream")
}

func TestQueriesWithZonedWindow(t *testing.T) {
	s, f := setup(t)
	f.Job(1, "stream_a", "").Job(2, "stream_b", "")
	f.Schedule(1, "Wednesday", 1900, "nightly").
		Schedule(2, "Wednesday", 2100, "nightly")
	// 09:00 CST, before the window opens
	f.Run(1, 2, at(13, 15, 0), qtest.Ptr(at(13, 15, 10)), true).
		// 15:00 CST, inside
		Run(2, 2, at(13, 21, 0), qtest.Ptr(at(13, 21, 30)), true)

	cst := time.FixedZone("CST", -6*60*60)
	w := batch.Window{Start: at(13, 20, 0).In(cst), End: at(14, 15, 0).In(cst)}
	ctx := context.Background()

	done, err := s.CompletedHistory(ctx, 2, w.Start, w.End)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, int64(2), done[0].ID)

	ran, err := s.HasRunWithin(ctx, 2, w.Start, at(13, 21, 0).In(cst))
	require.NoError(t, err)
	assert.False(t, ran)

	runs, err := s.StreamSiblingRuns(ctx, "nightly", batch.Wednesday, 1, w.Start, w.End)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Start.Equal(at(13, 21, 0)))

	n, err := s.CountEarlierOtherStreamRuns(ctx, batch.Wednesday, "early", batch.TimeOfDay{Hour: 22}, w.Start)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInferStreamWindowAgainstStore(t *testing.T) {
	s, f := setup(t)
	f.Job(1, "stream_a", "").Job(2, "stream_b", "")
	f.Schedule(1, "Wednesday", 1900, "nightly").
		Schedule(1, "Thursday", 300, "nightly").
		Schedule(2, "Wednesday", 2100, "nightly")

	w := batch.Window{Start: at(13, 17, 0), End: at(14, 9, 0)}
	inf := stream.NewInferencer(s, nil)

	// no sibling history yet: schedule-derived
	res, err := inf.Infer(context.Background(), 1, batch.Wednesday, batch.TimeOfDay{Hour: 19}, w)
	require.NoError(t, err)
	assert.Equal(t, "schedule_derived", res.Strategy)
	assert.True(t, res.Window.Start.Equal(at(13, 21, 0)))
	assert.True(t, res.Window.End.Equal(at(14, 3, 0)))

	f.Run(1, 2, at(13, 21, 0), qtest.Ptr(at(13, 21, 40)), true)
	res, err = inf.Infer(context.Background(), 1, batch.Wednesday, batch.TimeOfDay{Hour: 19}, w)
	require.NoError(t, err)
	assert.Equal(t, "observed_history", res.Strategy)
	assert.True(t, res.Window.Start.Equal(at(13, 21, 0)))
	assert.True(t, res.Window.End.Equal(at(13, 21, 40)))
}

func TestLatestScheduledBefore(t *testing.T) {
	s, f := setup(t)
	f.Job(1, "united_ips_transactions", "").Job(2, "gate", "").Job(3, "tie", "").Job(4, "late", "")
	f.Schedule(1, "Monday", 1000, "").
		Schedule(2, "Monday", 900, "").
		Schedule(3, "Monday", 900, "").
		Schedule(4, "Monday", 1100, "")

	ctx := context.Background()
	id, ok, err := s.LatestScheduledBefore(ctx, batch.Monday, batch.MorningCutoff, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	id, ok, err = s.LatestScheduledBefore(ctx, batch.Monday, batch.MorningCutoff, []string{"IPS_TRANSACTIONS", "acra_debtloader"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	_, ok, err = s.LatestScheduledBefore(ctx, batch.Tuesday, batch.MorningCutoff, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfigValues(t *testing.T) {
	s, f := setup(t)
	f.Config("report.cutover_time", "18:00").Config("mail.to", "ops@example.com")

	vals, err := s.ConfigValues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"report.cutover_time": "18:00", "mail.to": "ops@example.com"}, vals)
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return New(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestDriverErrorsAreDataAccess(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM icm_batch_schedule s")).WillReturnError(errors.New("connection reset by peer"))

	_, err := s.ListDueScheduleEntries(context.Background(), batch.Wednesday, batch.TimeOfDay{Hour: 17}, batch.Thursday)
	require.Error(t, err)
	assert.True(t, errors.IsDataAccessError(err))
	assert.Contains(t, err.Error(), "failed to list due schedule entries")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMalformedScheduleRow(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"icm_batch_schedule_id", "icm_job_id", "job_name", "schedule_day", "schedule_time", "job_stream", "runcycle", "active"}
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows(cols).AddRow(1, 7, "job_x", "Funday", 1430, nil, "D", true))

	_, err := s.ListScheduleEntries(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule entry 1")
}

func TestMockedCompletedHistory(t *testing.T) {
	s, mock := newMock(t)
	start, end := at(13, 17, 0), at(14, 9, 0)
	cols := []string{"icm_job_history_id", "icm_job_id", "start_date", "end_date", "success", "message", "run_list_no", "filename"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE start_date >= ? AND end_date <= ? AND icm_job_id = ?")).
		WithArgs(start, end, int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 7, at(13, 18, 0), at(13, 18, 30), true, "ok", 3, "out.csv"))

	got, err := s.CompletedHistory(context.Background(), 7, start, end)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "out.csv", got[0].Filename)
	assert.Equal(t, 3, got[0].RunListNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}
