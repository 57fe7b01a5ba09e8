package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/due"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/stream"
)

type fakeSource struct {
	jobs      map[int64]*batch.Job
	completed map[int64][]batch.JobHistory
	open      map[int64][]batch.JobHistory
	tasks     map[int64][]batch.TaskHistory
	defs      map[[2]int64]*batch.Task

	getJobCalls int
	failOpen    error
	lastWindow  batch.Window
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		jobs:      map[int64]*batch.Job{},
		completed: map[int64][]batch.JobHistory{},
		open:      map[int64][]batch.JobHistory{},
		tasks:     map[int64][]batch.TaskHistory{},
		defs:      map[[2]int64]*batch.Task{},
	}
}

func (f *fakeSource) GetJob(_ context.Context, id int64) (*batch.Job, error) {
	f.getJobCalls++
	j, ok := f.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("job %d", id)
	}
	return j, nil
}

func (f *fakeSource) CompletedHistory(_ context.Context, jobID int64, start, end time.Time) ([]batch.JobHistory, error) {
	f.lastWindow = batch.Window{Start: start, End: end}
	var out []batch.JobHistory
	for _, h := range f.completed[jobID] {
		if f.lastWindow.Covers(batch.Span{Start: h.Start, End: h.End}) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeSource) OpenHistory(_ context.Context, jobID int64) ([]batch.JobHistory, error) {
	return f.open[jobID], f.failOpen
}

func (f *fakeSource) TaskHistory(_ context.Context, historyID int64) ([]batch.TaskHistory, error) {
	return f.tasks[historyID], nil
}

func (f *fakeSource) GetTask(_ context.Context, jobID, taskID int64) (*batch.Task, error) {
	return f.defs[[2]int64{jobID, taskID}], nil
}

type fixedInferrer struct {
	result stream.Result
	calls  int
}

func (f *fixedInferrer) Infer(context.Context, int64, batch.Weekday, batch.TimeOfDay, batch.Window) (stream.Result, error) {
	f.calls++
	return f.result, nil
}

var (
	report = batch.Window{
		Start: time.Date(2023, 12, 13, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 12, 14, 9, 0, 0, 0, time.UTC),
	}
	clock = func() time.Time { return report.End }
)

func ts(day, h, m int) time.Time {
	return time.Date(2023, 12, day, h, m, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func dueJob(id int64, name string) due.Job {
	return due.Job{
		ScheduleEntry: batch.ScheduleEntry{JobID: id, JobName: name, Day: batch.Wednesday, Time: batch.TimeOfDay{Hour: 14, Minute: 30}, Active: true},
		Occurrence:    1,
		Occurrences:   1,
	}
}

func classify(t *testing.T, src *fakeSource, j due.Job) []Row {
	t.Helper()
	rows, err := NewClassifier(src, nil, nil).WithClock(clock).Classify(context.Background(), j, report)
	require.NoError(t, err)
	return rows
}

func TestClassifyNotYetRun(t *testing.T) {
	src := newFakeSource()
	src.jobs[7] = &batch.Job{ID: 7, Name: "job_x", Description: "Job X"}

	rows := classify(t, src, dueJob(7, "job_x"))
	require.Len(t, rows, 1)
	assert.Equal(t, NotRun, rows[0].Status)
	assert.Equal(t, "Job X", rows[0].Description)
	assert.False(t, rows[0].HasTiming())
	assert.Empty(t, rows[0].Text)
}

func TestClassifyCompleted(t *testing.T) {
	tests := []struct {
		name    string
		success bool
		want    Status
		text    string
	}{
		{"success", true, Complete, TextComplete},
		{"failure", false, Failed, TextError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.jobs[7] = &batch.Job{ID: 7, Name: "job_x", Description: "Job X"}
			src.completed[7] = []batch.JobHistory{{ID: 1, JobID: 7, Start: ts(13, 15, 0), End: ptr(ts(13, 15, 42)), Success: tt.success}}

			rows := classify(t, src, dueJob(7, "job_x"))
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].Status)
			assert.Equal(t, tt.text, rows[0].Text)
			assert.Equal(t, 42*time.Minute, rows[0].Elapsed)
		})
	}
}

func TestClassifyOneRowPerCompletedRun(t *testing.T) {
	src := newFakeSource()
	src.jobs[7] = &batch.Job{ID: 7, Name: "job_x"}
	src.completed[7] = []batch.JobHistory{
		{ID: 1, JobID: 7, Start: ts(13, 15, 0), End: ptr(ts(13, 15, 10)), Success: true},
		{ID: 2, JobID: 7, Start: ts(13, 20, 0), End: ptr(ts(13, 20, 10)), Success: false},
	}

	rows := classify(t, src, dueJob(7, "job_x"))
	require.Len(t, rows, 2)
	assert.Equal(t, Complete, rows[0].Status)
	assert.Equal(t, Failed, rows[1].Status)
	assert.Equal(t, "job_x", rows[0].Description)
}

func TestClassifyExcludedJob(t *testing.T) {
	src := newFakeSource()
	src.jobs[3] = &batch.Job{ID: 3, Name: "statementspdf", Description: "Statements PDF"}
	src.completed[3] = []batch.JobHistory{{ID: 1, JobID: 3, Start: ts(13, 15, 0), End: ptr(ts(13, 16, 0)), Success: true}}

	rows := classify(t, src, dueJob(3, "statementspdf"))
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Placeholder)
	assert.Equal(t, PlaceholderText, rows[0].Text)
	assert.Equal(t, PlaceholderName, rows[0].Description)
}

func TestClassifyExcludedOpenRunIsShown(t *testing.T) {
	src := newFakeSource()
	src.jobs[3] = &batch.Job{ID: 3, Name: "GETUPDATESFORSYNC", Description: "Sync updates"}
	src.open[3] = []batch.JobHistory{{ID: 1, JobID: 3, Start: ts(13, 15, 0)}}

	rows := classify(t, src, dueJob(3, "GETUPDATESFORSYNC"))
	require.Len(t, rows, 1)
	assert.Equal(t, InProgress, rows[0].Status)
	assert.Equal(t, "Sync updates", rows[0].Description)
	assert.Equal(t, TextNoTask, rows[0].Text)
}

func TestClassifyInProgressWithRunningTask(t *testing.T) {
	src := newFakeSource()
	src.jobs[7] = &batch.Job{ID: 7, Name: "job_x", Description: "Job X"}
	src.open[7] = []batch.JobHistory{{ID: 11, JobID: 7, Start: ts(14, 8, 0)}}
	src.tasks[11] = []batch.TaskHistory{
		{ID: 1, HistoryID: 11, TaskID: 1, JobID: 7, Start: ts(14, 8, 0), End: ptr(ts(14, 8, 10))},
		{ID: 2, HistoryID: 11, TaskID: 2, JobID: 7, Start: ts(14, 8, 10)},
	}
	src.defs[[2]int64{7, 2}] = &batch.Task{JobID: 7, TaskID: 2, Name: "load"}

	rows := classify(t, src, dueJob(7, "job_x"))
	require.Len(t, rows, 1)
	assert.Equal(t, InProgress, rows[0].Status)
	assert.Equal(t, "load/2", rows[0].TaskLabel)
	assert.Equal(t, "Task[load/2]", rows[0].Text)
	assert.Nil(t, rows[0].End)
	assert.Equal(t, time.Hour, rows[0].Elapsed)
	assert.False(t, rows[0].Stale)
}

func TestClassifyInProgressLabels(t *testing.T) {
	tests := []struct {
		name  string
		tasks []batch.TaskHistory
		defs  map[[2]int64]*batch.Task
		want  string
	}{
		{"no tasks", nil, nil, LabelInProgress},
		{"unknown task", []batch.TaskHistory{{TaskID: 4}}, nil, LabelTaskNotFound},
		{
			"all finished picks highest id",
			[]batch.TaskHistory{{TaskID: 3, End: ptr(ts(14, 1, 0))}, {TaskID: 5, End: ptr(ts(14, 2, 0))}, {TaskID: 2, End: ptr(ts(14, 3, 0))}},
			map[[2]int64]*batch.Task{{7, 5}: {Name: "export"}},
			"export/5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.jobs[7] = &batch.Job{ID: 7, Name: "job_x"}
			src.open[7] = []batch.JobHistory{{ID: 11, JobID: 7, Start: ts(14, 8, 0)}}
			src.tasks[11] = tt.tasks
			if tt.defs != nil {
				src.defs = tt.defs
			}

			rows := classify(t, src, dueJob(7, "job_x"))
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].TaskLabel)
		})
	}
}

func TestClassifyStaleAndDuplicateOpenRuns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := newFakeSource()
	src.jobs[7] = &batch.Job{ID: 7, Name: "job_x"}
	src.open[7] = []batch.JobHistory{
		{ID: 10, JobID: 7, Start: ts(12, 22, 0)},
		{ID: 9, JobID: 7, Start: ts(11, 22, 0)},
	}

	rows, err := NewClassifier(src, nil, zap.New(core).Sugar()).WithClock(clock).Classify(context.Background(), dueJob(7, "job_x"), report)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, InProgress, rows[0].Status)
	assert.True(t, rows[0].Stale)
	assert.Equal(t, ts(12, 22, 0), rows[0].Start)

	assert.Equal(t, 1, logs.FilterMessage("Job has more than one open run, reporting the latest").Len())
	assert.Equal(t, 1, logs.FilterMessage("Open run started before the report window").Len())
}

func TestClassifyUsesStreamWindowForRepeatedJobs(t *testing.T) {
	src := newFakeSource()
	src.jobs[7] = &batch.Job{ID: 7, Name: "job_x"}
	narrow := batch.Window{Start: ts(13, 18, 0), End: ts(13, 21, 0)}
	inferrer := &fixedInferrer{result: stream.Result{Window: narrow, Stream: "nightly", Strategy: "observed_history"}}

	c := NewClassifier(src, inferrer, nil).WithClock(clock)

	single := dueJob(7, "job_x")
	_, err := c.Classify(context.Background(), single, report)
	require.NoError(t, err)
	assert.Zero(t, inferrer.calls)
	assert.Equal(t, report, src.lastWindow)

	repeated := dueJob(7, "job_x")
	repeated.Occurrences = 2
	rows, err := c.Classify(context.Background(), repeated, report)
	require.NoError(t, err)
	assert.Equal(t, 1, inferrer.calls)
	assert.Equal(t, narrow, src.lastWindow)
	assert.Equal(t, "nightly", rows[0].Stream)

	assert.Equal(t, 1, src.getJobCalls, "job definitions are cached per run")
}

func TestClassifyErrors(t *testing.T) {
	src := newFakeSource()
	_, err := NewClassifier(src, nil, nil).Classify(context.Background(), dueJob(99, "ghost"), report)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	src.jobs[7] = &batch.Job{ID: 7, Name: "job_x"}
	src.failOpen = errors.New("bad connection")
	_, err = NewClassifier(src, nil, nil).Classify(context.Background(), dueJob(7, "job_x"), report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open runs of job 7")
}

func TestClassificationIsTotal(t *testing.T) {
	for _, hasCompleted := range []bool{true, false} {
		for _, hasOpen := range []bool{true, false} {
			src := newFakeSource()
			src.jobs[7] = &batch.Job{ID: 7, Name: "job_x"}
			if hasCompleted {
				src.completed[7] = []batch.JobHistory{{ID: 1, JobID: 7, Start: ts(13, 15, 0), End: ptr(ts(13, 16, 0)), Success: true}}
			}
			if hasOpen {
				src.open[7] = []batch.JobHistory{{ID: 2, JobID: 7, Start: ts(14, 8, 0)}}
			}

			rows := classify(t, src, dueJob(7, "job_x"))
			require.Len(t, rows, 1)
			switch {
			case hasCompleted:
				assert.Equal(t, Complete, rows[0].Status)
			case hasOpen:
				assert.Equal(t, InProgress, rows[0].Status)
			default:
				assert.Equal(t, NotRun, rows[0].Status)
			}
		}
	}
}

func TestDecorate(t *testing.T) {
	tests := []struct {
		status Status
		payout bool
		want   string
	}{
		{Complete, true, "color:white;background:green"},
		{Failed, true, "color:white;background:red"},
		{Complete, false, "color:green"},
		{Failed, false, "color:red"},
		{InProgress, true, "color:red;background:yellow"},
		{InProgress, false, "color:red"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Decorate(tt.status, tt.payout).Style(), "%s payout=%v", tt.status, tt.payout)
	}
}

func TestUnavailableRow(t *testing.T) {
	e := batch.ScheduleEntry{JobID: 5, JobName: "united_payout_all_r"}
	r := UnavailableRow(e, nil, errors.New("boom"))
	assert.Equal(t, Unavailable, r.Status)
	assert.Equal(t, "united_payout_all_r", r.Description)

	r = UnavailableRow(e, &batch.Job{ID: 5, Name: "united_payout_all_r", Description: "Payout All R"}, errors.New("boom"))
	assert.Equal(t, "Payout All R", r.Description)
	assert.True(t, r.Payout)
}
