package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/errors"
)

type fakeSource struct {
	stream      string
	runs        []batch.Span
	earlier     int
	first, last batch.TimeOfDay
	hasBounds   bool
	err         error

	siblingCalls int
}

func (f *fakeSource) JobStream(context.Context, batch.Weekday, int64, batch.TimeOfDay) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	return f.stream, f.stream != "", nil
}

func (f *fakeSource) StreamSiblingRuns(context.Context, string, batch.Weekday, int64, time.Time, time.Time) ([]batch.Span, error) {
	f.siblingCalls++
	return f.runs, nil
}

func (f *fakeSource) CountEarlierOtherStreamRuns(context.Context, batch.Weekday, string, batch.TimeOfDay, time.Time) (int, error) {
	return f.earlier, nil
}

func (f *fakeSource) StreamScheduleBounds(context.Context, string) (batch.TimeOfDay, batch.TimeOfDay, bool, error) {
	return f.first, f.last, f.hasBounds, nil
}

var report = batch.Window{
	Start: time.Date(2023, 12, 13, 17, 0, 0, 0, time.UTC),
	End:   time.Date(2023, 12, 14, 9, 0, 0, 0, time.UTC),
}

func at(h, m int) *time.Time {
	t := time.Date(2023, 12, 13, h, m, 0, 0, time.UTC)
	if h < 12 {
		t = t.AddDate(0, 0, 1)
	}
	return &t
}

func infer(t *testing.T, src *fakeSource) Result {
	t.Helper()
	res, err := NewInferencer(src, nil).Infer(context.Background(), 42, batch.Wednesday, batch.TimeOfDay{Hour: 22}, report)
	require.NoError(t, err)
	require.True(t, res.Window.Valid(), "window end precedes start: %+v", res.Window)
	return res
}

func TestInferWithoutStream(t *testing.T) {
	src := &fakeSource{}
	res := infer(t, src)

	assert.Equal(t, report, res.Window)
	assert.Equal(t, StrategyReport, res.Strategy)
	assert.Empty(t, res.Stream)
	assert.Zero(t, src.siblingCalls)
}

func TestInferObservedHistory(t *testing.T) {
	src := &fakeSource{
		stream: "nightly",
		runs: []batch.Span{
			{Start: *at(18, 0), End: at(18, 40)},
			{Start: *at(19, 5), End: at(20, 15)},
			{Start: *at(20, 30), End: at(21, 0)},
		},
		earlier: 2,
	}
	res := infer(t, src)

	assert.Equal(t, "observed_history", res.Strategy)
	assert.Equal(t, "nightly", res.Stream)
	assert.Equal(t, *at(18, 0), res.Window.Start)
	assert.Equal(t, *at(21, 0), res.Window.End)
}

func TestInferRunningSiblingExtendsEnd(t *testing.T) {
	src := &fakeSource{
		stream: "nightly",
		runs: []batch.Span{
			{Start: *at(18, 0), End: at(18, 40)},
			{Start: *at(23, 10)},
		},
	}
	res := infer(t, src)

	assert.Equal(t, "observed_history", res.Strategy)
	assert.Equal(t, *at(18, 0), res.Window.Start)
	assert.Equal(t, *at(23, 10), res.Window.End)
}

func TestInferFallsBackToSchedule(t *testing.T) {
	src := &fakeSource{
		stream:    "nightly",
		first:     batch.TimeOfDay{Hour: 21, Minute: 30},
		last:      batch.TimeOfDay{Hour: 4, Minute: 15},
		hasBounds: true,
	}
	res := infer(t, src)

	assert.Equal(t, "schedule_derived", res.Strategy)
	assert.Equal(t, time.Date(2023, 12, 13, 21, 30, 0, 0, time.UTC), res.Window.Start)
	assert.Equal(t, time.Date(2023, 12, 14, 4, 15, 0, 0, time.UTC), res.Window.End)
}

func TestInferScheduleWindowIsOrdered(t *testing.T) {
	// both times fall on the end date but the stored first/last disagree
	src := &fakeSource{
		stream:    "morning",
		first:     batch.TimeOfDay{Hour: 8},
		last:      batch.TimeOfDay{Hour: 2},
		hasBounds: true,
	}
	res := infer(t, src)

	assert.Equal(t, time.Date(2023, 12, 14, 2, 0, 0, 0, time.UTC), res.Window.Start)
	assert.Equal(t, time.Date(2023, 12, 14, 8, 0, 0, 0, time.UTC), res.Window.End)
}

func TestInferAllRejected(t *testing.T) {
	src := &fakeSource{stream: "orphan"}
	res := infer(t, src)

	assert.Equal(t, report, res.Window)
	assert.Equal(t, StrategyReport, res.Strategy)
	assert.Equal(t, "orphan", res.Stream)
}

func TestInferSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection reset")}
	_, err := NewInferencer(src, nil).Infer(context.Background(), 42, batch.Wednesday, batch.TimeOfDay{Hour: 22}, report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job stream for job 42")
}

func TestBoundsDefaults(t *testing.T) {
	missing := report.End.AddDate(-1, 0, 0)
	minStart, maxStart, maxEnd := bounds(nil, missing)
	assert.Equal(t, missing, minStart)
	assert.Equal(t, missing, maxStart)
	assert.Equal(t, missing, maxEnd)

	minStart, maxStart, maxEnd = bounds([]batch.Span{{Start: *at(19, 0)}}, missing)
	assert.Equal(t, *at(19, 0), minStart)
	assert.Equal(t, *at(19, 0), maxStart)
	assert.Equal(t, missing, maxEnd)
}
