package pulse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/internal/util"
	qtest "github.com/teranos/batchwatch/internal/testing"
)

func newExecution(id string, started time.Time) *Execution {
	return &Execution{
		ID:        id,
		Trigger:   TriggerSchedule,
		Status:    ExecutionStatusRunning,
		StartedAt: started.UTC(),
	}
}

func TestCreateExecution(t *testing.T) {
	store := NewExecutionStore(qtest.CreateTestDB(t))
	ctx := context.Background()

	exec := newExecution("run-1", time.Now())
	require.NoError(t, store.Create(ctx, exec))

	retrieved, err := store.Get(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, retrieved.ID)
	assert.Equal(t, TriggerSchedule, retrieved.Trigger)
	assert.Equal(t, ExecutionStatusRunning, retrieved.Status)
	assert.True(t, exec.StartedAt.Equal(retrieved.StartedAt))
	assert.Nil(t, retrieved.CompletedAt)
	assert.Nil(t, retrieved.DurationMs)
	assert.Nil(t, retrieved.Verdict)
}

func TestUpdateExecution(t *testing.T) {
	store := NewExecutionStore(qtest.CreateTestDB(t))
	ctx := context.Background()

	exec := newExecution("run-1", time.Now())
	require.NoError(t, store.Create(ctx, exec))

	completed := time.Now().UTC()
	exec.Status = ExecutionStatusCompleted
	exec.CompletedAt = &completed
	exec.DurationMs = util.Ptr(int64(1234))
	exec.Verdict = util.Ptr("Success")
	exec.Subject = util.Ptr("ICM Daily Jobs Status Report - 12/14/2023 - Success")
	exec.RowCount = util.Ptr(12)
	exec.Unavailable = util.Ptr(1)
	require.NoError(t, store.Update(ctx, exec))

	retrieved, err := store.Get(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, ExecutionStatusCompleted, retrieved.Status)
	require.NotNil(t, retrieved.CompletedAt)
	assert.True(t, completed.Equal(*retrieved.CompletedAt))
	require.NotNil(t, retrieved.DurationMs)
	assert.Equal(t, int64(1234), *retrieved.DurationMs)
	require.NotNil(t, retrieved.Verdict)
	assert.Equal(t, "Success", *retrieved.Verdict)
	require.NotNil(t, retrieved.RowCount)
	assert.Equal(t, 12, *retrieved.RowCount)
	require.NotNil(t, retrieved.Unavailable)
	assert.Equal(t, 1, *retrieved.Unavailable)
	assert.Nil(t, retrieved.ErrorMessage)
}

func TestUpdateExecution_NotFound(t *testing.T) {
	store := NewExecutionStore(qtest.CreateTestDB(t))

	err := store.Update(context.Background(), newExecution("missing", time.Now()))
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	_, err = store.Get(context.Background(), "missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestListExecutions(t *testing.T) {
	store := NewExecutionStore(qtest.CreateTestDB(t))
	ctx := context.Background()

	base := time.Date(2023, time.December, 14, 7, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		exec := newExecution(id, base.Add(time.Duration(i)*24*time.Hour))
		require.NoError(t, store.Create(ctx, exec))
		if id == "b" || id == "d" {
			exec.Status = ExecutionStatusFailed
			exec.ErrorMessage = util.Ptr("relay down")
			require.NoError(t, store.Update(ctx, exec))
		}
	}

	t.Run("newest first with pagination", func(t *testing.T) {
		page, total, err := store.List(ctx, 2, 0, "")
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, page, 2)
		assert.Equal(t, "e", page[0].ID)
		assert.Equal(t, "d", page[1].ID)

		page, _, err = store.List(ctx, 2, 4, "")
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "a", page[0].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		failed, total, err := store.List(ctx, 10, 0, ExecutionStatusFailed)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, failed, 2)
		assert.Equal(t, "d", failed[0].ID)
		require.NotNil(t, failed[0].ErrorMessage)
		assert.Equal(t, "relay down", *failed[0].ErrorMessage)
	})
}

func TestCleanupOldExecutions(t *testing.T) {
	store := NewExecutionStore(qtest.CreateTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newExecution("old", time.Now().AddDate(0, 0, -100))))
	require.NoError(t, store.Create(ctx, newExecution("recent", time.Now().AddDate(0, 0, -10))))

	deleted, err := store.Cleanup(ctx, DefaultRetentionDays)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.Get(ctx, "old")
	assert.True(t, errors.IsNotFoundError(err))
	_, err = store.Get(ctx, "recent")
	assert.NoError(t, err)
}
