package pulse

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teranos/batchwatch/errors"
)

// DefaultRetentionDays is how long execution history is kept by Cleanup.
const DefaultRetentionDays = 90

const executionColumns = `id, trigger_kind, status, started_at, completed_at, duration_ms,
	verdict, subject, row_count, unavailable, error_message`

// ExecutionStore handles persistence of report run history
type ExecutionStore struct {
	db *sqlx.DB
}

// NewExecutionStore creates a new execution store
func NewExecutionStore(db *sqlx.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

// Create inserts a new execution record
func (s *ExecutionStore) Create(ctx context.Context, exec *Execution) error {
	query := s.db.Rebind(`
		INSERT INTO pulse_executions (` + executionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		exec.ID,
		exec.Trigger,
		exec.Status,
		exec.StartedAt,
		exec.CompletedAt,
		exec.DurationMs,
		exec.Verdict,
		exec.Subject,
		exec.RowCount,
		exec.Unavailable,
		exec.ErrorMessage,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create execution")
	}
	return nil
}

// Update records the outcome of an execution
func (s *ExecutionStore) Update(ctx context.Context, exec *Execution) error {
	query := s.db.Rebind(`
		UPDATE pulse_executions
		SET status = ?,
		    completed_at = ?,
		    duration_ms = ?,
		    verdict = ?,
		    subject = ?,
		    row_count = ?,
		    unavailable = ?,
		    error_message = ?
		WHERE id = ?
	`)
	result, err := s.db.ExecContext(ctx, query,
		exec.Status,
		exec.CompletedAt,
		exec.DurationMs,
		exec.Verdict,
		exec.Subject,
		exec.RowCount,
		exec.Unavailable,
		exec.ErrorMessage,
		exec.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update execution")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError("execution not found: %s", exec.ID)
	}
	return nil
}

// Get retrieves an execution by ID
func (s *ExecutionStore) Get(ctx context.Context, id string) (*Execution, error) {
	var exec Execution
	err := s.db.GetContext(ctx, &exec,
		s.db.Rebind(`SELECT `+executionColumns+` FROM pulse_executions WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("execution not found: %s", id)
		}
		return nil, errors.Wrap(err, "failed to get execution")
	}
	return &exec, nil
}

// List returns executions newest first with pagination and an optional
// status filter, plus the total number of matching rows
func (s *ExecutionStore) List(ctx context.Context, limit, offset int, statusFilter string) ([]*Execution, int, error) {
	baseQuery := ` FROM pulse_executions`
	var args []interface{}
	if statusFilter != "" {
		baseQuery += ` WHERE status = ?`
		args = append(args, statusFilter)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(*)`+baseQuery), args...); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count executions")
	}

	query := `SELECT ` + executionColumns + baseQuery + ` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var executions []*Execution
	if err := s.db.SelectContext(ctx, &executions, s.db.Rebind(query), args...); err != nil {
		return nil, 0, errors.Wrap(err, "failed to list executions")
	}
	return executions, total, nil
}

// Cleanup deletes execution records started more than retentionDays ago
// and returns how many were removed
func (s *ExecutionStore) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	result, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM pulse_executions WHERE started_at < ?`), cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old executions")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(deleted), nil
}
