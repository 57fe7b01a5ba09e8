package pulse

import "time"

// Execution is one report run recorded in pulse_executions.
//
// The row is created as running before the report starts and updated once
// with the outcome, so a crash mid-run leaves a running row behind.
type Execution struct {
	ID      string `db:"id" json:"id"` // same as the report run id
	Trigger string `db:"trigger_kind" json:"trigger"`
	Status  string `db:"status" json:"status"`

	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	DurationMs  *int64     `db:"duration_ms" json:"duration_ms,omitempty"`

	Verdict      *string `db:"verdict" json:"verdict,omitempty"`
	Subject      *string `db:"subject" json:"subject,omitempty"`
	RowCount     *int    `db:"row_count" json:"row_count,omitempty"`
	Unavailable  *int    `db:"unavailable" json:"unavailable,omitempty"`
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`
}

// Execution status constants
const (
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
)

// What started a run
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
	TriggerManual   = "manual"
)
