// Package batch holds the records a status report is built from: jobs, their
// weekly schedule entries, and the run and task history the batch system writes.
//
// Everything here is a read-mostly snapshot loaded fresh for each report run.
package batch

import (
	"strings"
	"time"
)

// Job is a batch job definition.
type Job struct {
	ID             int64
	Name           string
	Description    string
	WaitMinutes    int
	WarnMinutes    int
	MaxWaitMinutes int
	Active         bool
	LastRun        *time.Time // Written by the batch system, not by reports
}

// IsPayout reports whether the job's description marks it as a payout job.
// Payout jobs are highlighted differently; their status logic is the same.
func (j *Job) IsPayout() bool {
	return j != nil && strings.Contains(strings.ToLower(j.Description), "payout")
}

// DisplayName is the description when present, otherwise the job name.
func (j *Job) DisplayName() string {
	if j.Description != "" {
		return j.Description
	}
	return j.Name
}

// ScheduleEntry is one weekly slot at which a job is expected to run.
// A job may have several entries on the same day, and entries of different
// jobs may share a Stream name.
type ScheduleEntry struct {
	JobID    int64
	JobName  string
	Day      Weekday
	Time     TimeOfDay
	Stream   string // Empty when the entry is not part of a job stream
	RunCycle string
	Active   bool
}

// JobHistory is one execution attempt of a job.
type JobHistory struct {
	ID        int64
	JobID     int64
	Start     time.Time
	End       *time.Time // nil while the run is open
	Success   bool
	Message   string
	RunListNo int
	Filename  string
}

// Open reports whether the run has not finished yet.
func (h *JobHistory) Open() bool {
	return h.End == nil
}

// TaskHistory is one step of a job execution.
type TaskHistory struct {
	ID        int64
	HistoryID int64
	TaskID    int64
	JobID     int64
	Start     time.Time
	End       *time.Time // nil while the step is running
	Message   string
}

// Task is a step definition of a job.
type Task struct {
	JobID           int64
	TaskID          int64
	Name            string
	ExpectedMinutes int
}

// Span is the start and (possibly missing) end of a run.
type Span struct {
	Start time.Time
	End   *time.Time
}
