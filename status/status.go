// Package status classifies each due job of a report into the row the
// report shows for it: completed (with or without error), still running,
// not yet run, or unavailable when its data could not be read.
package status

import (
	"strings"
	"time"

	"github.com/teranos/batchwatch/batch"
)

// Status is the classification of one report row.
type Status int

const (
	NotRun Status = iota
	InProgress
	Complete
	Failed
	Unavailable
)

func (s Status) String() string {
	switch s {
	case NotRun:
		return "NotYetRun"
	case InProgress:
		return "InProgress"
	case Complete:
		return "Complete"
	case Failed:
		return "Error"
	case Unavailable:
		return "Unavailable"
	}
	return "Unknown"
}

// Status cell texts.
const (
	TextComplete    = "Complete"
	TextError       = "Error"
	TextNoTask      = "..."
	TextUnavailable = "Unavailable"

	LabelInProgress   = "In Progress"
	LabelTaskNotFound = "Not Found"

	PlaceholderName = "ICM Jobs"
	PlaceholderText = "No jobs run during report window"
)

// Decoration is the emphasis of a status cell.
type Decoration struct {
	Color      string
	Background string
}

// Style renders d as an inline CSS declaration list.
func (d Decoration) Style() string {
	var parts []string
	if d.Color != "" {
		parts = append(parts, "color:"+d.Color)
	}
	if d.Background != "" {
		parts = append(parts, "background:"+d.Background)
	}
	return strings.Join(parts, ";")
}

// Decorate picks the emphasis for a status. Payout jobs are highlighted
// with a background; others only get a text color.
func Decorate(s Status, payout bool) Decoration {
	switch {
	case s == Complete && payout:
		return Decoration{Color: "white", Background: "green"}
	case s == Failed && payout:
		return Decoration{Color: "white", Background: "red"}
	case s == Complete:
		return Decoration{Color: "green"}
	case s == InProgress && payout:
		return Decoration{Color: "red", Background: "yellow"}
	}
	return Decoration{Color: "red"}
}

// Row is one line of the report.
type Row struct {
	JobID       int64
	JobName     string
	Description string
	Payout      bool
	Status      Status

	Start   time.Time  // zero when the job has not run
	End     *time.Time // nil while running
	Elapsed time.Duration

	// Text is the status cell: Complete, Error, Task[<label>] or empty for
	// jobs that have not run.
	Text       string
	TaskLabel  string
	Decoration Decoration

	// Placeholder rows stand in for a job whose runs are all excluded.
	Placeholder bool

	// Stale marks a running row that started before the report window.
	Stale bool

	Window   batch.Window
	Stream   string
	Strategy string

	Err error
}

// HasTiming reports whether the row carries start, end and run time.
func (r Row) HasTiming() bool {
	return !r.Start.IsZero()
}

// Placeholder returns the row shown when every completed run of a job is
// excluded from the report.
func Placeholder(jobID int64) Row {
	return Row{
		JobID:       jobID,
		Description: PlaceholderName,
		Status:      Complete,
		Text:        PlaceholderText,
		Placeholder: true,
	}
}

// UnavailableRow is the best-effort row for a job whose classification
// failed. job may be nil when the job itself could not be loaded.
func UnavailableRow(e batch.ScheduleEntry, job *batch.Job, err error) Row {
	r := Row{
		JobID:       e.JobID,
		JobName:     e.JobName,
		Description: e.JobName,
		Status:      Unavailable,
		Text:        TextUnavailable,
		Decoration:  Decorate(Unavailable, false),
		Err:         err,
	}
	if job != nil {
		r.JobName = job.Name
		r.Description = job.DisplayName()
		r.Payout = job.IsPayout()
	}
	return r
}
