package batch

import "time"

// Window is the time range a report, or one stream occurrence, looks at.
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether End does not precede Start.
func (w Window) Valid() bool {
	return !w.End.Before(w.Start)
}

// Contains reports whether t lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Covers reports whether a run lies entirely inside the window, the test
// used for "completed during the window".
func (w Window) Covers(run Span) bool {
	return run.End != nil && !run.Start.Before(w.Start) && !run.End.After(w.End)
}
