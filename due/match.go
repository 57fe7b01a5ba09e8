// Package due decides which scheduled jobs a report should cover.
//
// A schedule entry is due when it falls in the evening part of the report's
// start day or the early-morning part of its end day:
//
//	day == weekday(start) && time >= time(start)
//	day == weekday(end)   && time <= 11:00
//
// Due entries are then ordered by weekday (Sunday first), schedule time and
// job id, and passed through the calendar exception rules.
package due

import (
	"sort"

	"github.com/teranos/batchwatch/batch"
)

// Matches reports whether e is due within w. Inactive entries never match.
func Matches(e batch.ScheduleEntry, w batch.Window) bool {
	if !e.Active {
		return false
	}
	if e.Day == batch.WeekdayOf(w.Start) && !e.Time.Before(batch.TimeOfDayOf(w.Start)) {
		return true
	}
	return e.Day == batch.WeekdayOf(w.End) && !batch.MorningCutoff.Before(e.Time)
}

// Less orders entries by weekday priority, then schedule time, then job id.
func Less(a, b batch.ScheduleEntry) bool {
	if a.Day != b.Day {
		return a.Day.Priority() < b.Day.Priority()
	}
	if c := a.Time.Compare(b.Time); c != 0 {
		return c < 0
	}
	return a.JobID < b.JobID
}

// Sort orders entries in place. Entries that compare equal keep their
// relative order.
func Sort(entries []batch.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
}

type slotKey struct {
	day  batch.Weekday
	name string
	time batch.TimeOfDay
}

// dedupe keeps the first entry for each (day, job name, time) slot.
func dedupe(entries []batch.ScheduleEntry) []batch.ScheduleEntry {
	seen := make(map[slotKey]bool, len(entries))
	out := make([]batch.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		k := slotKey{e.Day, e.JobName, e.Time}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}
