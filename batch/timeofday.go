package batch

import (
	"fmt"
	"time"

	"github.com/teranos/batchwatch/errors"
)

// TimeOfDay is a wall-clock minute of the day. Schedule times are stored as
// HHMM integers (1430 = 2:30pm) and converted at the storage boundary.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var (
	// EveningStart splits a stream's schedule times: times at or after it
	// belong to the report's start day, earlier times to its end day.
	EveningStart = TimeOfDay{Hour: 17}

	// MorningCutoff is the latest next-morning schedule time a report includes,
	// and the bound below which the rollup gate job is chosen.
	MorningCutoff = TimeOfDay{Hour: 11}
)

// NewTimeOfDay validates hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, errors.Newf("time of day out of range: %02d:%02d", hour, minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// TimeOfDayOf returns the hour and minute of t, dropping seconds.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// FromHHMM decodes the stored integer form (930 = 09:30, 2300 = 23:00).
func FromHHMM(v int) (TimeOfDay, error) {
	if v < 0 {
		return TimeOfDay{}, errors.Newf("negative schedule time %d", v)
	}
	return NewTimeOfDay(v/100, v%100)
}

// HHMM encodes t in the stored integer form.
func (t TimeOfDay) HHMM() int {
	return t.Hour*100 + t.Minute
}

// Compare returns -1, 0 or +1 as t is before, equal to or after o.
func (t TimeOfDay) Compare(o TimeOfDay) int {
	a, b := t.minutes(), o.minutes()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Before reports whether t is strictly earlier than o.
func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Compare(o) < 0
}

// IsEvening reports whether t is at or after EveningStart.
func (t TimeOfDay) IsEvening() bool {
	return t.Compare(EveningStart) >= 0
}

// On returns the instant at t on day's calendar date, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}
