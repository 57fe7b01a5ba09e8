package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/teranos/batchwatch/errors"
)

// Weekday is a schedule day. The numeric value is the report ordering
// priority: Sunday sorts first, Saturday last.
type Weekday int

const (
	Sunday Weekday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [...]string{"", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// WeekdayOf returns the schedule day t falls on, in t's location.
func WeekdayOf(t time.Time) Weekday {
	return FromTimeWeekday(t.Weekday())
}

// FromTimeWeekday converts a time.Weekday.
func FromTimeWeekday(d time.Weekday) Weekday {
	return Weekday(d) + 1
}

// TimeWeekday converts back to a time.Weekday.
func (d Weekday) TimeWeekday() time.Weekday {
	return time.Weekday(d - 1)
}

// Priority is the primary ordering key of the due-job list (Sunday=1 .. Saturday=7).
func (d Weekday) Priority() int {
	return int(d)
}

// Valid reports whether d is one of Sunday..Saturday.
func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// String returns the English day name, which is also the stored form.
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// ParseWeekday accepts full or three-letter English day names in any case.
func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := Sunday; d <= Saturday; d++ {
		full := strings.ToLower(weekdayNames[d])
		if name == full || (len(name) == 3 && strings.HasPrefix(full, name)) {
			return d, nil
		}
	}
	return 0, errors.Newf("unknown weekday %q", s)
}
