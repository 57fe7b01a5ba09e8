// Package calendar evaluates the date rules that decide whether certain batch
// jobs are expected on a given day: holidays, pay-all-F dates and the
// Nth-weekday-of-month run days.
//
// All functions are pure and take "today" explicitly, so evaluating a rule
// twice for the same day always yields the same date.
package calendar

import (
	"time"

	"cloud.google.com/go/civil"
)

// Today returns the calendar date of now in now's location.
func Today(now time.Time) civil.Date {
	return civil.DateOf(now)
}

// Weekday returns the day of the week of d.
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// NthWeekdayOfMonth returns the nth (1-based) given weekday of a month.
// n beyond the month's last occurrence rolls into the next month, the same
// way date arithmetic on the first occurrence would.
func NthWeekdayOfMonth(year int, month time.Month, wd time.Weekday, n int) civil.Date {
	first := civil.Date{Year: year, Month: month, Day: 1}
	offset := (int(wd) - int(Weekday(first)) + 7) % 7
	return first.AddDays(offset + 7*(n-1))
}

// NextOrSame returns d if it falls on wd, otherwise the next wd after d.
func NextOrSame(d civil.Date, wd time.Weekday) civil.Date {
	return d.AddDays((int(wd) - int(Weekday(d)) + 7) % 7)
}

// nthWeekdayFrom locates the nth wd of the month containing the next wd on or
// after today. Near a month end this is the following month; for any day on
// which the rules below can match, it is today's month.
func nthWeekdayFrom(today civil.Date, wd time.Weekday, n int) civil.Date {
	anchor := NextOrSame(today, wd)
	return NthWeekdayOfMonth(anchor.Year, anchor.Month, wd, n)
}

// MondayAfterThirdSunday is the IPS transactions run day.
func MondayAfterThirdSunday(today civil.Date) civil.Date {
	return nthWeekdayFrom(today, time.Sunday, 3).AddDays(1)
}

// ThursdayBeforeThirdSaturday is the ACRA debt-loader run day.
func ThursdayBeforeThirdSaturday(today civil.Date) civil.Date {
	return nthWeekdayFrom(today, time.Saturday, 3).AddDays(-2)
}

// WednesdayAfterFirstSaturday is the CMS comp-report processing run day.
func WednesdayAfterFirstSaturday(today civil.Date) civil.Date {
	return nthWeekdayFrom(today, time.Saturday, 1).AddDays(4)
}

// IsRollupDay reports whether today is an IPS or ACRA run day, on which the
// batch verdict is gated on a different job.
func IsRollupDay(today civil.Date) bool {
	return today == MondayAfterThirdSunday(today) || today == ThursdayBeforeThirdSaturday(today)
}
