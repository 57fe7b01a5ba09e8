package calendar

import (
	"os"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"gopkg.in/yaml.v3"

	"github.com/teranos/batchwatch/errors"
)

// DateListSeparator separates dates in configured lists ("2023-12-25#2024-01-01").
const DateListSeparator = "#"

// DateSet is a set of calendar dates.
type DateSet map[civil.Date]struct{}

// NewDateSet builds a set from dates.
func NewDateSet(dates ...civil.Date) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

// Contains reports whether d is in the set. A nil set contains nothing.
func (s DateSet) Contains(d civil.Date) bool {
	_, ok := s[d]
	return ok
}

// Union returns a new set with the dates of both sets.
func (s DateSet) Union(o DateSet) DateSet {
	out := make(DateSet, len(s)+len(o))
	for d := range s {
		out[d] = struct{}{}
	}
	for d := range o {
		out[d] = struct{}{}
	}
	return out
}

// Sorted returns the dates in ascending order.
func (s DateSet) Sorted() []civil.Date {
	out := make([]civil.Date, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// ParseDateList parses a "#"-separated list of yyyy-MM-dd dates.
//
// Malformed entries are skipped: the returned set always holds every valid
// date, and the error (if any) names the entries that were dropped so the
// caller can log them.
func ParseDateList(list string) (DateSet, error) {
	return parseDates(strings.Split(list, DateListSeparator))
}

func parseDates(values []string) (DateSet, error) {
	set := make(DateSet)
	var bad []string
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		d, err := civil.ParseDate(v)
		if err != nil {
			bad = append(bad, v)
			continue
		}
		set[d] = struct{}{}
	}
	if len(bad) > 0 {
		return set, errors.WithHint(
			errors.Newf("skipped malformed dates: %s", strings.Join(bad, ", ")),
			"dates must be yyyy-MM-dd")
	}
	return set, nil
}

// Calendar is the per-run set of configured dates.
type Calendar struct {
	Holidays DateSet
	PayAllF  DateSet
}

// IsHoliday reports whether d is a configured holiday.
func (c Calendar) IsHoliday(d civil.Date) bool {
	return c.Holidays.Contains(d)
}

// IsPayAllF reports whether d is a pay-all-F date.
func (c Calendar) IsPayAllF(d civil.Date) bool {
	return c.PayAllF.Contains(d)
}

// Merge returns a calendar holding the dates of both.
func (c Calendar) Merge(o Calendar) Calendar {
	return Calendar{
		Holidays: c.Holidays.Union(o.Holidays),
		PayAllF:  c.PayAllF.Union(o.PayAllF),
	}
}

// calendarFile is the YAML layout of a calendar file:
//
//	holidays:
//	  - "2023-12-25"
//	pay_all_f_dates:
//	  - "2023-12-01"
type calendarFile struct {
	Holidays     []string `yaml:"holidays"`
	PayAllFDates []string `yaml:"pay_all_f_dates"`
}

// LoadFile reads a YAML calendar file. As with ParseDateList, malformed
// dates are skipped and reported through the error alongside a usable
// calendar; an unreadable or unparseable file returns an empty calendar.
func LoadFile(path string) (Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Calendar{}, errors.Wrapf(err, "failed to read calendar file %s", path)
	}

	var f calendarFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Calendar{}, errors.Wrapf(err, "failed to parse calendar file %s", path)
	}

	holidays, herr := parseDates(f.Holidays)
	payAllF, perr := parseDates(f.PayAllFDates)
	cal := Calendar{Holidays: holidays, PayAllF: payAllF}

	switch {
	case herr != nil:
		return cal, errors.Wrapf(herr, "holidays in %s", path)
	case perr != nil:
		return cal, errors.Wrapf(perr, "pay_all_f_dates in %s", path)
	}
	return cal, nil
}
