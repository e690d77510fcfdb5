// Package timekey converts between absolute instants and the wall-clock
// date/time keys ("YYYY-MM-DD", "HH:MM") the calendar works with.
//
// None of the functions return errors: anything that cannot be parsed or
// projected yields an empty key or (0, false), and callers skip it.
package timekey

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // zones must resolve on hosts without a zoneinfo database

	"omnidesk/internal/model"
)

const (
	DateLayout  = "2006-01-02"
	TimeLayout  = "15:04"
	MonthLayout = "2006-01"

	MinutesPerDay = 24 * 60
)

var locations sync.Map // name -> *time.Location

// LoadLocation resolves an IANA timezone name, caching successful lookups.
// An empty name resolves to UTC.
func LoadLocation(name string) (*time.Location, bool) {
	if name == "" {
		return time.UTC, true
	}
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location), true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	locations.Store(name, loc)
	return loc, true
}

// ParseTimeToMinutes parses a strict "HH:MM" 24-hour clock value into minutes
// from midnight.
func ParseTimeToMinutes(text string) (int, bool) {
	if len(text) != 5 || text[2] != ':' {
		return 0, false
	}
	h, ok := twoDigits(text[0], text[1])
	if !ok || h > 23 {
		return 0, false
	}
	m, ok := twoDigits(text[3], text[4])
	if !ok || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// FormatMinutesToTime renders minutes from midnight as zero-padded "HH:MM".
// Input is expected in [0, 1440).
func FormatMinutesToTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// DateKeyInTimezone projects instant into timezone and returns its local
// calendar date, or "" when the instant or timezone is unusable.
func DateKeyInTimezone(instant time.Time, timezone string) string {
	local, ok := project(instant, timezone)
	if !ok {
		return ""
	}
	return local.Format(DateLayout)
}

// TimeKeyInTimezone projects instant into timezone and returns its local
// wall-clock time, or "" when the instant or timezone is unusable.
func TimeKeyInTimezone(instant time.Time, timezone string) string {
	local, ok := project(instant, timezone)
	if !ok {
		return ""
	}
	return local.Format(TimeLayout)
}

func project(instant time.Time, timezone string) (time.Time, bool) {
	if instant.IsZero() {
		return time.Time{}, false
	}
	loc, ok := LoadLocation(timezone)
	if !ok {
		return time.Time{}, false
	}
	return instant.In(loc), true
}

// ParseWeekday returns the weekday of a "YYYY-MM-DD" date key, evaluated at
// local noon in timezone. ok is false when the key cannot be parsed.
func ParseWeekday(dateKey, timezone string) (model.Weekday, bool) {
	loc, ok := LoadLocation(timezone)
	if !ok {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, dateKey, loc)
	if err != nil {
		return model.Monday, false
	}
	noon := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc)
	return model.WeekdayFromTime(noon.Weekday()), true
}

// WeekdayOf is ParseWeekday with the historical fallback: an unparseable
// date key is treated as monday.
func WeekdayOf(dateKey, timezone string) model.Weekday {
	wd, _ := ParseWeekday(dateKey, timezone)
	return wd
}

// ParseInstant parses an RFC 3339 timestamp. The zero time is returned for
// anything else, which the projection helpers treat as invalid.
func ParseInstant(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseDateKey parses a "YYYY-MM-DD" key as a date in loc.
func ParseDateKey(dateKey string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, dateKey, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
