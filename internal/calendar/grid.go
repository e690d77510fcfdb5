// Package calendar builds the month view: the Monday-first 6x7 grid of days,
// event-count badges and month navigation helpers.
package calendar

import (
	"fmt"
	"time"

	"omnidesk/internal/model"
	"omnidesk/internal/timekey"
)

// GridCells is the number of cells of a month view (6 weeks of 7 days).
const GridCells = 42

// GridCell is one day of the month view.
type GridCell struct {
	DateKey        string `json:"dateKey"`
	DayNumber      int    `json:"dayNumber"`
	IsCurrentMonth bool   `json:"isCurrentMonth"`
}

// ParseMonthKey parses a strict "YYYY-MM" key.
func ParseMonthKey(monthKey string) (year int, month time.Month, ok bool) {
	t, err := time.Parse(timekey.MonthLayout, monthKey)
	if err != nil {
		return 0, 0, false
	}
	return t.Year(), t.Month(), true
}

// BuildCalendarGrid returns the 42 cells covering monthKey, padded with the
// tail of the previous month and the head of the next one. An invalid key
// yields an empty grid.
func BuildCalendarGrid(monthKey string) []GridCell {
	year, month, ok := ParseMonthKey(monthKey)
	if !ok {
		return []GridCell{}
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	startOffset := (int(first.Weekday()) + 6) % 7
	days := daysIn(month, year)

	prev := first.AddDate(0, -1, 0)
	prevDays := daysIn(prev.Month(), prev.Year())
	next := first.AddDate(0, 1, 0)

	cells := make([]GridCell, 0, GridCells)
	for i := 0; i < GridCells; i++ {
		dayOffset := i - startOffset + 1
		switch {
		case dayOffset < 1:
			d := prevDays + dayOffset
			cells = append(cells, GridCell{DateKey: dateKey(prev.Year(), prev.Month(), d), DayNumber: d})
		case dayOffset > days:
			d := dayOffset - days
			cells = append(cells, GridCell{DateKey: dateKey(next.Year(), next.Month(), d), DayNumber: d})
		default:
			cells = append(cells, GridCell{DateKey: dateKey(year, month, dayOffset), DayNumber: dayOffset, IsCurrentMonth: true})
		}
	}
	return cells
}

// EventCounts counts events per local date in the display timezone. Events
// that cannot be projected are ignored.
func EventCounts(events []model.CalendarEvent, displayTimezone string) map[string]int {
	counts := make(map[string]int)
	for i := range events {
		key := timekey.DateKeyInTimezone(events[i].StartsAtUTC, displayTimezone)
		if key == "" {
			continue
		}
		counts[key]++
	}
	return counts
}

// ShiftMonth moves monthKey by delta months ("2026-01", -1 -> "2025-12").
func ShiftMonth(monthKey string, delta int) (string, bool) {
	year, month, ok := ParseMonthKey(monthKey)
	if !ok {
		return "", false
	}
	return time.Date(year, month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC).Format(timekey.MonthLayout), true
}

// MonthBounds returns the absolute [from, to) interval of monthKey in the
// given timezone.
func MonthBounds(monthKey, timezone string) (from, to time.Time, ok bool) {
	year, month, ok := ParseMonthKey(monthKey)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	loc, ok := timekey.LoadLocation(timezone)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	from = time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0), true
}

// MonthOf returns the "YYYY-MM" key of a "YYYY-MM-DD" date key.
func MonthOf(dateKey string) (string, bool) {
	t, err := time.Parse(timekey.DateLayout, dateKey)
	if err != nil {
		return "", false
	}
	return t.Format(timekey.MonthLayout), true
}

func dateKey(year int, month time.Month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if (year%4 == 0 && year%100 != 0) || year%400 == 0 {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}
