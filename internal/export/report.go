// Package export renders calendar events as Excel reports and iCalendar feeds.
package export

import (
	"fmt"
	"io"
	"slices"
	"time"

	"omnidesk/internal/model"
	"omnidesk/internal/timekey"
)

// Sheet names of the month report.
const (
	SheetEvents  = "Events"
	SheetSummary = "Summary"
)

var eventColumns = []string{"Date", "Time", "Duration (min)", "Status", "Title", "Client", "Phone", "Comment"}

// WriteMonthReport writes an xlsx workbook listing the events of monthKey in
// tz, ordered by start, plus per-status totals. slotMinutes is the duration
// of events that carry neither end nor duration.
func WriteMonthReport(out io.Writer, monthKey string, events []model.CalendarEvent, tz string, slotMinutes int) error {
	if _, err := time.Parse(timekey.MonthLayout, monthKey); err != nil {
		return fmt.Errorf("invalid month %q", monthKey)
	}

	rows := monthEvents(events, monthKey, tz)

	w := newSheetWriter()
	defer w.close()

	if err := w.addSheet(SheetEvents); err != nil {
		return err
	}
	if err := w.header(eventColumns...); err != nil {
		return err
	}
	for _, e := range rows {
		etz := e.TimezoneOr(tz)
		err := w.writeRow(
			timekey.DateKeyInTimezone(e.StartsAtUTC, etz),
			timekey.TimeKeyInTimezone(e.StartsAtUTC, etz),
			int(e.Duration(slotMinutes)/time.Minute),
			string(e.Status),
			e.Title,
			e.ClientName,
			e.ClientPhone,
			e.Comment,
		)
		if err != nil {
			return err
		}
	}
	if err := w.widths(12, 8, 14, 12, 30, 24, 18, 40); err != nil {
		return err
	}

	if err := w.addSheet(SheetSummary); err != nil {
		return err
	}
	if err := w.header("Status", "Events", "Minutes"); err != nil {
		return err
	}
	count, minutes := summarize(rows, slotMinutes)
	total, totalMinutes := 0, 0
	for _, st := range model.Statuses {
		if err := w.writeRow(string(st), count[st], minutes[st]); err != nil {
			return err
		}
		total += count[st]
		totalMinutes += minutes[st]
	}
	if err := w.writeRow("total", total, totalMinutes); err != nil {
		return err
	}
	if err := w.widths(14, 10, 10); err != nil {
		return err
	}

	return w.save(out)
}

// monthEvents keeps the events whose local start date is in monthKey.
func monthEvents(events []model.CalendarEvent, monthKey, tz string) []model.CalendarEvent {
	var out []model.CalendarEvent
	for _, e := range events {
		key := timekey.DateKeyInTimezone(e.StartsAtUTC, e.TimezoneOr(tz))
		if len(key) >= len(monthKey) && key[:len(monthKey)] == monthKey {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b model.CalendarEvent) int {
		return a.StartsAtUTC.Compare(b.StartsAtUTC)
	})
	return out
}

func summarize(events []model.CalendarEvent, slotMinutes int) (map[model.EventStatus]int, map[model.EventStatus]int) {
	count := make(map[model.EventStatus]int)
	minutes := make(map[model.EventStatus]int)
	for _, e := range events {
		count[e.Status]++
		minutes[e.Status] += int(e.Duration(slotMinutes) / time.Minute)
	}
	return count, minutes
}
