package slots

import (
	"omnidesk/internal/model"
	"omnidesk/internal/timekey"
)

// BusyRange is an occupied interval of one day, in minutes from local
// midnight of the display timezone.
type BusyRange struct {
	StartMinutes  int    `json:"startMinutes"`
	EndMinutes    int    `json:"endMinutes"`
	SourceEventID string `json:"sourceEventId"`
}

// Overlaps reports half-open overlap with [start, end).
func (b BusyRange) Overlaps(start, end int) bool {
	return b.StartMinutes < end && b.EndMinutes > start
}

// EventsOnDate keeps the events whose start falls on dateKey in the display
// timezone. Input order is preserved.
func EventsOnDate(events []model.CalendarEvent, dateKey, displayTimezone string) []model.CalendarEvent {
	var out []model.CalendarEvent
	for _, e := range events {
		if timekey.DateKeyInTimezone(e.StartsAtUTC, displayTimezone) == dateKey {
			out = append(out, e)
		}
	}
	return out
}

// BuildBusyRanges converts one day's events into busy ranges.
//
// Only scheduled and confirmed events block time. An event whose start cannot
// be placed on the timeline is dropped. The end comes from EndsAtUTC when it
// projects cleanly, otherwise from DurationMinutes, otherwise slotMinutes.
func BuildBusyRanges(dayEvents []model.CalendarEvent, slotMinutes int, displayTimezone string) []BusyRange {
	ranges := make([]BusyRange, 0, len(dayEvents))
	for i := range dayEvents {
		e := &dayEvents[i]
		if !e.Status.IsBusy() {
			continue
		}

		tz := e.TimezoneOr(displayTimezone)
		start, ok := timekey.ParseTimeToMinutes(timekey.TimeKeyInTimezone(e.StartsAtUTC, tz))
		if !ok {
			continue
		}

		end, ok := 0, false
		if !e.EndsAtUTC.IsZero() {
			end, ok = timekey.ParseTimeToMinutes(timekey.TimeKeyInTimezone(e.EndsAtUTC, tz))
		}
		if !ok {
			duration := slotMinutes
			if e.DurationMinutes != nil {
				duration = *e.DurationMinutes
			}
			end = start + duration
		}

		ranges = append(ranges, BusyRange{StartMinutes: start, EndMinutes: end, SourceEventID: e.ID})
	}
	return ranges
}
