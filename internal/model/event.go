package model

import "time"

// EventStatus is the lifecycle state of a calendar event.
type EventStatus string

const (
	StatusScheduled EventStatus = "scheduled"
	StatusConfirmed EventStatus = "confirmed"
	StatusCompleted EventStatus = "completed"
	StatusCanceled  EventStatus = "canceled"
	StatusNoShow    EventStatus = "no_show"
)

// Statuses lists every known status.
var Statuses = []EventStatus{StatusScheduled, StatusConfirmed, StatusCompleted, StatusCanceled, StatusNoShow}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsBusy reports whether an event in this status occupies its time.
func (s EventStatus) IsBusy() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// CalendarEvent is a single appointment.
//
// EndsAtUTC is optional (zero value when absent); DurationMinutes is optional
// (nil when absent). Timezone may be empty, in which case the calendar's
// display timezone applies.
type CalendarEvent struct {
	ID              string      `json:"id"`
	Title           string      `json:"title,omitempty"`
	ClientName      string      `json:"clientName,omitempty"`
	ClientPhone     string      `json:"clientPhone,omitempty"`
	StartsAtUTC     time.Time   `json:"startsAt"`
	EndsAtUTC       time.Time   `json:"endsAt,omitzero"`
	DurationMinutes *int        `json:"durationMinutes,omitempty"`
	Timezone        string      `json:"timezone,omitempty"`
	Status          EventStatus `json:"status"`
	Comment         string      `json:"comment,omitempty"`
	CreatedAt       time.Time   `json:"createdAt,omitzero"`
	UpdatedAt       time.Time   `json:"updatedAt,omitzero"`
}

// TimezoneOr returns the event's timezone, or fallback when it is empty.
func (e *CalendarEvent) TimezoneOr(fallback string) string {
	if e.Timezone == "" {
		return fallback
	}
	return e.Timezone
}

// End returns the absolute end of the event. Without EndsAtUTC the duration,
// or defaultMinutes when that is absent too, is added to the start.
func (e *CalendarEvent) End(defaultMinutes int) time.Time {
	if !e.EndsAtUTC.IsZero() {
		return e.EndsAtUTC
	}
	minutes := defaultMinutes
	if e.DurationMinutes != nil {
		minutes = *e.DurationMinutes
	}
	return e.StartsAtUTC.Add(time.Duration(minutes) * time.Minute)
}

// Duration returns the event length using defaultMinutes as in End.
func (e *CalendarEvent) Duration(defaultMinutes int) time.Duration {
	return e.End(defaultMinutes).Sub(e.StartsAtUTC)
}

// OverlapsWith reports half-open overlap of two events.
func (e *CalendarEvent) OverlapsWith(other *CalendarEvent, defaultMinutes int) bool {
	return e.StartsAtUTC.Before(other.End(defaultMinutes)) && other.StartsAtUTC.Before(e.End(defaultMinutes))
}

// Minutes is a convenience constructor for DurationMinutes.
func Minutes(n int) *int {
	return &n
}
