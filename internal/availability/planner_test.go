package availability

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnidesk/internal/model"
	"omnidesk/internal/slots"
)

// Europe/Berlin is UTC+1 in early March 2026.
func berlinMonth() *MonthData {
	return &MonthData{
		Month:    "2026-03",
		Timezone: "Europe/Berlin",
		BusinessSchedule: model.WeeklySchedule{
			model.Monday:    {StartTime: "09:00", EndTime: "12:00"},
			model.Tuesday:   {StartTime: "09:00", EndTime: "18:00"},
			model.Wednesday: {StartTime: "09:00", EndTime: "18:00"},
			model.Thursday:  {StartTime: "09:00", EndTime: "18:00"},
			model.Friday:    {StartTime: "09:00", EndTime: "18:00"},
			model.Saturday:  {IsDayOff: true},
		},
		SlotMinutes: 30,
		Events: []model.CalendarEvent{
			{
				ID:              "e1",
				StartsAtUTC:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
				DurationMinutes: model.Minutes(60),
				Status:          model.StatusConfirmed,
			},
			{
				ID:          "e2",
				StartsAtUTC: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
				Status:      model.StatusCanceled,
			},
			{
				ID:          "e3",
				StartsAtUTC: time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC),
				Status:      model.StatusScheduled,
			},
		},
		Overrides: map[string]model.ScheduleOverride{
			"2026-03-03": {Date: "2026-03-03", IsDayOff: true, Reason: "holiday"},
			"2026-03-07": {Date: "2026-03-07", StartTime: "10:00", EndTime: "11:00", Reason: "open saturday"},
		},
	}
}

func newTestPlanner(now time.Time, rules BookingRules) *Planner {
	return NewPlanner(FixedClock(now), rules, nil)
}

func TestPlanner_MonthView(t *testing.T) {
	p := newTestPlanner(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), BookingRules{})

	view := p.MonthView(berlinMonth(), "2026-03")
	assert.Equal(t, "2026-03", view.Month)
	assert.Len(t, view.Grid, 42)
	assert.Equal(t, map[string]int{"2026-03-02": 2, "2026-03-04": 1}, view.Counts)

	assert.Empty(t, p.MonthView(berlinMonth(), "03/2026").Grid)
}

func TestPlanner_DayView(t *testing.T) {
	p := newTestPlanner(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), BookingRules{})

	view := p.DayView(berlinMonth(), "2026-03-02")
	assert.Equal(t, model.Monday, view.Weekday)
	assert.False(t, view.IsDayOff)
	assert.Nil(t, view.Override)
	assert.Len(t, view.Events, 2)
	assert.Equal(t, []slots.BusyRange{{StartMinutes: 600, EndMinutes: 660, SourceEventID: "e1"}}, view.Busy)

	want := []slots.SlotCandidate{
		{TimeLabel: "09:00", StartMinutes: 540},
		{TimeLabel: "09:30", StartMinutes: 570},
		{TimeLabel: "10:00", StartMinutes: 600, IsBlocked: true},
		{TimeLabel: "10:30", StartMinutes: 630, IsBlocked: true},
		{TimeLabel: "11:00", StartMinutes: 660},
		{TimeLabel: "11:30", StartMinutes: 690},
	}
	assert.Equal(t, want, view.Slots)

	assert.Equal(t, 30, view.SlotMinutes)
	assert.Equal(t, map[string][]int{
		"09:00": {30, 60},
		"09:30": {30},
		"11:00": {30, 60},
		"11:30": {30},
	}, view.Durations)
}

func TestPlanner_DayViewEncodesEmptyArrays(t *testing.T) {
	p := newTestPlanner(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), BookingRules{})

	data, err := json.Marshal(p.DayView(berlinMonth(), "2026-03-03"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"events":[]`)
	assert.Contains(t, string(data), `"busy":[]`)
	assert.Contains(t, string(data), `"slots":[]`)
	assert.Contains(t, string(data), `"durations":{}`)
}

func TestPlanner_DayViewOverrides(t *testing.T) {
	p := newTestPlanner(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), BookingRules{})

	holiday := p.DayView(berlinMonth(), "2026-03-03")
	assert.Equal(t, model.Tuesday, holiday.Weekday)
	assert.True(t, holiday.IsDayOff)
	require.NotNil(t, holiday.Override)
	assert.Equal(t, "holiday", holiday.Override.Reason)
	assert.Empty(t, holiday.Slots)

	saturday := p.DayView(berlinMonth(), "2026-03-07")
	assert.False(t, saturday.IsDayOff)
	assert.Len(t, saturday.Slots, 2)

	sunday := p.DayView(berlinMonth(), "2026-03-08")
	assert.True(t, sunday.IsDayOff)
	assert.Empty(t, sunday.Slots)
}

func TestPlanner_DayViewWeekdayFallback(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	p := NewPlanner(FixedClock(time.Time{}), BookingRules{}, &logger)

	view := p.DayView(berlinMonth(), "not-a-date")
	assert.Equal(t, model.Monday, view.Weekday)
	assert.Len(t, view.Slots, 6)
	assert.Contains(t, buf.String(), "Cannot resolve weekday")
	assert.Contains(t, buf.String(), `"component":"planner"`)
}

func TestPlanner_CheckSlot(t *testing.T) {
	p := newTestPlanner(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), BookingRules{})

	start, end, err := p.CheckSlot(berlinMonth(), SlotRequest{Date: "2026-03-02", Time: "11:00", DurationMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC), end)

	// Duration defaults to the slot size; touching the busy event is fine.
	start, end, err = p.CheckSlot(berlinMonth(), SlotRequest{Date: "2026-03-02", Time: "09:30"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, end.Sub(start))

	tests := []struct {
		name string
		req  SlotRequest
		want error
	}{
		{"overlap", SlotRequest{Date: "2026-03-02", Time: "10:30"}, ErrSlotConflict},
		{"overlap by duration", SlotRequest{Date: "2026-03-02", Time: "09:00", DurationMinutes: 90}, ErrSlotConflict},
		{"past closing", SlotRequest{Date: "2026-03-02", Time: "11:30", DurationMinutes: 60}, ErrOutsideHours},
		{"before opening", SlotRequest{Date: "2026-03-02", Time: "08:30"}, ErrOutsideHours},
		{"override day off", SlotRequest{Date: "2026-03-03", Time: "10:00"}, ErrDayOff},
		{"missing weekday", SlotRequest{Date: "2026-03-08", Time: "10:00"}, ErrDayOff},
		{"bad date", SlotRequest{Date: "2026-02-30", Time: "10:00"}, ErrInvalidSlot},
		{"bad time", SlotRequest{Date: "2026-03-02", Time: "9:00"}, ErrInvalidSlot},
		{"negative duration", SlotRequest{Date: "2026-03-02", Time: "09:00", DurationMinutes: -30}, ErrInvalidSlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.CheckSlot(berlinMonth(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPlanner_CheckSlotIgnoresInactiveEvents(t *testing.T) {
	p := newTestPlanner(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), BookingRules{})

	// e2 is canceled and sits at 09:00 Berlin.
	_, _, err := p.CheckSlot(berlinMonth(), SlotRequest{Date: "2026-03-02", Time: "09:00"})
	assert.NoError(t, err)
}

func TestPlanner_CheckSlotBookingRules(t *testing.T) {
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	p := newTestPlanner(now, BookingRules{MinAdvance: 2 * time.Hour, MaxAdvance: 48 * time.Hour})

	_, _, err := p.CheckSlot(berlinMonth(), SlotRequest{Date: "2026-03-02", Time: "09:00"})
	assert.ErrorIs(t, err, ErrTooSoon)

	_, _, err = p.CheckSlot(berlinMonth(), SlotRequest{Date: "2026-03-02", Time: "11:00"})
	assert.NoError(t, err)

	_, _, err = p.CheckSlot(berlinMonth(), SlotRequest{Date: "2026-03-05", Time: "10:00"})
	assert.ErrorIs(t, err, ErrTooFar)
}

func TestPlanner_CheckSlotSkippedByDST(t *testing.T) {
	p := newTestPlanner(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), BookingRules{})
	data := berlinMonth()
	// Clocks jump from 02:00 to 03:00 in Berlin on 2026-03-29.
	data.Overrides["2026-03-29"] = model.ScheduleOverride{Date: "2026-03-29", StartTime: "00:00", EndTime: "06:00"}

	_, _, err := p.CheckSlot(data, SlotRequest{Date: "2026-03-29", Time: "02:30"})
	assert.ErrorIs(t, err, ErrInvalidSlot)

	start, _, err := p.CheckSlot(data, SlotRequest{Date: "2026-03-29", Time: "03:00"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 29, 1, 0, 0, 0, time.UTC), start)
}

func TestPlanner_CheckSlotUnknownTimezone(t *testing.T) {
	p := newTestPlanner(time.Time{}, BookingRules{})
	data := berlinMonth()
	data.Timezone = "Nowhere/Land"

	_, _, err := p.CheckSlot(data, SlotRequest{Date: "2026-03-02", Time: "09:00"})
	assert.ErrorIs(t, err, ErrInvalidSlot)
}
