// Package availability wires the pure calendar functions together: it turns
// a month payload into month and day views and enforces slot availability
// when an event is booked.
package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"omnidesk/internal/calendar"
	"omnidesk/internal/model"
	"omnidesk/internal/slots"
	"omnidesk/internal/timekey"
)

var (
	ErrInvalidSlot  = errors.New("invalid slot")
	ErrDayOff       = errors.New("day off")
	ErrOutsideHours = errors.New("outside business hours")
	ErrSlotConflict = errors.New("slot is already booked")
	ErrTooSoon      = errors.New("slot is too soon")
	ErrTooFar       = errors.New("slot is too far in the future")
)

// MonthData is everything the calendar needs for one month.
type MonthData struct {
	Month            string                            `json:"month"`
	Events           []model.CalendarEvent             `json:"events"`
	BusinessSchedule model.WeeklySchedule              `json:"businessSchedule"`
	Timezone         string                            `json:"timezone"`
	SlotMinutes      int                               `json:"slotMinutes"`
	Overrides        map[string]model.ScheduleOverride `json:"overrides,omitempty"`
}

// MonthView is the grid of a month with event badges.
type MonthView struct {
	Month  string              `json:"month"`
	Grid   []calendar.GridCell `json:"grid"`
	Counts map[string]int      `json:"counts"`
}

// DayView is the slot picker of a single day.
type DayView struct {
	Date     string                  `json:"date"`
	Weekday  model.Weekday           `json:"weekday"`
	Schedule model.DaySchedule       `json:"schedule"`
	Override *model.ScheduleOverride `json:"override,omitempty"`
	IsDayOff bool                    `json:"isDayOff"`
	Events   []model.CalendarEvent   `json:"events"`
	Busy     []slots.BusyRange       `json:"busy"`
	Slots    []slots.SlotCandidate   `json:"slots"`

	SlotMinutes int `json:"slotMinutes"`
	// Durations lists the bookable lengths in minutes for each free slot,
	// keyed by its time label.
	Durations map[string][]int `json:"durations"`
}

// SlotRequest is a slot picked for a new event.
type SlotRequest struct {
	Date            string `json:"date"` // YYYY-MM-DD
	Time            string `json:"time"` // HH:MM
	DurationMinutes int    `json:"durationMinutes"`
}

// BookingRules limit how close to and how far from now a slot may be booked.
// Zero values disable the corresponding check.
type BookingRules struct {
	MinAdvance time.Duration
	MaxAdvance time.Duration
}

// Planner computes calendar views from MonthData.
type Planner struct {
	clock  Clock
	rules  BookingRules
	logger zerolog.Logger
}

// NewPlanner creates a planner. A nil clock means RealClock.
func NewPlanner(clock Clock, rules BookingRules, logger *zerolog.Logger) *Planner {
	if clock == nil {
		clock = RealClock{}
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "planner").Logger()
	}
	return &Planner{clock: clock, rules: rules, logger: l}
}

// MonthView builds the grid for monthKey and counts the events of every day.
func (p *Planner) MonthView(data *MonthData, monthKey string) MonthView {
	return MonthView{
		Month:  monthKey,
		Grid:   calendar.BuildCalendarGrid(monthKey),
		Counts: calendar.EventCounts(data.Events, data.Timezone),
	}
}

// DayView computes the slots of dateKey.
func (p *Planner) DayView(data *MonthData, dateKey string) DayView {
	weekday, schedule, override := p.effectiveSchedule(data, dateKey)

	dayEvents := slots.EventsOnDate(data.Events, dateKey, data.Timezone)
	busy := slots.BuildBusyRanges(dayEvents, data.SlotMinutes, data.Timezone)
	daySlots := slots.GenerateSlots(schedule, data.SlotMinutes, busy)

	durations := make(map[string][]int, len(daySlots))
	for _, s := range slots.FreeSlots(daySlots) {
		durations[s.TimeLabel] = slots.DurationOptions(daySlots, s.StartMinutes, data.SlotMinutes)
	}

	// JSON clients get arrays, never null.
	if dayEvents == nil {
		dayEvents = []model.CalendarEvent{}
	}
	if daySlots == nil {
		daySlots = []slots.SlotCandidate{}
	}

	return DayView{
		Date:        dateKey,
		Weekday:     weekday,
		Schedule:    schedule,
		Override:    override,
		IsDayOff:    schedule.IsDayOff,
		Events:      dayEvents,
		Busy:        busy,
		Slots:       daySlots,
		SlotMinutes: data.SlotMinutes,
		Durations:   durations,
	}
}

func (p *Planner) effectiveSchedule(data *MonthData, dateKey string) (model.Weekday, model.DaySchedule, *model.ScheduleOverride) {
	weekday, ok := timekey.ParseWeekday(dateKey, data.Timezone)
	if !ok {
		p.logger.Warn().Str("date", dateKey).Str("timezone", data.Timezone).
			Msg("Cannot resolve weekday, using monday schedule")
	}

	if o, ok := data.Overrides[dateKey]; ok {
		return weekday, o.DaySchedule(), &o
	}
	return weekday, model.ScheduleFor(data.BusinessSchedule, weekday), nil
}

// CheckSlot validates that req can be booked: the day is open, the slot fits
// into business hours, no busy event overlaps it and it respects the booking
// rules. It returns the absolute start and end of the slot.
func (p *Planner) CheckSlot(data *MonthData, req SlotRequest) (start, end time.Time, err error) {
	loc, ok := timekey.LoadLocation(data.Timezone)
	if !ok {
		return start, end, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSlot, data.Timezone)
	}
	day, ok := timekey.ParseDateKey(req.Date, loc)
	if !ok {
		return start, end, fmt.Errorf("%w: bad date %q", ErrInvalidSlot, req.Date)
	}
	startMin, ok := timekey.ParseTimeToMinutes(req.Time)
	if !ok {
		return start, end, fmt.Errorf("%w: bad time %q", ErrInvalidSlot, req.Time)
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = data.SlotMinutes
	}
	if duration <= 0 {
		return start, end, fmt.Errorf("%w: non-positive duration", ErrInvalidSlot)
	}
	endMin := startMin + duration

	_, schedule, _ := p.effectiveSchedule(data, req.Date)
	if schedule.IsDayOff {
		return start, end, fmt.Errorf("%s: %w", req.Date, ErrDayOff)
	}
	open, okOpen := timekey.ParseTimeToMinutes(schedule.StartTime)
	closing, okClose := timekey.ParseTimeToMinutes(schedule.EndTime)
	if !okOpen || !okClose || startMin < open || endMin > closing {
		return start, end, fmt.Errorf("%s %s: %w", req.Date, req.Time, ErrOutsideHours)
	}

	dayEvents := slots.EventsOnDate(data.Events, req.Date, data.Timezone)
	for _, b := range slots.BuildBusyRanges(dayEvents, data.SlotMinutes, data.Timezone) {
		if b.Overlaps(startMin, endMin) {
			return start, end, fmt.Errorf("%s %s overlaps event %s: %w", req.Date, req.Time, b.SourceEventID, ErrSlotConflict)
		}
	}

	start = time.Date(day.Year(), day.Month(), day.Day(), startMin/60, startMin%60, 0, 0, loc).UTC()
	// Wall-clock times skipped by a DST change normalize to another time.
	if timekey.TimeKeyInTimezone(start, data.Timezone) != timekey.FormatMinutesToTime(startMin) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s %s does not exist in %s", ErrInvalidSlot, req.Date, req.Time, data.Timezone)
	}
	end = start.Add(time.Duration(duration) * time.Minute)

	now := p.clock.Now()
	if p.rules.MinAdvance > 0 && start.Before(now.Add(p.rules.MinAdvance)) {
		return time.Time{}, time.Time{}, fmt.Errorf("%s %s: %w", req.Date, req.Time, ErrTooSoon)
	}
	if p.rules.MaxAdvance > 0 && start.After(now.Add(p.rules.MaxAdvance)) {
		return time.Time{}, time.Time{}, fmt.Errorf("%s %s: %w", req.Date, req.Time, ErrTooFar)
	}
	return start, end, nil
}
