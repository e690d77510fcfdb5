package model

import "time"

// Weekday is one of the seven fixed schedule keys.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists the schedule keys Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayFromTime converts Go's Sunday-first weekday.
func WeekdayFromTime(d time.Weekday) Weekday {
	// Monday-first index: (d + 6) % 7
	return Weekdays[(int(d)+6)%7]
}

// Valid reports whether w is one of the seven schedule keys.
func (w Weekday) Valid() bool {
	for _, d := range Weekdays {
		if d == w {
			return true
		}
	}
	return false
}

// DaySchedule holds opening hours for a single weekday. StartTime and
// EndTime are "HH:MM"; an empty string means the value is absent.
type DaySchedule struct {
	IsDayOff  bool   `json:"isDayOff" yaml:"is_day_off"`
	StartTime string `json:"startTime,omitempty" yaml:"start_time,omitempty"`
	EndTime   string `json:"endTime,omitempty" yaml:"end_time,omitempty"`
}

// DayOff is the schedule substituted for missing weekday entries.
var DayOff = DaySchedule{IsDayOff: true}

// WeeklySchedule maps each weekday to its opening hours.
type WeeklySchedule map[Weekday]DaySchedule

// ScheduleFor looks up the schedule of a weekday. A missing entry yields a
// day off so that the day produces no slots.
func ScheduleFor(ws WeeklySchedule, day Weekday) DaySchedule {
	if s, ok := ws[day]; ok {
		return s
	}
	return DayOff
}

// ScheduleOverride replaces the weekly schedule on one calendar date
// (holidays, shortened days, special hours).
type ScheduleOverride struct {
	Date      string    `json:"date"` // "2026-01-01"
	IsDayOff  bool      `json:"isDayOff"`
	StartTime string    `json:"startTime,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// DaySchedule returns the override as a regular day schedule.
func (o ScheduleOverride) DaySchedule() DaySchedule {
	return DaySchedule{IsDayOff: o.IsDayOff, StartTime: o.StartTime, EndTime: o.EndTime}
}
