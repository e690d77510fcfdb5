package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"omnidesk/internal/model"
	"omnidesk/internal/timekey"
)

// HolidayConfig is a closed date.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"`
}

// SpecialHoursConfig changes opening hours on one date.
type SpecialHoursConfig struct {
	Date      string `yaml:"date"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
	Reason    string `yaml:"reason"`
}

// BusinessConfig is the root of business.yaml.
type BusinessConfig struct {
	Timezone     string               `yaml:"timezone"`
	SlotMinutes  int                  `yaml:"slot_minutes"`
	Schedule     model.WeeklySchedule `yaml:"schedule"`
	Holidays     []HolidayConfig      `yaml:"holidays"`
	SpecialHours []SpecialHoursConfig `yaml:"special_hours"`
}

// LoadBusinessConfig loads and validates business.yaml.
func LoadBusinessConfig(path string) (*BusinessConfig, error) {
	if path == "" {
		path = "configs/business.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read business config: %w", err)
	}

	var cfg BusinessConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse business config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate business config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *BusinessConfig) Validate() error {
	if c.Timezone != "" {
		if _, ok := timekey.LoadLocation(c.Timezone); !ok {
			return fmt.Errorf("timezone: unknown timezone %q", c.Timezone)
		}
	}
	if c.SlotMinutes < 0 {
		return fmt.Errorf("slot_minutes cannot be negative")
	}

	for day, s := range c.Schedule {
		if !day.Valid() {
			return fmt.Errorf("schedule: unknown weekday %q", day)
		}
		if err := ValidateDaySchedule(s); err != nil {
			return fmt.Errorf("schedule.%s: %w", day, err)
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse(timekey.DateLayout, h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	for i, s := range c.SpecialHours {
		if _, err := time.Parse(timekey.DateLayout, s.Date); err != nil {
			return fmt.Errorf("special_hours[%d]: invalid date format '%s', expected YYYY-MM-DD", i, s.Date)
		}
		if err := ValidateDaySchedule(model.DaySchedule{StartTime: s.StartTime, EndTime: s.EndTime}); err != nil {
			return fmt.Errorf("special_hours[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateDaySchedule checks that an open day has parseable hours with the
// start before the end.
func ValidateDaySchedule(s model.DaySchedule) error {
	if s.IsDayOff {
		return nil
	}
	start, ok := timekey.ParseTimeToMinutes(s.StartTime)
	if !ok {
		return fmt.Errorf("start_time: invalid format '%s', expected HH:MM", s.StartTime)
	}
	end, ok := timekey.ParseTimeToMinutes(s.EndTime)
	if !ok {
		return fmt.Errorf("end_time: invalid format '%s', expected HH:MM", s.EndTime)
	}
	if end <= start {
		return fmt.Errorf("end_time must be after start_time")
	}
	return nil
}

// Overrides turns holidays and special hours into per-date overrides.
// Holidays win over special hours on the same date.
func (c *BusinessConfig) Overrides() []model.ScheduleOverride {
	out := make([]model.ScheduleOverride, 0, len(c.Holidays)+len(c.SpecialHours))
	seen := make(map[string]bool, len(c.Holidays))
	for _, h := range c.Holidays {
		seen[h.Date] = true
		out = append(out, model.ScheduleOverride{Date: h.Date, IsDayOff: true, Reason: h.Name})
	}
	for _, s := range c.SpecialHours {
		if seen[s.Date] {
			continue
		}
		out = append(out, model.ScheduleOverride{Date: s.Date, StartTime: s.StartTime, EndTime: s.EndTime, Reason: s.Reason})
	}
	return out
}

// String returns a summary of the configuration.
func (c *BusinessConfig) String() string {
	open := 0
	for _, s := range c.Schedule {
		if !s.IsDayOff {
			open++
		}
	}
	return fmt.Sprintf("BusinessConfig: %d open weekdays, %d holidays, %d special days",
		open, len(c.Holidays), len(c.SpecialHours))
}
