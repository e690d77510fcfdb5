// Package service implements the calendar use cases on top of storage, the
// availability planner and the event bus.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omnidesk/internal/availability"
	"omnidesk/internal/calendar"
	"omnidesk/internal/config"
	"omnidesk/internal/events"
	"omnidesk/internal/export"
	"omnidesk/internal/metrics"
	"omnidesk/internal/model"
	"omnidesk/internal/timekey"
)

var (
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Store is the persistence the calendar needs.
type Store interface {
	ListEventsBetween(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
	GetEvent(ctx context.Context, id string) (*model.CalendarEvent, error)
	CreateEvent(ctx context.Context, e *model.CalendarEvent) error
	UpdateEventStatus(ctx context.Context, id string, status model.EventStatus, at time.Time) error
	DeleteEvent(ctx context.Context, id string) error

	GetWeeklySchedule(ctx context.Context) (model.WeeklySchedule, error)
	ReplaceWeeklySchedule(ctx context.Context, ws model.WeeklySchedule) error
	SetDaySchedule(ctx context.Context, day model.Weekday, s model.DaySchedule) error
	ListScheduleOverrides(ctx context.Context, from, to string) ([]model.ScheduleOverride, error)
	UpsertScheduleOverride(ctx context.Context, o *model.ScheduleOverride) error
	DeleteScheduleOverride(ctx context.Context, date string) error
}

// Options configure the calendar service.
type Options struct {
	Timezone    string
	SlotMinutes int
	Rules       availability.BookingRules
	Clock       availability.Clock
}

// NewEventInput is a booking request.
type NewEventInput struct {
	availability.SlotRequest
	Title       string            `json:"title"`
	ClientName  string            `json:"clientName"`
	ClientPhone string            `json:"clientPhone"`
	Comment     string            `json:"comment"`
	Status      model.EventStatus `json:"status"`
}

// Schedule is the weekly schedule with its upcoming overrides.
type Schedule struct {
	Timezone    string                   `json:"timezone"`
	SlotMinutes int                      `json:"slotMinutes"`
	Weekly      model.WeeklySchedule     `json:"weekly"`
	Overrides   []model.ScheduleOverride `json:"overrides"`
}

// CalendarService serves month data and books events.
type CalendarService struct {
	store   Store
	bus     *events.EventBus
	planner *availability.Planner
	clock   availability.Clock
	logger  *zerolog.Logger

	settingsMu  sync.RWMutex
	timezone    string
	slotMinutes int

	// writeMu serializes slot checks with the inserts that depend on them.
	writeMu sync.Mutex
}

// NewCalendarService creates the service. bus may be nil.
func NewCalendarService(store Store, bus *events.EventBus, opts Options, logger *zerolog.Logger) *CalendarService {
	if opts.Clock == nil {
		opts.Clock = availability.RealClock{}
	}
	if opts.SlotMinutes <= 0 {
		opts.SlotMinutes = 60
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "calendar").Logger()
	}
	return &CalendarService{
		store:       store,
		bus:         bus,
		planner:     availability.NewPlanner(opts.Clock, opts.Rules, logger),
		clock:       opts.Clock,
		logger:      &l,
		timezone:    opts.Timezone,
		slotMinutes: opts.SlotMinutes,
	}
}

// ApplyBusinessConfig switches timezone and slot length after a reload of
// business.yaml.
func (s *CalendarService) ApplyBusinessConfig(cfg *config.BusinessConfig) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	if cfg.Timezone != "" {
		s.timezone = cfg.Timezone
	}
	if cfg.SlotMinutes > 0 {
		s.slotMinutes = cfg.SlotMinutes
	}
	s.logger.Info().Str("timezone", s.timezone).Int("slot_minutes", s.slotMinutes).Msg("Business settings applied")
}

func (s *CalendarService) settings() (string, int) {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.timezone, s.slotMinutes
}

// LoadMonth assembles the month payload: events starting in the month in the
// calendar timezone, the weekly schedule and the month's overrides.
func (s *CalendarService) LoadMonth(ctx context.Context, monthKey string) (*availability.MonthData, error) {
	tz, slotMinutes := s.settings()

	from, to, ok := calendar.MonthBounds(monthKey, tz)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMonth, monthKey)
	}
	next, _ := calendar.ShiftMonth(monthKey, 1)

	evs, err := s.store.ListEventsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	weekly, err := s.store.GetWeeklySchedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("weekly schedule: %w", err)
	}
	overrides, err := s.store.ListScheduleOverrides(ctx, monthKey+"-01", next+"-01")
	if err != nil {
		return nil, fmt.Errorf("schedule overrides: %w", err)
	}

	data := &availability.MonthData{
		Month:            monthKey,
		Events:           evs,
		BusinessSchedule: weekly,
		Timezone:         tz,
		SlotMinutes:      slotMinutes,
	}
	if len(overrides) > 0 {
		data.Overrides = make(map[string]model.ScheduleOverride, len(overrides))
		for _, o := range overrides {
			data.Overrides[o.Date] = o
		}
	}
	return data, nil
}

// MonthView returns the grid of monthKey with event counts.
func (s *CalendarService) MonthView(ctx context.Context, monthKey string) (availability.MonthView, error) {
	data, err := s.LoadMonth(ctx, monthKey)
	if err != nil {
		return availability.MonthView{}, err
	}
	return s.planner.MonthView(data, monthKey), nil
}

// DayView returns the slots of dateKey.
func (s *CalendarService) DayView(ctx context.Context, dateKey string) (availability.DayView, error) {
	data, err := s.monthOfDate(ctx, dateKey)
	if err != nil {
		return availability.DayView{}, err
	}
	return s.planner.DayView(data, dateKey), nil
}

func (s *CalendarService) monthOfDate(ctx context.Context, dateKey string) (*availability.MonthData, error) {
	monthKey, ok := calendar.MonthOf(dateKey)
	if !ok {
		return nil, fmt.Errorf("%w: bad date %q", availability.ErrInvalidSlot, dateKey)
	}
	return s.LoadMonth(ctx, monthKey)
}

// CreateEvent books a slot. The slot is re-checked against stored events
// under a lock so that two concurrent bookings cannot take the same time.
// Subscribers are notified after the lock is released.
func (s *CalendarService) CreateEvent(ctx context.Context, in NewEventInput) (*model.CalendarEvent, error) {
	if in.Status != "" && !in.Status.IsBusy() {
		return nil, fmt.Errorf("%w: new events cannot be %s", ErrInvalidStatus, in.Status)
	}

	e, tz, err := s.createEvent(ctx, in)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventCreated, *e, "", tz)
	return e, nil
}

func (s *CalendarService) createEvent(ctx context.Context, in NewEventInput) (*model.CalendarEvent, string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := s.monthOfDate(ctx, in.Date)
	if err != nil {
		s.reject(err)
		return nil, "", err
	}
	start, end, err := s.planner.CheckSlot(data, in.SlotRequest)
	if err != nil {
		s.reject(err)
		return nil, "", err
	}

	minutes := int(end.Sub(start) / time.Minute)
	e := &model.CalendarEvent{
		Title:           in.Title,
		ClientName:      in.ClientName,
		ClientPhone:     in.ClientPhone,
		Comment:         in.Comment,
		StartsAtUTC:     start,
		DurationMinutes: &minutes,
		Timezone:        data.Timezone,
		Status:          in.Status,
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, "", fmt.Errorf("create event: %w", err)
	}

	metrics.IncEventCreated(string(e.Status))
	s.logger.Info().
		Str("event_id", e.ID).
		Str("date", in.Date).
		Str("time", in.Time).
		Int("minutes", minutes).
		Msg("Event created")
	return e, data.Timezone, nil
}

func (s *CalendarService) reject(err error) {
	reason := "invalid"
	switch {
	case errors.Is(err, availability.ErrDayOff):
		reason = "day_off"
	case errors.Is(err, availability.ErrOutsideHours):
		reason = "outside_hours"
	case errors.Is(err, availability.ErrSlotConflict):
		reason = "conflict"
	case errors.Is(err, availability.ErrTooSoon):
		reason = "too_soon"
	case errors.Is(err, availability.ErrTooFar):
		reason = "too_far"
	case !errors.Is(err, availability.ErrInvalidSlot) && !errors.Is(err, ErrInvalidMonth):
		return
	}
	metrics.IncSlotRejected(reason)
	s.logger.Debug().Err(err).Str("reason", reason).Msg("Slot rejected")
}

// UpdateStatus moves an event to status. Reopening a canceled or finished
// event fails with availability.ErrSlotConflict when its time was taken in
// the meantime.
func (s *CalendarService) UpdateStatus(ctx context.Context, id string, status model.EventStatus) (*model.CalendarEvent, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	e, previous, err := s.updateStatus(ctx, id, status)
	if err != nil || previous == status {
		return e, err
	}
	tz, _ := s.settings()
	s.publish(events.EventStatusChanged, *e, previous, tz)
	return e, nil
}

func (s *CalendarService) updateStatus(ctx context.Context, id string, status model.EventStatus) (*model.CalendarEvent, model.EventStatus, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, "", err
	}
	previous := e.Status
	if previous == status {
		return e, previous, nil
	}

	_, slotMinutes := s.settings()
	if status.IsBusy() && !previous.IsBusy() {
		if err := s.checkReopen(ctx, e, slotMinutes); err != nil {
			return nil, "", err
		}
	}

	at := s.clock.Now().UTC().Truncate(time.Second)
	if err := s.store.UpdateEventStatus(ctx, id, status, at); err != nil {
		return nil, "", fmt.Errorf("update status: %w", err)
	}
	e.Status = status
	e.UpdatedAt = at

	metrics.IncStatusChange(string(status))
	s.logger.Info().
		Str("event_id", id).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("Event status changed")
	return e, previous, nil
}

func (s *CalendarService) checkReopen(ctx context.Context, e *model.CalendarEvent, slotMinutes int) error {
	// Busy events longer than a day are not modeled, so a one day window
	// around the event covers every possible overlap.
	others, err := s.store.ListEventsBetween(ctx, e.StartsAtUTC.Add(-24*time.Hour), e.End(slotMinutes))
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	for i := range others {
		o := &others[i]
		if o.ID == e.ID || !o.Status.IsBusy() {
			continue
		}
		if e.OverlapsWith(o, slotMinutes) {
			return fmt.Errorf("event %s overlaps event %s: %w", e.ID, o.ID, availability.ErrSlotConflict)
		}
	}
	return nil
}

// DeleteEvent removes an event.
func (s *CalendarService) DeleteEvent(ctx context.Context, id string) error {
	e, err := s.deleteEvent(ctx, id)
	if err != nil {
		return err
	}
	tz, _ := s.settings()
	s.publish(events.EventDeleted, *e, e.Status, tz)
	return nil
}

func (s *CalendarService) deleteEvent(ctx context.Context, id string) (*model.CalendarEvent, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return nil, fmt.Errorf("delete event: %w", err)
	}
	s.logger.Info().Str("event_id", id).Msg("Event deleted")
	return e, nil
}

func (s *CalendarService) publish(eventType string, e model.CalendarEvent, previous model.EventStatus, tz string) {
	if s.bus == nil {
		return
	}
	ev, err := events.NewCalendarEvent(eventType, events.CalendarPayload{Event: e, PreviousStatus: previous, Timezone: tz})
	if err != nil {
		s.logger.Error().Err(err).Str("type", eventType).Msg("Failed to build event")
		return
	}
	s.bus.Publish(ev)
}

// GetSchedule returns the weekly schedule and the overrides from today on.
func (s *CalendarService) GetSchedule(ctx context.Context) (*Schedule, error) {
	tz, slotMinutes := s.settings()

	weekly, err := s.store.GetWeeklySchedule(ctx)
	if err != nil {
		return nil, err
	}
	today := s.clock.Now()
	if loc, ok := timekey.LoadLocation(tz); ok {
		today = today.In(loc)
	}
	overrides, err := s.store.ListScheduleOverrides(ctx, today.Format(timekey.DateLayout), "")
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = []model.ScheduleOverride{}
	}
	return &Schedule{Timezone: tz, SlotMinutes: slotMinutes, Weekly: weekly, Overrides: overrides}, nil
}

// ReplaceWeeklySchedule validates and stores a full weekly schedule.
func (s *CalendarService) ReplaceWeeklySchedule(ctx context.Context, ws model.WeeklySchedule) error {
	for day, ds := range ws {
		if !day.Valid() {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidSchedule, day)
		}
		if err := config.ValidateDaySchedule(ds); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, day, err)
		}
	}
	if err := s.store.ReplaceWeeklySchedule(ctx, ws); err != nil {
		return err
	}
	s.logger.Info().Int("days", len(ws)).Msg("Weekly schedule replaced")
	return nil
}

// SetDaySchedule validates and stores the schedule of one weekday.
func (s *CalendarService) SetDaySchedule(ctx context.Context, day model.Weekday, ds model.DaySchedule) error {
	if !day.Valid() {
		return fmt.Errorf("%w: unknown weekday %q", ErrInvalidSchedule, day)
	}
	if err := config.ValidateDaySchedule(ds); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, day, err)
	}
	if err := s.store.SetDaySchedule(ctx, day, ds); err != nil {
		return err
	}
	s.logger.Info().Str("weekday", string(day)).Bool("day_off", ds.IsDayOff).Msg("Day schedule set")
	return nil
}

// SetOverride stores a date-specific schedule.
func (s *CalendarService) SetOverride(ctx context.Context, o model.ScheduleOverride) error {
	if _, ok := calendar.MonthOf(o.Date); !ok {
		return fmt.Errorf("%w: bad date %q", ErrInvalidSchedule, o.Date)
	}
	if err := config.ValidateDaySchedule(o.DaySchedule()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, o.Date, err)
	}
	if err := s.store.UpsertScheduleOverride(ctx, &o); err != nil {
		return err
	}
	s.logger.Info().Str("date", o.Date).Bool("day_off", o.IsDayOff).Msg("Schedule override set")
	return nil
}

// DeleteOverride restores the weekly schedule on date.
func (s *CalendarService) DeleteOverride(ctx context.Context, date string) error {
	return s.store.DeleteScheduleOverride(ctx, date)
}

// ExportMonthXLSX writes the month report workbook.
func (s *CalendarService) ExportMonthXLSX(ctx context.Context, w io.Writer, monthKey string) error {
	data, err := s.LoadMonth(ctx, monthKey)
	if err != nil {
		return err
	}
	return export.WriteMonthReport(w, monthKey, data.Events, data.Timezone, data.SlotMinutes)
}

// ExportMonthICS writes the month as an iCalendar feed.
func (s *CalendarService) ExportMonthICS(ctx context.Context, w io.Writer, monthKey string) error {
	data, err := s.LoadMonth(ctx, monthKey)
	if err != nil {
		return err
	}
	return export.WriteICS(w, data.Events, data.Timezone, data.SlotMinutes, s.clock.Now())
}
