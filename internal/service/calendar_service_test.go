package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnidesk/internal/availability"
	"omnidesk/internal/config"
	"omnidesk/internal/db"
	"omnidesk/internal/events"
	"omnidesk/internal/model"
)

func newTestService(t *testing.T) (*CalendarService, *db.DB, *[]events.Event) {
	t.Helper()

	store, err := db.NewDB(filepath.Join(t.TempDir(), "calendar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	weekly := model.WeeklySchedule{
		model.Sunday: model.DayOff,
	}
	for _, d := range []model.Weekday{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday} {
		weekly[d] = model.DaySchedule{StartTime: "09:00", EndTime: "18:00"}
	}
	weekly[model.Saturday] = model.DaySchedule{StartTime: "10:00", EndTime: "14:00"}
	require.NoError(t, store.ReplaceWeeklySchedule(ctx, weekly))

	var published []events.Event
	bus := events.NewEventBus(nil)
	for _, typ := range []string{events.EventCreated, events.EventStatusChanged, events.EventDeleted} {
		bus.Subscribe(typ, func(e events.Event) error {
			published = append(published, e)
			return nil
		})
	}

	logger := zerolog.New(io.Discard)
	svc := NewCalendarService(store, bus, Options{
		Timezone:    "Europe/Berlin",
		SlotMinutes: 60,
		Clock:       availability.FixedClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)),
	}, &logger)
	return svc, store, &published
}

func booking(date, hhmm string) NewEventInput {
	return NewEventInput{
		SlotRequest: availability.SlotRequest{Date: date, Time: hhmm},
		Title:       "Consultation",
		ClientName:  "Jane",
	}
}

func TestCalendarService(t *testing.T) {
	svc, store, published := newTestService(t)
	ctx := context.Background()

	var first *model.CalendarEvent

	t.Run("CreateEvent", func(t *testing.T) {
		e, err := svc.CreateEvent(ctx, booking("2026-03-02", "10:00"))
		require.NoError(t, err)
		first = e

		assert.NotEmpty(t, e.ID)
		assert.Equal(t, model.StatusScheduled, e.Status)
		assert.True(t, e.StartsAtUTC.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
		require.NotNil(t, e.DurationMinutes)
		assert.Equal(t, 60, *e.DurationMinutes)
		assert.Equal(t, "Europe/Berlin", e.Timezone)

		stored, err := store.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "Jane", stored.ClientName)

		require.Len(t, *published, 1)
		assert.Equal(t, events.EventCreated, (*published)[0].Type)
	})

	t.Run("Conflict", func(t *testing.T) {
		in := booking("2026-03-02", "09:30")
		in.DurationMinutes = 60
		_, err := svc.CreateEvent(ctx, in)
		assert.ErrorIs(t, err, availability.ErrSlotConflict)

		// Touching the end of the existing event is fine.
		_, err = svc.CreateEvent(ctx, booking("2026-03-02", "11:00"))
		assert.NoError(t, err)
	})

	t.Run("Rejections", func(t *testing.T) {
		_, err := svc.CreateEvent(ctx, booking("2026-03-08", "10:00"))
		assert.ErrorIs(t, err, availability.ErrDayOff)

		_, err = svc.CreateEvent(ctx, booking("2026-03-07", "13:30"))
		assert.ErrorIs(t, err, availability.ErrOutsideHours)

		_, err = svc.CreateEvent(ctx, booking("2026-03-02", "9:00"))
		assert.ErrorIs(t, err, availability.ErrInvalidSlot)

		_, err = svc.CreateEvent(ctx, booking("not-a-date", "10:00"))
		assert.ErrorIs(t, err, availability.ErrInvalidSlot)

		in := booking("2026-03-04", "10:00")
		in.Status = model.StatusCanceled
		_, err = svc.CreateEvent(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("Override", func(t *testing.T) {
		require.NoError(t, svc.SetOverride(ctx, model.ScheduleOverride{Date: "2026-03-03", IsDayOff: true, Reason: "Inventory"}))
		_, err := svc.CreateEvent(ctx, booking("2026-03-03", "10:00"))
		assert.ErrorIs(t, err, availability.ErrDayOff)

		require.NoError(t, svc.DeleteOverride(ctx, "2026-03-03"))
		_, err = svc.CreateEvent(ctx, booking("2026-03-03", "10:00"))
		assert.NoError(t, err)

		err = svc.SetOverride(ctx, model.ScheduleOverride{Date: "2026-03-05", StartTime: "12:00", EndTime: "11:00"})
		assert.Error(t, err)
	})

	t.Run("DayView", func(t *testing.T) {
		view, err := svc.DayView(ctx, "2026-03-02")
		require.NoError(t, err)

		assert.Equal(t, model.Monday, view.Weekday)
		assert.Len(t, view.Events, 2)
		require.Len(t, view.Slots, 9)
		assert.Equal(t, "09:00", view.Slots[0].TimeLabel)
		assert.False(t, view.Slots[0].IsBlocked)
		assert.True(t, view.Slots[1].IsBlocked)
		assert.True(t, view.Slots[2].IsBlocked)
		assert.False(t, view.Slots[3].IsBlocked)
	})

	t.Run("MonthView", func(t *testing.T) {
		view, err := svc.MonthView(ctx, "2026-03")
		require.NoError(t, err)
		assert.Len(t, view.Grid, 42)
		assert.Equal(t, 2, view.Counts["2026-03-02"])
		assert.Equal(t, 1, view.Counts["2026-03-03"])

		_, err = svc.MonthView(ctx, "2026-3")
		assert.ErrorIs(t, err, ErrInvalidMonth)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		*published = nil

		e, err := svc.UpdateStatus(ctx, first.ID, model.StatusCanceled)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCanceled, e.Status)

		changedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		assert.True(t, e.UpdatedAt.Equal(changedAt), e.UpdatedAt)
		stored, err := store.GetEvent(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, stored.UpdatedAt.Equal(e.UpdatedAt), stored.UpdatedAt)

		require.Len(t, *published, 1)
		p, err := (*published)[0].DecodeCalendar()
		require.NoError(t, err)
		assert.Equal(t, model.StatusScheduled, p.PreviousStatus)
		assert.Equal(t, model.StatusCanceled, p.Event.Status)

		// The freed slot can be booked again.
		_, err = svc.CreateEvent(ctx, booking("2026-03-02", "10:00"))
		require.NoError(t, err)

		// And the canceled event can no longer be reopened.
		_, err = svc.UpdateStatus(ctx, first.ID, model.StatusConfirmed)
		assert.ErrorIs(t, err, availability.ErrSlotConflict)

		_, err = svc.UpdateStatus(ctx, first.ID, "lost")
		assert.ErrorIs(t, err, ErrInvalidStatus)

		_, err = svc.UpdateStatus(ctx, "missing", model.StatusConfirmed)
		assert.ErrorIs(t, err, db.ErrNotFound)
	})

	t.Run("DeleteEvent", func(t *testing.T) {
		require.NoError(t, svc.DeleteEvent(ctx, first.ID))
		_, err := store.GetEvent(ctx, first.ID)
		assert.ErrorIs(t, err, db.ErrNotFound)
		assert.ErrorIs(t, svc.DeleteEvent(ctx, first.ID), db.ErrNotFound)
	})

	t.Run("Export", func(t *testing.T) {
		var xlsx, ics bytes.Buffer
		require.NoError(t, svc.ExportMonthXLSX(ctx, &xlsx, "2026-03"))
		assert.NotZero(t, xlsx.Len())

		require.NoError(t, svc.ExportMonthICS(ctx, &ics, "2026-03"))
		assert.Contains(t, ics.String(), "BEGIN:VEVENT")
		assert.Contains(t, ics.String(), "DTSTAMP:20260301T080000Z")

		assert.ErrorIs(t, svc.ExportMonthICS(ctx, &ics, "bad"), ErrInvalidMonth)
	})
}

func TestSchedule(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetOverride(ctx, model.ScheduleOverride{Date: "2026-02-20", IsDayOff: true}))
	require.NoError(t, svc.SetOverride(ctx, model.ScheduleOverride{Date: "2026-03-08", StartTime: "10:00", EndTime: "12:00"}))

	s, err := svc.GetSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", s.Timezone)
	assert.Equal(t, 60, s.SlotMinutes)
	assert.Len(t, s.Weekly, 7)
	require.Len(t, s.Overrides, 1)
	assert.Equal(t, "2026-03-08", s.Overrides[0].Date)

	err = svc.ReplaceWeeklySchedule(ctx, model.WeeklySchedule{model.Monday: {StartTime: "18:00", EndTime: "09:00"}})
	assert.Error(t, err)
	err = svc.ReplaceWeeklySchedule(ctx, model.WeeklySchedule{"funday": {IsDayOff: true}})
	assert.Error(t, err)

	require.NoError(t, svc.ReplaceWeeklySchedule(ctx, model.WeeklySchedule{model.Monday: {StartTime: "08:00", EndTime: "12:00"}}))
	s, err = svc.GetSchedule(ctx)
	require.NoError(t, err)
	assert.Len(t, s.Weekly, 1)

	// Tuesday has no entry any more and is closed.
	_, err = svc.CreateEvent(ctx, booking("2026-03-03", "10:00"))
	assert.ErrorIs(t, err, availability.ErrDayOff)
}

func TestSetDaySchedule(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetDaySchedule(ctx, model.Sunday, model.DaySchedule{StartTime: "11:00", EndTime: "15:00"}))
	weekly, err := store.GetWeeklySchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DaySchedule{StartTime: "11:00", EndTime: "15:00"}, weekly[model.Sunday])
	assert.Len(t, weekly, 7)

	_, err = svc.CreateEvent(ctx, booking("2026-03-08", "11:00"))
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.SetDaySchedule(ctx, "funday", model.DayOff), ErrInvalidSchedule)
	assert.ErrorIs(t, svc.SetDaySchedule(ctx, model.Monday, model.DaySchedule{StartTime: "9"}), ErrInvalidSchedule)
}

func TestSubscribersRunAfterWriteLock(t *testing.T) {
	store, err := db.NewDB(filepath.Join(t.TempDir(), "calendar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	require.NoError(t, store.SetDaySchedule(ctx, model.Monday, model.DaySchedule{StartTime: "09:00", EndTime: "18:00"}))

	bus := events.NewEventBus(nil)
	svc := NewCalendarService(store, bus, Options{
		Timezone:    "UTC",
		SlotMinutes: 60,
		Clock:       availability.FixedClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)),
	}, nil)

	// A subscriber that writes back into the calendar would deadlock if
	// handlers ran under the write lock.
	bus.Subscribe(events.EventCreated, func(e events.Event) error {
		p, err := e.DecodeCalendar()
		if err != nil {
			return err
		}
		_, err = svc.UpdateStatus(ctx, p.Event.ID, model.StatusConfirmed)
		return err
	})

	done := make(chan error, 1)
	var created *model.CalendarEvent
	go func() {
		var err error
		created, err = svc.CreateEvent(ctx, booking("2026-03-02", "10:00"))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("CreateEvent blocked on its own subscriber")
	}

	stored, err := store.GetEvent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, stored.Status)
}

func TestApplyBusinessConfig(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.ApplyBusinessConfig(&config.BusinessConfig{Timezone: "UTC", SlotMinutes: 30})

	data, err := svc.LoadMonth(ctx, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, "UTC", data.Timezone)
	assert.Equal(t, 30, data.SlotMinutes)

	e, err := svc.CreateEvent(ctx, booking("2026-03-02", "10:00"))
	require.NoError(t, err)
	assert.True(t, e.StartsAtUTC.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, 30, *e.DurationMinutes)
}

type failingStore struct {
	Store
}

func (failingStore) ListEventsBetween(context.Context, time.Time, time.Time) ([]model.CalendarEvent, error) {
	return nil, errors.New("database is locked")
}

func TestLoadMonth_StoreError(t *testing.T) {
	svc := NewCalendarService(failingStore{}, nil, Options{Timezone: "UTC"}, nil)
	_, err := svc.LoadMonth(context.Background(), "2026-03")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}
