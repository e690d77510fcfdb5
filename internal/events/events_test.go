package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnidesk/internal/model"
)

func TestEventBus_Publish(t *testing.T) {
	bus := NewEventBus(nil)

	var got []string
	bus.Subscribe(EventCreated, func(e Event) error {
		got = append(got, "first")
		return nil
	})
	bus.Subscribe(EventCreated, func(e Event) error {
		got = append(got, "second")
		assert.False(t, e.CreatedAt.IsZero())
		return errors.New("boom")
	})
	bus.Subscribe(EventStatusChanged, func(Event) error {
		got = append(got, "other")
		return nil
	})

	failed := bus.Publish(Event{Type: EventCreated})
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"first", "second"}, got)

	assert.Zero(t, bus.Publish(Event{Type: "unknown"}))
}

func TestCalendarPayloadRoundTrip(t *testing.T) {
	ev := model.CalendarEvent{
		ID:          "e1",
		StartsAtUTC: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Status:      model.StatusConfirmed,
	}

	e, err := NewCalendarEvent(EventStatusChanged, CalendarPayload{Event: ev, PreviousStatus: model.StatusScheduled, Timezone: "UTC"})
	require.NoError(t, err)
	assert.Equal(t, EventStatusChanged, e.Type)

	p, err := e.DecodeCalendar()
	require.NoError(t, err)
	assert.Equal(t, "e1", p.Event.ID)
	assert.Equal(t, model.StatusScheduled, p.PreviousStatus)
	assert.True(t, p.Event.StartsAtUTC.Equal(ev.StartsAtUTC))

	_, err = Event{Type: EventCreated, Payload: []byte("{")}.DecodeCalendar()
	assert.Error(t, err)
}
