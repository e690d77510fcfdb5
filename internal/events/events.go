package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omnidesk/internal/model"
)

// Event types published by the calendar.
const (
	EventCreated       = "calendar.event.created"
	EventStatusChanged = "calendar.event.status_changed"
	EventDeleted       = "calendar.event.deleted"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// CalendarPayload is the JSON payload of calendar events.
type CalendarPayload struct {
	Event          model.CalendarEvent `json:"event"`
	PreviousStatus model.EventStatus   `json:"previousStatus,omitempty"`
	Timezone       string              `json:"timezone"`
}

// NewCalendarEvent builds an event with a JSON encoded CalendarPayload.
func NewCalendarEvent(eventType string, p CalendarPayload) (Event, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: data, CreatedAt: time.Now()}, nil
}

// DecodeCalendar decodes the payload of a calendar event.
func (e Event) DecodeCalendar() (CalendarPayload, error) {
	var p CalendarPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return p, nil
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	b := &EventBus{subscribers: make(map[string][]EventHandler), logger: zerolog.Nop()}
	if logger != nil {
		b.logger = logger.With().Str("component", "events").Logger()
	}
	return b
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the subscribers of the event type synchronously and returns
// the number of handlers that failed.
func (b *EventBus) Publish(event Event) int {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	failed := 0
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			failed++
			b.logger.Error().Err(err).Str("type", event.Type).Msg("Event handler failed")
		}
	}
	return failed
}
