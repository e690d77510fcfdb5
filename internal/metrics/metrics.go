package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnidesk_calendar",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	eventsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnidesk_calendar",
			Name:      "events_created_total",
			Help:      "Count of calendar events created by status.",
		},
		[]string{"status"},
	)

	slotRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnidesk_calendar",
			Name:      "slot_rejections_total",
			Help:      "Count of booking attempts rejected by reason.",
		},
		[]string{"reason"},
	)

	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnidesk_calendar",
			Name:      "event_status_changes_total",
			Help:      "Count of event status transitions by new status.",
		},
		[]string{"status"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnidesk_calendar",
			Name:      "client_cache_lookups_total",
			Help:      "Count of API client cache lookups by result.",
		},
		[]string{"result"},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnidesk_calendar",
			Name:      "notifications_sent_total",
			Help:      "Count of Telegram notifications by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, eventsCreated, slotRejections, statusChanges, cacheLookups, notificationsSent)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncEventCreated(status string) {
	eventsCreated.WithLabelValues(status).Inc()
}

func IncSlotRejected(reason string) {
	slotRejections.WithLabelValues(reason).Inc()
}

func IncStatusChange(status string) {
	statusChanges.WithLabelValues(status).Inc()
}

// IncCache records a cache "hit" or "miss".
func IncCache(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

func IncNotification(outcome string) {
	notificationsSent.WithLabelValues(outcome).Inc()
}
