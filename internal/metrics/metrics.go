package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "descansos",
			Name:      "reservation_created_total",
			Help:      "Count of break reservations created by shift.",
		},
		[]string{"shift"},
	)

	reservationRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "descansos",
			Name:      "reservation_rejected_total",
			Help:      "Count of admission rejections by reason.",
		},
		[]string{"reason"},
	)

	reservationDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "descansos",
			Name:      "reservation_deleted_total",
			Help:      "Count of reservations deleted by their owners.",
		},
	)

	replication = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "descansos",
			Name:      "replication_total",
			Help:      "Count of repeat-day projections by result.",
		},
		[]string{"result"},
	)

	remindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "descansos",
			Name:      "reminders_sent_total",
			Help:      "Count of break reminders delivered.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "descansos",
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationCreated, reservationRejected, reservationDeleted, replication, remindersSent, httpRequests)
	})
}

func IncReservationCreated(shift string) {
	reservationCreated.WithLabelValues(shift).Inc()
}

func IncReservationRejected(reason string) {
	reservationRejected.WithLabelValues(reason).Inc()
}

func IncReservationDeleted() {
	reservationDeleted.Inc()
}

func IncReplication(result string) {
	replication.WithLabelValues(result).Inc()
}

func IncReminderSent() {
	remindersSent.Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}
