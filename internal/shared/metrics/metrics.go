package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostly_booking_transitions_total",
			Help: "Booking state machine transitions by target status",
		},
		[]string{"status"},
	)

	CapacityRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hostly_capacity_rejections_total",
			Help: "Reservations rejected for insufficient capacity",
		},
	)

	ReleaseUnderflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hostly_release_underflows_total",
			Help: "Ledger releases clamped because held would go negative",
		},
	)

	WaitlistEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostly_waitlist_transitions_total",
			Help: "Waitlist entry transitions by target status",
		},
		[]string{"status"},
	)

	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostly_sweep_runs_total",
			Help: "Reconciliation sweeps by outcome",
		},
		[]string{"outcome"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hostly_sweep_duration_seconds",
			Help:    "Duration of reconciliation sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostly_notifications_total",
			Help: "Notification delivery attempts by type and result",
		},
		[]string{"type", "result"},
	)

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostly_reminders_sent_total",
			Help: "Event reminders sent by lead time",
		},
		[]string{"kind"},
	)
)
