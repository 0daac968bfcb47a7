// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_submitted_total",
			Help: "Total number of notification requests submitted",
		},
		[]string{"priority", "tier"},
	)

	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Total number of per-channel delivery attempts",
		},
		[]string{"channel", "outcome"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dispatch_duration_seconds",
			Help: "Duration of immediate dispatch fan-out in seconds",
		},
		[]string{"status"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Number of live realtime connections",
		},
	)

	RealtimeFanoutDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_fanout_delivered_total",
			Help: "Total number of payloads delivered over realtime connections",
		},
	)

	SchedulerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_queue_depth",
			Help: "Number of notifications waiting in a scheduler queue",
		},
		[]string{"queue"},
	)

	DigestsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digests_sent_total",
			Help: "Total number of digest notifications dispatched",
		},
		[]string{"cadence"},
	)
)
