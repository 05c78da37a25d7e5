package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PointsAwarded counts gamification point grants by action kind.
	PointsAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazardwatch_points_awarded_total",
			Help: "Total points awarded, labelled by action",
		},
		[]string{"action"},
	)

	// BadgesGranted counts badge unlocks by badge name.
	BadgesGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazardwatch_badges_granted_total",
			Help: "Total badges granted",
		},
		[]string{"badge"},
	)

	// NotificationsCreated counts persisted notification records by type.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazardwatch_notifications_created_total",
			Help: "Total notification records created",
		},
		[]string{"type"},
	)

	// AlertsDispatched counts alert fan-out invocations by trigger (report_created|mass_alert).
	AlertsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazardwatch_alerts_dispatched_total",
			Help: "Total alert dispatch operations",
		},
		[]string{"trigger"},
	)

	// ConnectedClients tracks live websocket sessions.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hazardwatch_realtime_clients",
			Help: "Number of connected realtime sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hazardwatch_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
