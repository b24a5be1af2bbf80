package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockevents_events_total",
			Help: "Container events processed, by pipeline outcome.",
		},
		[]string{"outcome"},
	)
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockevents_notifications_total",
			Help: "Notification send attempts by transport and status.",
		},
		[]string{"transport", "status"},
	)
	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dockevents_notification_duration_seconds",
			Help:    "Duration of notification transport requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"transport"},
	)
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockevents_store_errors_total",
			Help: "Counter store failures by operation.",
		},
		[]string{"op"},
	)
	CountersFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dockevents_counters_flushed_total",
			Help: "Rate-limit counters removed by retention flushes.",
		},
	)
)
