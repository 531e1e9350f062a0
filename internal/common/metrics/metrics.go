// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobboard_http_request_duration_seconds",
			Help:    "Duration of HTTP request handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ApplicationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_application_transitions_total",
			Help: "Application status changes by source and target status",
		},
		[]string{"from", "to"},
	)

	JobStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_job_status_changes_total",
			Help: "Job status changes by target status",
		},
		[]string{"status"},
	)

	FeedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_feed_events_total",
			Help: "Change feed events received by operation",
		},
		[]string{"op"},
	)

	FeedEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobboard_feed_events_dropped_total",
			Help: "Change feed events dropped because a subscriber buffer was full",
		},
	)

	FeedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobboard_feed_subscribers",
			Help: "Number of active change feed subscriptions",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_notifications_total",
			Help: "Notifications attempted by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)
