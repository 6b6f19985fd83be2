package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VisitTransitions counts lifecycle transition attempts by action and
	// outcome (ok|invalid_transition|state_conflict|forbidden|not_found|error).
	VisitTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitdesk_visit_transitions_total",
			Help: "Total number of visit lifecycle transition attempts",
		},
		[]string{"action", "result"},
	)

	// NotificationSends counts per-channel notification delivery attempts and
	// their outcome (sent|failed).
	NotificationSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitdesk_notifications_sent_total",
			Help: "Total number of notification channel deliveries",
		},
		[]string{"channel", "result"},
	)

	// VisitsOnSite tracks visits currently in the CHECKED_IN state.
	VisitsOnSite = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visitdesk_visits_on_site",
			Help: "Number of visitors currently checked in",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visitdesk_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
