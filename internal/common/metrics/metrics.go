// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavus_webhook_requests_total",
			Help: "Total number of webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	WebhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tavus_webhook_duration_seconds",
			Help:    "Duration of webhook handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ToolCallsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavus_tool_calls_parsed_total",
			Help: "Tool calls detected in webhook events",
		},
		[]string{"tool", "event_kind"},
	)

	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavus_dispatch_outcomes_total",
			Help: "Dispatcher results per tool",
		},
		[]string{"tool", "outcome"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demo_realtime_connections",
			Help: "Number of open demo websocket connections",
		},
	)
)
