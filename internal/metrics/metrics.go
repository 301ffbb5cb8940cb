// Package metrics holds the prometheus collectors shared by the realtime
// and HTTP layers. Label sets are small and fixed so cardinality stays
// bounded no matter how many users connect.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes for live events.
const (
	OutcomeDelivered = "delivered"
	OutcomeOffline   = "offline"
	OutcomeDropped   = "dropped"
)

var (
	// OnlineConnections gauges handles currently held by the presence registry.
	OnlineConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatflow_online_connections",
		Help: "Connections currently registered as the active handle of a user.",
	})

	// MessagesSent counts messages persisted by the router.
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatflow_messages_sent_total",
		Help: "Messages persisted by the message router.",
	})

	// LiveEvents counts live pushes by event type and outcome.
	LiveEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatflow_live_events_total",
		Help: "Events pushed over live connections, by outcome.",
	}, []string{"event", "outcome"})

	// HTTPRequests counts requests by method, route pattern and status.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatflow_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})

	// HTTPDuration records request latency by method and route pattern.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatflow_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(OnlineConnections, MessagesSent, LiveEvents, HTTPRequests, HTTPDuration)
}

// RecordLive is a shorthand for LiveEvents.WithLabelValues(event, outcome).Inc().
func RecordLive(event, outcome string) {
	LiveEvents.WithLabelValues(event, outcome).Inc()
}
