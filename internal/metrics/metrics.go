// Package metrics declares the Prometheus instruments shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// --- Realtime broadcaster ---

var (
	BroadcasterActiveChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broadcaster_active_channels",
		Help: "Number of channels with at least one connected client",
	})

	BroadcasterConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broadcaster_connected_clients",
		Help: "Number of currently connected streaming clients",
	})

	BroadcasterEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcaster_events_total",
		Help: "Total events broadcast, by event type",
	}, []string{"type"})

	BroadcasterEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcaster_evictions_total",
		Help: "Clients evicted from the registry, by reason",
	}, []string{"reason"})

	BroadcasterCommandChannelDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broadcaster_command_channel_depth",
		Help: "Current depth of the broadcaster command channel",
	})

	BroadcasterPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcaster_panics_total",
		Help: "Panics recovered in the broadcaster actor loop",
	})

	BroadcasterStopTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcaster_stop_timeouts_total",
		Help: "Times broadcaster shutdown exceeded its timeout",
	})
)

// --- Streaming endpoint ---

var (
	StreamConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_connections_total",
		Help: "Streaming connection attempts, by outcome",
	}, []string{"outcome"})

	StreamHeartbeatFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_heartbeat_failures_total",
		Help: "Heartbeat frames that failed to write",
	})

	StreamConnectionsCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stream_connections_current",
		Help: "Currently open streaming connections across all endpoints",
	})
)

// --- Reconciliation ---

var (
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliations_total",
		Help: "Stock reconciliation runs, by trigger and outcome",
	}, []string{"trigger", "outcome"})

	ReconciliationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciliation_duration_seconds",
		Help:    "Duration of stock reconciliation runs",
		Buckets: prometheus.DefBuckets,
	})

	LowStockAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Low-stock alerts broadcast, by severity",
	}, []string{"severity"})
)

// --- Event publishing ---

var (
	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "event_publish_failures_total",
		Help: "Failed event publish attempts, by transport",
	}, []string{"transport"})

	PubSubMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubsub_messages_received_total",
		Help: "Pub/sub messages received, by channel",
	}, []string{"channel"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"component"})

	CircuitBreakerStateChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_state_changes_total",
		Help: "Circuit breaker state transitions, by resulting state",
	}, []string{"component", "state"})
)
