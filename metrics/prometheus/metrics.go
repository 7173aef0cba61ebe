// Package prometheus provides Prometheus instruments and an HTTP exporter for
// PoseKit transports, dispatch and training sessions.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "posekit"

var (
	// connectsTotal counts connection attempts by outcome.
	connectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_connects_total",
			Help:      "Total number of transport connection attempts",
		},
		[]string{"result"}, // result: success, error
	)

	// reconnectAttemptsTotal counts scheduled reconnects.
	reconnectAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_reconnect_attempts_total",
			Help:      "Total number of scheduled reconnect attempts",
		},
	)

	// reconnectGiveUpsTotal counts how often the reconnect cap was hit.
	reconnectGiveUpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_reconnect_give_ups_total",
			Help:      "Total number of times reconnection stopped at the attempt cap",
		},
	)

	messagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_messages_received_total",
			Help:      "Total number of inbound messages by type",
		},
		[]string{"type"},
	)

	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_messages_sent_total",
			Help:      "Total number of outbound messages by type",
		},
		[]string{"type"},
	)

	messagesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_messages_dropped_total",
			Help:      "Total number of dropped messages by reason",
		},
		[]string{"reason"}, // reason: malformed, not_open, encode
	)

	handlerPanicsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_handler_panics_total",
			Help:      "Total number of recovered dispatch handler panics",
		},
		[]string{"type"},
	)

	// sessionActive is 1 while a session of the given mode runs.
	sessionActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_active",
			Help:      "Whether a training session is active, by mode",
		},
		[]string{"mode"}, // mode: live, demo
	)

	sessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Total number of session state transitions",
		},
		[]string{"from", "to"},
	)

	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of training session duration in seconds",
			Buckets:   []float64{10, 30, 60, 300, 600, 1200, 1800, 3600, 7200},
		},
		[]string{"mode"},
	)

	restRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rest_request_duration_seconds",
			Help:      "Duration of REST collaborator calls in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	restRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rest_requests_total",
			Help:      "Total number of REST collaborator calls",
		},
		[]string{"operation", "status"}, // status: success, error, unauthorized
	)

	relayPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_published_total",
			Help:      "Total number of envelopes mirrored to the relay",
		},
		[]string{"status"}, // status: success, error
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		connectsTotal,
		reconnectAttemptsTotal,
		reconnectGiveUpsTotal,
		messagesReceivedTotal,
		messagesSentTotal,
		messagesDroppedTotal,
		handlerPanicsTotal,
		sessionActive,
		sessionTransitionsTotal,
		sessionDuration,
		restRequestDuration,
		restRequestsTotal,
		relayPublishedTotal,
	}
)

// RecordConnect records a connection attempt outcome.
func RecordConnect(result string) {
	connectsTotal.WithLabelValues(result).Inc()
}

// RecordReconnectAttempt records a scheduled reconnect.
func RecordReconnectAttempt() {
	reconnectAttemptsTotal.Inc()
}

// RecordReconnectGiveUp records that the attempt cap was reached.
func RecordReconnectGiveUp() {
	reconnectGiveUpsTotal.Inc()
}

// RecordMessageReceived records an inbound message of the given type.
func RecordMessageReceived(msgType string) {
	messagesReceivedTotal.WithLabelValues(msgType).Inc()
}

// RecordMessageSent records an outbound message of the given type.
func RecordMessageSent(msgType string) {
	messagesSentTotal.WithLabelValues(msgType).Inc()
}

// RecordMessageDropped records a dropped message.
func RecordMessageDropped(reason string) {
	messagesDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordHandlerPanic records a recovered handler panic.
func RecordHandlerPanic(msgType string) {
	handlerPanicsTotal.WithLabelValues(msgType).Inc()
}

// RecordSessionStart marks a session of mode as active.
func RecordSessionStart(mode string) {
	sessionActive.WithLabelValues(mode).Set(1)
	sessionTransitionsTotal.WithLabelValues("idle", mode).Inc()
}

// RecordSessionEnd marks a session of mode as finished.
func RecordSessionEnd(mode string, durationSeconds float64) {
	sessionActive.WithLabelValues(mode).Set(0)
	sessionTransitionsTotal.WithLabelValues(mode, "idle").Inc()
	if durationSeconds > 0 {
		sessionDuration.WithLabelValues(mode).Observe(durationSeconds)
	}
}

// RecordRESTRequest records a REST collaborator call.
func RecordRESTRequest(operation, status string, durationSeconds float64) {
	restRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
	restRequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRelayPublish records a relay publish outcome.
func RecordRelayPublish(status string) {
	relayPublishedTotal.WithLabelValues(status).Inc()
}
