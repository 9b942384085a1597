// Package metrics exposes Prometheus instruments for the launcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launcher_transitions_total",
		Help: "Total number of session state transitions",
	}, []string{"from", "to"})

	sessionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launcher_session_errors_total",
		Help: "Total number of sessions that ended in the error state, by phase",
	}, []string{"kind"})

	provisioningRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launcher_provisioning_requests_total",
		Help: "Total number of bot server requests by operation and outcome",
	}, []string{"op", "outcome"})

	provisioningDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "launcher_provisioning_request_duration_seconds",
		Help:    "Bot server request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	gatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launcher_gateway_calls_total",
		Help: "Total number of real-time session gateway calls by operation and result",
	}, []string{"op", "result"})
)

// RecordTransition counts a state change.
func RecordTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

// RecordSessionError counts a terminal error by the phase that produced it.
func RecordSessionError(kind string) {
	sessionErrors.WithLabelValues(kind).Inc()
}

// ObserveProvisioning records one bot server call.
func ObserveProvisioning(op, outcome string, d time.Duration) {
	provisioningRequests.WithLabelValues(op, outcome).Inc()
	provisioningDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordGatewayCall counts one join, leave or destroy.
func RecordGatewayCall(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayCalls.WithLabelValues(op, result).Inc()
}
