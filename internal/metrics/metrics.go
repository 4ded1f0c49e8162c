// Package metrics exposes Prometheus collectors for the dispatcher and
// retry subsystem, grouped the same way ximen-s3proxy's backend package
// groups its per-backend request/latency/byte counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the engine registers. A nil *Metrics is
// valid and every method on it is a no-op, so callers that do not wire
// metrics (tests, the sidecar binary) never need a guard.
type Metrics struct {
	DispatchDuration   *prometheus.HistogramVec
	BackendAttempts    *prometheus.CounterVec
	BackendBytesSent   *prometheus.CounterVec
	RetryAttemptsTotal *prometheus.CounterVec
	RetryBudgetBlocked prometheus.Counter
}

// New registers and returns a Metrics using the default registerer.
func New() *Metrics {
	return &Metrics{
		DispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "picdock_dispatch_duration_seconds",
				Help:    "Time to fan out and settle all backends for one upload.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		BackendAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "picdock_backend_attempts_total",
				Help: "Upload attempts per backend, labeled by outcome.",
			},
			[]string{"backend", "outcome"},
		),
		BackendBytesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "picdock_backend_bytes_sent_total",
				Help: "Bytes uploaded per backend.",
			},
			[]string{"backend"},
		),
		RetryAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "picdock_retry_attempts_total",
				Help: "Retry invocations, labeled by mode (single/all) and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		RetryBudgetBlocked: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "picdock_retry_budget_blocked_total",
				Help: "Full retries rejected because the per-record retry budget was exhausted.",
			},
		),
	}
}

// ObserveDispatch records a completed dispatch's wall-clock duration.
func (m *Metrics) ObserveDispatch(outcome string, seconds float64) {
	if m == nil {
		return
	}

	m.DispatchDuration.WithLabelValues(outcome).Observe(seconds)
}

// ObserveBackendAttempt records one backend's upload outcome and byte count.
func (m *Metrics) ObserveBackendAttempt(backendID, outcome string, bytesSent int64) {
	if m == nil {
		return
	}

	m.BackendAttempts.WithLabelValues(backendID, outcome).Inc()

	if bytesSent > 0 {
		m.BackendBytesSent.WithLabelValues(backendID).Add(float64(bytesSent))
	}
}

// ObserveRetry records a retry invocation's mode and outcome.
func (m *Metrics) ObserveRetry(mode, outcome string) {
	if m == nil {
		return
	}

	m.RetryAttemptsTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveRetryBudgetBlocked records a full retry rejected by the budget check.
func (m *Metrics) ObserveRetryBudgetBlocked() {
	if m == nil {
		return
	}

	m.RetryBudgetBlocked.Inc()
}
