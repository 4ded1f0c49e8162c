package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveDispatch("success", 1.2)
		m.ObserveBackendAttempt("r2", "success", 1024)
		m.ObserveRetry("single", "success")
		m.ObserveRetryBudgetBlocked()
	})
}

func TestNewRegistersAndRecordsObservations(t *testing.T) {
	m := New()

	assert.NotPanics(t, func() {
		m.ObserveDispatch("success", 0.5)
		m.ObserveDispatch("partial", 1.1)
		m.ObserveBackendAttempt("r2", "success", 2048)
		m.ObserveBackendAttempt("weibo", "credential_expired", 0)
		m.ObserveRetry("all", "success")
		m.ObserveRetryBudgetBlocked()
	})
}
