// Package retry implements two retry modes: targeted single-backend retry
// and full-record retry, both gated by a network precheck and a shared
// in-flight set that prevents a full retry and a single-backend retry for
// the same record from racing. Backoff math mirrors the
// exponential-with-jitter shape the Graph client uses for HTTP retries
// (internal/backend calcBackoff), re-parameterised to different full-retry
// constants (base 1s, max 30s, full jitter in [0, 0.5*delay] rather than
// ±25%).
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/picdock/engine/internal/backend"
	"github.com/picdock/engine/internal/dispatcher"
	"github.com/picdock/engine/internal/history"
	"github.com/picdock/engine/internal/metrics"
	"github.com/picdock/engine/internal/model"
)

// DefaultMaxRetries is the full-retry budget per record unless overridden.
const DefaultMaxRetries = 3

// Full-retry backoff constants: base 1s, max 30s, jitter up to half the
// computed delay — distinct from the HTTP-layer's ±25% jitter.
const (
	fullRetryBase = 1 * time.Second
	fullRetryMax  = 30 * time.Second
)

// ErrAlreadyInFlight is returned when a retry for the same scope is already running.
var ErrAlreadyInFlight = fmt.Errorf("retry: already in flight")

// ErrRetryBudgetExhausted is returned when retry_count >= max_retries.
var ErrRetryBudgetExhausted = fmt.Errorf("retry: retry budget exhausted")

// ErrNetworkUnavailable is returned when the precheck finds no reachable endpoint.
var ErrNetworkUnavailable = fmt.Errorf("retry: network unavailable")

// Prechecker performs the "at least one of several reliable endpoints
// answers within 2.5s" network check.
type Prechecker interface {
	Check(ctx context.Context) bool
}

// Manager coordinates retries against a history.Store and a dispatcher.Dispatcher.
type Manager struct {
	store      *history.Store
	dispatcher *dispatcher.Dispatcher
	registry   *backend.Registry
	precheck   Prechecker
	maxRetries int
	metrics    *metrics.Metrics

	mu              sync.Mutex
	inFlightRecord  map[string]bool
	inFlightBackend map[string]bool // key: recordID + "/" + backendID
}

// NewManager builds a Manager. maxRetries defaults to DefaultMaxRetries
// when 0.
func NewManager(store *history.Store, d *dispatcher.Dispatcher, registry *backend.Registry, precheck Prechecker, maxRetries int) *Manager {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Manager{
		store:           store,
		dispatcher:      d,
		registry:        registry,
		precheck:        precheck,
		maxRetries:      maxRetries,
		inFlightRecord:  make(map[string]bool),
		inFlightBackend: make(map[string]bool),
	}
}

// WithMetrics attaches a Metrics collector, returning m for chaining.
func (m *Manager) WithMetrics(mt *metrics.Metrics) *Manager {
	m.metrics = mt
	return m
}

func backendKey(recordID string, backendID model.BackendID) string {
	return recordID + "/" + string(backendID)
}

// RetrySingle retries exactly one backend for recordID.
func (m *Manager) RetrySingle(
	ctx context.Context, recordID string, backendID model.BackendID, filePath string, cfg model.UserConfig,
	onProgress func(progressBytes, totalBytes int64),
) error {
	if !m.precheckOK(ctx) {
		return ErrNetworkUnavailable
	}

	key := backendKey(recordID, backendID)

	m.mu.Lock()
	if m.inFlightRecord[recordID] || m.inFlightBackend[key] {
		m.mu.Unlock()
		return ErrAlreadyInFlight
	}

	m.inFlightBackend[key] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inFlightBackend, key)
		m.mu.Unlock()
	}()

	b, err := m.registry.Create(backendID)
	if err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	bcfg := cfg.Backends[backendID]

	result, uploadErr := b.Upload(ctx, bcfg, filePath, backend.UploadOptions{}, onProgress)

	var attempt model.BackendAttempt
	if uploadErr != nil {
		attempt = model.BackendAttempt{BackendID: backendID, Status: model.AttemptFailed, Error: uploadErr.Error()}
		m.metrics.ObserveRetry("single", "failure")
	} else {
		attempt = model.BackendAttempt{BackendID: backendID, Status: model.AttemptSuccess, Result: result}
		m.metrics.ObserveRetry("single", "success")
	}

	if err := m.store.UpdateBackendResult(ctx, recordID, attempt); err != nil {
		return fmt.Errorf("retry: patching history record: %w", err)
	}

	return uploadErr
}

// RetryAll re-dispatches every enabled backend for recordID, replacing the
// whole record's results.
func (m *Manager) RetryAll(
	ctx context.Context, recordID string, retryCount int, filePath string,
	enabledBackends []model.BackendID, cfg model.UserConfig,
	onProgress dispatcher.ProgressFunc,
) (*dispatcher.Result, error) {
	if !m.precheckOK(ctx) {
		return nil, ErrNetworkUnavailable
	}

	if retryCount >= m.maxRetries {
		m.metrics.ObserveRetryBudgetBlocked()
		return nil, ErrRetryBudgetExhausted
	}

	m.mu.Lock()
	if m.inFlightRecord[recordID] || m.anyBackendInFlight(recordID) {
		m.mu.Unlock()
		return nil, ErrAlreadyInFlight
	}

	m.inFlightRecord[recordID] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inFlightRecord, recordID)
		m.mu.Unlock()
	}()

	if err := sleepBackoff(ctx, retryCount); err != nil {
		return nil, err
	}

	result, err := m.dispatcher.Dispatch(ctx, filePath, enabledBackends, cfg, onProgress)
	if err != nil {
		m.metrics.ObserveRetry("all", "failure")
		return nil, err
	}

	m.metrics.ObserveRetry("all", "success")

	primary := result.PrimaryBackend

	patch := history.Patch{
		PrimaryBackend: &primary,
		Results:        result.Results,
		GeneratedLink:  &result.PrimaryURL,
	}

	if err := m.store.Update(ctx, recordID, patch); err != nil {
		return nil, fmt.Errorf("retry: replacing history record: %w", err)
	}

	return result, nil
}

// anyBackendInFlight reports whether any single-backend retry for recordID
// is currently running. Caller must hold m.mu.
func (m *Manager) anyBackendInFlight(recordID string) bool {
	prefix := recordID + "/"
	for key := range m.inFlightBackend {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			return true
		}
	}

	return false
}

func (m *Manager) precheckOK(ctx context.Context) bool {
	if m.precheck == nil {
		return true
	}

	return m.precheck.Check(ctx)
}

// calcFullRetryBackoff computes delay = min(BASE * 2^retryCount, MAX) +
// jitter∈[0, 0.5*delay].
func calcFullRetryBackoff(retryCount int) time.Duration {
	delay := float64(fullRetryBase) * math.Pow(2, float64(retryCount))
	if delay > float64(fullRetryMax) {
		delay = float64(fullRetryMax)
	}

	jitter := delay * 0.5 * rand.Float64() //nolint:gosec // jitter, not security sensitive

	return time.Duration(delay + jitter)
}

func sleepBackoff(ctx context.Context, retryCount int) error {
	d := calcFullRetryBackoff(retryCount)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
