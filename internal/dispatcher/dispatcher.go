// Package dispatcher implements per-file fan-out to selected backends with
// bounded concurrency, result aggregation, and primary-backend election.
// The bounded fan-out is grounded on the dispatchPool pattern
// (internal/sync/transfer.go), adapted so that, unlike that pool's
// fatal/skip-tier split, no sibling task is ever cancelled by another's
// failure — the dispatcher always waits for every backend to settle.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/picdock/engine/internal/backend"
	"github.com/picdock/engine/internal/linkformat"
	"github.com/picdock/engine/internal/metrics"
	"github.com/picdock/engine/internal/model"
)

// MaxConcurrentBackends is the hard cap on concurrent backend uploads per
// file, reflecting external rate limits — not a tunable.
const MaxConcurrentBackends = 3

// ProgressFunc receives per-backend progress as a byte count and total,
// tagged with the originating backend id.
type ProgressFunc func(backendID model.BackendID, progressBytes, totalBytes int64)

// Result is the outcome of one dispatch.
type Result struct {
	PrimaryBackend   model.BackendID
	PrimaryURL       string
	Results          []model.BackendAttempt
	IsPartialSuccess bool
	PartialFailures  []string
}

// Dispatcher fans a single file out to the enabled, validated backends for
// a dispatch.
type Dispatcher struct {
	registry *backend.Registry
	metrics  *metrics.Metrics
}

// New constructs a Dispatcher bound to registry, with metrics disabled.
func New(registry *backend.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// WithMetrics attaches a Metrics collector, returning d for chaining.
func (d *Dispatcher) WithMetrics(m *metrics.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// ErrNoEnabledBackend means the caller selected zero backends.
var ErrNoEnabledBackend = fmt.Errorf("dispatcher: no enabled backend")

// ErrNoConfiguredBackend means every selected backend failed validation.
var ErrNoConfiguredBackend = fmt.Errorf("dispatcher: no configured backend passed validation")

// Dispatch runs the algorithm in spec §4.3 against filePath for the ordered
// enabledBackends, using cfg for per-backend configuration. onProgress may
// be nil.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	filePath string,
	enabledBackends []model.BackendID,
	cfg model.UserConfig,
	onProgress ProgressFunc,
) (*Result, error) {
	start := time.Now()

	result, err := d.dispatch(ctx, filePath, enabledBackends, cfg, onProgress)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	} else if result.IsPartialSuccess {
		outcome = "partial"
	}

	d.metrics.ObserveDispatch(outcome, time.Since(start).Seconds())

	return result, err
}

func (d *Dispatcher) dispatch(
	ctx context.Context,
	filePath string,
	enabledBackends []model.BackendID,
	cfg model.UserConfig,
	onProgress ProgressFunc,
) (*Result, error) {
	if len(enabledBackends) == 0 {
		return nil, ErrNoEnabledBackend
	}

	instances, err := d.instantiate(enabledBackends, cfg)
	if err != nil {
		return nil, err
	}

	configured := filterValidated(instances, cfg)
	if len(configured) == 0 {
		return nil, ErrNoConfiguredBackend
	}

	bounded := configured
	if len(bounded) > MaxConcurrentBackends {
		bounded = bounded[:MaxConcurrentBackends]
	}

	attempts := d.fanOut(ctx, filePath, bounded, onProgress)

	return electPrimary(bounded, attempts, cfg)
}

type boundBackend struct {
	id  model.BackendID
	b   backend.IBackend
	cfg model.BackendConfig
}

func (d *Dispatcher) instantiate(ids []model.BackendID, cfg model.UserConfig) ([]boundBackend, error) {
	instances := make([]boundBackend, 0, len(ids))

	for _, id := range ids {
		b, err := d.registry.Create(id)
		if err != nil {
			return nil, fmt.Errorf("dispatcher: %w", err)
		}

		instances = append(instances, boundBackend{id: id, b: b, cfg: cfg.Backends[id]})
	}

	return instances, nil
}

// filterValidated drops backends whose config fails Validate, preserving
// input order.
func filterValidated(instances []boundBackend, cfg model.UserConfig) []boundBackend {
	kept := make([]boundBackend, 0, len(instances))

	for _, inst := range instances {
		if result := inst.b.Validate(inst.cfg); result.Valid {
			kept = append(kept, inst)
		}
	}

	return kept
}

// fanOut uploads to every bound backend concurrently (capped at
// MaxConcurrentBackends, already enforced by the caller truncating its
// input), waiting for all to settle regardless of individual outcome.
func (d *Dispatcher) fanOut(
	ctx context.Context, filePath string, bound []boundBackend, onProgress ProgressFunc,
) []model.BackendAttempt {
	attempts := make([]model.BackendAttempt, len(bound))

	var g errgroup.Group

	g.SetLimit(MaxConcurrentBackends)

	var mu sync.Mutex

	for i := range bound {
		idx := i
		inst := bound[i]

		g.Go(func() error {
			var sink func(progressBytes, totalBytes int64)
			if onProgress != nil {
				sink = func(progressBytes, totalBytes int64) {
					onProgress(inst.id, progressBytes, totalBytes)
				}
			}

			result, err := inst.b.Upload(ctx, inst.cfg, filePath, backend.UploadOptions{}, sink)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				attempts[idx] = model.BackendAttempt{BackendID: inst.id, Status: model.AttemptFailed, Error: err.Error()}
				d.metrics.ObserveBackendAttempt(string(inst.id), "failure", 0)

				return nil
			}

			attempts[idx] = model.BackendAttempt{BackendID: inst.id, Status: model.AttemptSuccess, Result: result}
			d.metrics.ObserveBackendAttempt(string(inst.id), "success", result.SizeBytes)

			return nil
		})
	}

	_ = g.Wait()

	return attempts
}

// electPrimary picks the first backend in input order that succeeded,
// synthesises its link, and builds the final Result. If none succeeded, it
// returns an aggregate error listing each backend's failure in order.
func electPrimary(bound []boundBackend, attempts []model.BackendAttempt, cfg model.UserConfig) (*Result, error) {
	for i, attempt := range attempts {
		if attempt.Status != model.AttemptSuccess {
			continue
		}

		canonical, err := bound[i].b.PublicURL(attempt.Result, bound[i].cfg)
		if err != nil {
			return nil, fmt.Errorf("dispatcher: synthesising link for %s: %w", attempt.BackendID, err)
		}

		finalURL, err := linkformat.Resolve(attempt.BackendID, canonical, cfg)
		if err != nil {
			return nil, fmt.Errorf("dispatcher: applying link-format rules for %s: %w", attempt.BackendID, err)
		}

		return &Result{
			PrimaryBackend:   attempt.BackendID,
			PrimaryURL:       finalURL,
			Results:          attempts,
			IsPartialSuccess: anyFailed(attempts),
			PartialFailures:  failureMessages(attempts),
		}, nil
	}

	return nil, aggregateError(attempts)
}

func anyFailed(attempts []model.BackendAttempt) bool {
	for _, a := range attempts {
		if a.Status == model.AttemptFailed {
			return true
		}
	}

	return false
}

func failureMessages(attempts []model.BackendAttempt) []string {
	var msgs []string

	for _, a := range attempts {
		if a.Status == model.AttemptFailed {
			msgs = append(msgs, fmt.Sprintf("%s: %s", a.BackendID, a.Error))
		}
	}

	return msgs
}

// aggregateError builds a multierr-joined error, in input order, when every
// backend failed.
func aggregateError(attempts []model.BackendAttempt) error {
	var err error

	for _, a := range attempts {
		err = multierr.Append(err, fmt.Errorf("%s: %s", a.BackendID, a.Error))
	}

	return fmt.Errorf("dispatcher: all backends failed: %w", err)
}
