package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/picdock/engine/internal/model"
)

// ValidationResult is the outcome of IBackend.Validate: pure, no I/O.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ConnectionResult is the outcome of IBackend.TestConnection: a cheap,
// bounded round-trip (≤10s) against the live backend.
type ConnectionResult struct {
	OK        bool
	LatencyMS int64
	Error     string
}

// UploadOptions carries per-upload parameters that are not part of the
// static backend configuration (destination key hints, content type).
type UploadOptions struct {
	// UploadID namespaces progress events so a caller can route them back
	// to the originating QueueItem.
	UploadID string
	// DestinationHint is an optional backend-suggested key/path (derived
	// upstream from file name + timestamp); backends may ignore it.
	DestinationHint string
}

// IBackend is the uniform contract every image-hosting backend implements.
// A concrete backend performs its own I/O (direct HTTP, AWS SDK calls) or
// delegates to the credential sidecar for browser-bound secrets; the
// dispatcher never knows which.
type IBackend interface {
	// ID returns the backend's identity.
	ID() model.BackendID

	// Validate checks config for required fields and format. Pure — no I/O.
	Validate(config model.BackendConfig) ValidationResult

	// TestConnection performs a cheap round-trip against the backend. Must
	// return within ctx's deadline; callers should bound ctx to ~10s.
	TestConnection(ctx context.Context, config model.BackendConfig) ConnectionResult

	// Upload streams path to the backend, invoking onProgress with a
	// monotonically non-decreasing byte count at least at file-open, at
	// least every 256KB or 10% of total size, and exactly once at 100% on
	// success. Returns a *Error on failure.
	Upload(ctx context.Context, config model.BackendConfig, path string, opts UploadOptions, onProgress func(progressBytes, totalBytes int64)) (*model.UploadResult, error)

	// PublicURL assembles the user-visible URL for a successful result.
	// Pure — no I/O. Proxy-prefix rules are layered on top by
	// internal/linkformat, not here; GitHub's CDN template substitution is
	// done by its own PublicURL.
	PublicURL(result *model.UploadResult, config model.BackendConfig) (string, error)
}

// Constructor builds a fresh IBackend instance. Registered constructors take
// no arguments because shared dependencies (HTTP client, logger, sidecar
// client) are closed over at registration time in internal/engine's
// wiring, not threaded through the registry itself.
type Constructor func() IBackend

// Registry is the process-wide, single-instance backend registry. The
// populated instance is built by internal/engine; this type is exported so
// tests can build an isolated registry instead of mutating shared state.
type Registry struct {
	mu    sync.RWMutex
	ctors map[model.BackendID]Constructor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[model.BackendID]Constructor)}
}

// Register records the constructor for id. Calling Register twice for the
// same id overwrites the prior constructor — used by tests to stub a
// backend; production wiring registers each id exactly once.
func (r *Registry) Register(id model.BackendID, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctors[id] = ctor
}

// ErrUnknownBackend is returned by Create for an unregistered id.
var ErrUnknownBackend = fmt.Errorf("backend: unknown backend id")

// Create constructs a fresh IBackend for id, or ErrUnknownBackend if id was
// never registered.
func (r *Registry) Create(id model.BackendID) (IBackend, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, id)
	}

	return ctor(), nil
}

// Registered reports whether id has a constructor, without constructing it.
func (r *Registry) Registered(id model.BackendID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.ctors[id]

	return ok
}
