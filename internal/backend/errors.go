// Package backend defines the uniform IBackend contract every image-hosting
// backend implements (validate, upload, public-url synthesis, connection
// test), the process-wide registry that constructs them by BackendID, and a
// shared retrying HTTP client used by the backend families that speak plain
// HTTP (internal/backend/s3family, socialcookie, tokenauth, gitcontent).
package backend

import (
	"errors"
	"fmt"

	"github.com/picdock/engine/internal/model"
)

// Kind classifies an Error for retry-recoverability decisions (§7).
type Kind int

const (
	KindUnknown Kind = iota
	KindNoEnabledBackend
	KindNoConfiguredBackend
	KindCredentialExpired
	KindAuthFailure
	KindNetworkUnavailable
	KindTimeout
	KindBackendProtocol
	KindRateLimited
	KindFileSystem
	KindCancelled
)

// Sentinel errors for errors.Is-based classification, mirroring the
// graph.GraphError sentinel pattern the teacher uses for HTTP status codes,
// generalized here to the full taxonomy in spec §7.
var (
	ErrNoEnabledBackend    = errors.New("backend: no enabled backend")
	ErrNoConfiguredBackend = errors.New("backend: no configured backend passed validation")
	ErrCredentialExpired   = errors.New("backend: credential expired")
	ErrAuthFailure         = errors.New("backend: authentication failed")
	ErrNetworkUnavailable  = errors.New("backend: network unavailable")
	ErrTimeout             = errors.New("backend: timeout")
	ErrBackendProtocol     = errors.New("backend: unexpected protocol response")
	ErrRateLimited         = errors.New("backend: rate limited")
	ErrFileSystem          = errors.New("backend: filesystem error")
	ErrCancelled           = errors.New("backend: cancelled")
)

// Stage names a blocking phase for Timeout errors.
type Stage string

const (
	StageConnect Stage = "connect"
	StageRequest Stage = "request"
	StageSidecar Stage = "sidecar"
)

// Error is the single error type every backend and the dispatcher return.
// It wraps one of the sentinels above (via Unwrap, so errors.Is works) and
// carries the context needed to build an actionable message.
type Error struct {
	Kind       Kind
	BackendID  model.BackendID
	Message    string
	Stage      Stage  // set when Kind == KindTimeout
	RetryAfter int64  // ms, set when Kind == KindRateLimited and known
	Op, Path   string // set when Kind == KindFileSystem
	Cause      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindCredentialExpired:
		return fmt.Sprintf("backend %s: credential expired: %s", e.BackendID, e.Message)
	case KindAuthFailure:
		return fmt.Sprintf("backend %s: auth failure: %s", e.BackendID, e.Message)
	case KindTimeout:
		return fmt.Sprintf("backend %s: timeout during %s", e.BackendID, e.Stage)
	case KindBackendProtocol:
		return fmt.Sprintf("backend %s: protocol error: %s", e.BackendID, e.Message)
	case KindRateLimited:
		return fmt.Sprintf("backend %s: rate limited (retry after %dms)", e.BackendID, e.RetryAfter)
	case KindFileSystem:
		return fmt.Sprintf("backend: filesystem %s %s: %v", e.Op, e.Path, e.Cause)
	case KindNoEnabledBackend:
		return "no backend selected for dispatch"
	case KindNoConfiguredBackend:
		return "no selected backend passed configuration validation"
	case KindCancelled:
		return fmt.Sprintf("backend %s: cancelled", e.BackendID)
	default:
		if e.Message != "" {
			return fmt.Sprintf("backend %s: %s", e.BackendID, e.Message)
		}

		return "backend: unknown error"
	}
}

// Unwrap exposes the matching sentinel so errors.Is(err, backend.ErrX) works
// regardless of the wrapping Error's other fields.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindNoEnabledBackend:
		return ErrNoEnabledBackend
	case KindNoConfiguredBackend:
		return ErrNoConfiguredBackend
	case KindCredentialExpired:
		return ErrCredentialExpired
	case KindAuthFailure:
		return ErrAuthFailure
	case KindNetworkUnavailable:
		return ErrNetworkUnavailable
	case KindTimeout:
		return ErrTimeout
	case KindBackendProtocol:
		return ErrBackendProtocol
	case KindRateLimited:
		return ErrRateLimited
	case KindFileSystem:
		return ErrFileSystem
	case KindCancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// Recoverable reports whether a retry subsystem should attempt this backend
// again. Per §7: CredentialExpired, AuthFailure, and FileSystem{not-found}
// are non-recoverable; everything else is.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindCredentialExpired, KindAuthFailure:
		return false
	case KindFileSystem:
		return e.Op != "not-found"
	default:
		return true
	}
}

// NewProtocolError builds a KindBackendProtocol error.
func NewProtocolError(id model.BackendID, message string) *Error {
	return &Error{Kind: KindBackendProtocol, BackendID: id, Message: message}
}

// NewCredentialExpiredError builds a KindCredentialExpired error.
func NewCredentialExpiredError(id model.BackendID, message string) *Error {
	return &Error{Kind: KindCredentialExpired, BackendID: id, Message: message}
}

// NewTimeoutError builds a KindTimeout error.
func NewTimeoutError(id model.BackendID, stage Stage) *Error {
	return &Error{Kind: KindTimeout, BackendID: id, Stage: stage}
}
