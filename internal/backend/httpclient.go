package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/picdock/engine/internal/model"
)

// Retry tuning, grounded on the same constants the teacher used for its
// Graph client: base 1s, factor 2x, max 60s, ±25% jitter, 5 retries
// (up to 6 attempts in all).
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// HTTPClient is a generic retrying HTTP client shared by every backend
// family that speaks plain HTTP (s3family, socialcookie, tokenauth,
// gitcontent). Unlike the Graph client it does not own authentication —
// callers attach their own headers per request via RequestBuilder.
type HTTPClient struct {
	id         model.BackendID
	httpClient *http.Client
	logger     *slog.Logger

	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient builds an HTTPClient for the named backend. A nil
// http.Client defaults to http.DefaultClient; a nil logger defaults to
// slog.Default().
func NewHTTPClient(id model.BackendID, httpClient *http.Client, logger *slog.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPClient{
		id:         id,
		httpClient: httpClient,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// RequestBuilder constructs a fresh *http.Request on each attempt, so a
// seekable body (bytes.NewReader, a reopened os.File) can be rewound for
// retries without the client needing to know the body's shape.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Do executes build with retry on network errors and retryable HTTP status
// codes (408, 429, 500, 502, 503, 504). On success (2xx) it returns the response for the
// caller to read and close. On exhaustion or a non-retryable status it
// returns a *Error classified by status code.
func (c *HTTPClient) Do(ctx context.Context, desc string, build RequestBuilder) (*http.Response, error) {
	var attempt int

	for {
		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("backend %s: building %s request: %w", c.id, desc, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &Error{Kind: KindCancelled, BackendID: c.id, Cause: ctx.Err()}
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("backend", string(c.id)),
					slog.String("desc", desc),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, &Error{Kind: KindCancelled, BackendID: c.id, Cause: sleepErr}
				}

				attempt++

				continue
			}

			return nil, &Error{
				Kind: KindNetworkUnavailable, BackendID: c.id,
				Message: fmt.Sprintf("%s failed after %d retries: %v", desc, maxRetries, err),
			}
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryableStatus(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("backend", string(c.id)),
				slog.String("desc", desc),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, &Error{Kind: KindCancelled, BackendID: c.id, Cause: err}
			}

			attempt++

			continue
		}

		return nil, c.terminalError(desc, resp.StatusCode, errBody, attempt)
	}
}

// terminalError classifies a final, non-retried HTTP status into the
// backend error taxonomy.
func (c *HTTPClient) terminalError(desc string, status int, body []byte, attempt int) *Error {
	kind := KindBackendProtocol

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuthFailure
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	}

	if attempt > 0 {
		c.logger.Error("request failed after retries",
			slog.String("backend", string(c.id)),
			slog.String("desc", desc),
			slog.Int("status", status),
			slog.Int("attempts", attempt+1),
		)
	} else {
		c.logger.Warn("request failed",
			slog.String("backend", string(c.id)),
			slog.String("desc", desc),
			slog.Int("status", status),
		)
	}

	return &Error{
		Kind:      kind,
		BackendID: c.id,
		Message:   fmt.Sprintf("HTTP %d: %s", status, string(body)),
	}
}

// retryBackoff honors a Retry-After header on 429s, falling back to
// calculated backoff otherwise.
func (c *HTTPClient) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *HTTPClient) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter, not security sensitive
	backoff += jitter

	return time.Duration(backoff)
}

// isRetryableStatus reports whether status should trigger a retry.
func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// timeSleep waits for d or until ctx is done, whichever comes first. It is
// the default sleepFunc; tests override sleepFunc to skip real delays.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
