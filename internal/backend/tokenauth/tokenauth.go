// Package tokenauth implements the token-acquired IBackend variant (qiyu):
// the plugin depends on a token obtained from the credential sidecar rather
// than a static credential, requesting a fresh one each upload unless a
// cached, unexpired token is available (spec §4.1/§4.4).
package tokenauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/picdock/engine/internal/backend"
	"github.com/picdock/engine/internal/catalogue"
	"github.com/picdock/engine/internal/model"
)

// TokenFetcher acquires a fresh upload token for a backend, delegating to
// the credential sidecar (internal/sidecar.Client.FetchToken).
type TokenFetcher interface {
	FetchToken(ctx context.Context, id model.BackendID, config model.BackendConfig) (token string, expiresMs int64, err error)
}

// cachedToken is an in-memory, process-lifetime cache entry.
type cachedToken struct {
	token     string
	expiresMs int64
}

func (c cachedToken) valid() bool {
	return c.token != "" && c.expiresMs > time.Now().UnixMilli()
}

// Backend implements backend.IBackend for qiyu, the sole token-acquired
// backend in the closed enumeration.
type Backend struct {
	id      model.BackendID
	client  *backend.HTTPClient
	fetcher TokenFetcher

	mu    sync.Mutex
	cache map[model.BackendID]cachedToken
}

// New constructs a tokenauth Backend. fetcher is typically a
// *sidecar.Client adapted to the TokenFetcher interface.
func New(id model.BackendID, httpClient *http.Client, fetcher TokenFetcher) *Backend {
	return &Backend{
		id:      id,
		client:  backend.NewHTTPClient(id, httpClient, nil),
		fetcher: fetcher,
		cache:   make(map[model.BackendID]cachedToken),
	}
}

func (b *Backend) ID() model.BackendID { return b.id }

// Validate requires no static credential — the token is sidecar-acquired —
// but rejects a cached Token entry that carries an expiry (ExpiresMs set)
// with an empty AuthToken, matching spec §4.1's "nami must have non-empty
// auth token" rule generalized to this family. A Token entry with neither
// field set is accepted.
func (b *Backend) Validate(config model.BackendConfig) backend.ValidationResult {
	if config.Token != nil && config.Token.AuthToken == "" && config.Token.ExpiresMs != 0 {
		return backend.ValidationResult{Valid: false, Errors: []string{"auth_token is empty"}}
	}

	return backend.ValidationResult{Valid: true}
}

func (b *Backend) tokenFor(ctx context.Context, config model.BackendConfig) (string, error) {
	b.mu.Lock()
	cached, ok := b.cache[b.id]
	b.mu.Unlock()

	if ok && cached.valid() {
		return cached.token, nil
	}

	if config.Token != nil && config.Token.AuthToken != "" && config.Token.ExpiresMs > time.Now().UnixMilli() {
		b.mu.Lock()
		b.cache[b.id] = cachedToken{token: config.Token.AuthToken, expiresMs: config.Token.ExpiresMs}
		b.mu.Unlock()

		return config.Token.AuthToken, nil
	}

	token, expiresMs, err := b.fetcher.FetchToken(ctx, b.id, config)
	if err != nil {
		return "", backend.NewCredentialExpiredError(b.id, "fetching token: "+err.Error())
	}

	b.mu.Lock()
	b.cache[b.id] = cachedToken{token: token, expiresMs: expiresMs}
	b.mu.Unlock()

	return token, nil
}

// TestConnection acquires a token (forcing sidecar round-trip if
// necessary) as its round-trip probe.
func (b *Backend) TestConnection(ctx context.Context, config model.BackendConfig) backend.ConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()

	_, err := b.tokenFor(ctx, config)
	latency := time.Since(start)

	if err != nil {
		return backend.ConnectionResult{OK: false, LatencyMS: latency.Milliseconds(), Error: err.Error()}
	}

	return backend.ConnectionResult{OK: true, LatencyMS: latency.Milliseconds()}
}

// Upload acquires a token then performs the same multipart POST shape as
// socialcookie, substituting an Authorization bearer header for the Cookie
// header.
func (b *Backend) Upload(
	ctx context.Context, config model.BackendConfig, path string, opts backend.UploadOptions,
	onProgress func(progressBytes, totalBytes int64),
) (*model.UploadResult, error) {
	token, err := b.tokenFor(ctx, config)
	if err != nil {
		return nil, err
	}

	endpoint, err := catalogue.SocialUploadEndpoint(string(b.id))
	if err != nil {
		return nil, backend.NewProtocolError(b.id, err.Error())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindFileSystem, Op: "open", Path: path, Cause: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindFileSystem, Op: "stat", Path: path, Cause: err}
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, backend.NewProtocolError(b.id, err.Error())
	}

	if _, err := io.Copy(part, f); err != nil {
		return nil, backend.NewProtocolError(b.id, err.Error())
	}

	if err := w.Close(); err != nil {
		return nil, backend.NewProtocolError(b.id, err.Error())
	}

	progressed := backend.NewProgressReader(buf, int64(buf.Len()), onProgress)
	total := int64(buf.Len())

	resp, err := b.client.Do(ctx, "upload", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, progressed)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		req.ContentLength = total

		return req, nil
	})
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backend.NewProtocolError(b.id, "reading response: "+err.Error())
	}

	var parsed struct {
		Key string `json:"key"`
		URL string `json:"url"`
	}

	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Key == "" {
		return nil, backend.NewProtocolError(b.id, "unparseable response: "+string(raw))
	}

	return &model.UploadResult{
		BackendID: b.id,
		FileKey:   parsed.Key,
		URL:       parsed.URL,
		SizeBytes: info.Size(),
	}, nil
}

// PublicURL returns the URL embedded in the upload result; this family's
// server response already carries a directly fetchable URL.
func (b *Backend) PublicURL(result *model.UploadResult, config model.BackendConfig) (string, error) {
	if result.URL == "" {
		return "", fmt.Errorf("tokenauth: %s: upload result has no URL", b.id)
	}

	return result.URL, nil
}
