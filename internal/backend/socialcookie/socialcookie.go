// Package socialcookie implements the cookie-authenticated multipart IBackend
// variant shared by weibo, nowcoder, zhihu, bilibili, chaoxing and nami:
// multipart/form-data POST with a Cookie header, result parsing for a
// backend-native key, and CredentialExpired detection on 401/403 or a
// documented error code (weibo 100006).
package socialcookie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/picdock/engine/internal/backend"
	"github.com/picdock/engine/internal/catalogue"
	"github.com/picdock/engine/internal/model"
)

// requiredCookieFields lists the cookie fields whose presence Validate checks
// for, per backend. Absence of ANY required field fails validation.
var requiredCookieFields = map[model.BackendID][]string{
	model.BackendWeibo:    {"SUB"},
	model.BackendBilibili: {"SESSDATA", "bili_jct"},
	model.BackendNami:     {"Auth-Token"},
}

// Backend implements backend.IBackend for one cookie-authenticated social platform.
type Backend struct {
	id     model.BackendID
	client *backend.HTTPClient
}

// New constructs a socialcookie Backend for id, sharing httpClient across
// backends per spec §5 (single client, shared connection pool).
func New(id model.BackendID, httpClient *http.Client) *Backend {
	return &Backend{id: id, client: backend.NewHTTPClient(id, httpClient, nil)}
}

func (b *Backend) ID() model.BackendID { return b.id }

// Validate requires a non-empty cookie containing every required field for
// this backend (weibo needs SUB=, bilibili needs SESSDATA and bili_jct, etc).
func (b *Backend) Validate(config model.BackendConfig) backend.ValidationResult {
	if config.Cookie == nil || strings.TrimSpace(config.Cookie.Cookie) == "" {
		return backend.ValidationResult{Valid: false, Errors: []string{"cookie is required"}}
	}

	var errs []string

	for _, field := range requiredCookieFields[b.id] {
		if !strings.Contains(config.Cookie.Cookie, field+"=") && !strings.Contains(config.Cookie.Cookie, field+":") {
			errs = append(errs, fmt.Sprintf("cookie missing required field %q", field))
		}
	}

	return backend.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// TestConnection sends a HEAD request with the cookie to the upload
// endpoint, treating a 2xx response as a live cookie; any other final
// status (after the shared client's retries) is reported as a failure.
func (b *Backend) TestConnection(ctx context.Context, config model.BackendConfig) backend.ConnectionResult {
	endpoint, err := catalogue.SocialUploadEndpoint(string(b.id))
	if err != nil {
		return backend.ConnectionResult{OK: false, Error: err.Error()}
	}

	resp, err := b.client.Do(ctx, "test-connection", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Cookie", config.Cookie.Cookie)

		return req, nil
	})
	if err != nil {
		return backend.ConnectionResult{OK: false, Error: err.Error()}
	}

	defer resp.Body.Close()

	return backend.ConnectionResult{OK: true}
}

// Upload performs a multipart/form-data POST carrying the file and the
// Cookie header, parsing the response for a backend-native key.
func (b *Backend) Upload(
	ctx context.Context, config model.BackendConfig, path string, opts backend.UploadOptions,
	onProgress func(progressBytes, totalBytes int64),
) (*model.UploadResult, error) {
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

	bodyBuf, contentType, err := buildMultipart(f, filepath.Base(path))
	if err != nil {
		return nil, backend.NewProtocolError(b.id, err.Error())
	}

	progressed := backend.NewProgressReader(bodyBuf, int64(bodyBuf.Len()), onProgress)
	total := int64(bodyBuf.Len())

	resp, err := b.client.Do(ctx, "upload", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, progressed)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Cookie", config.Cookie.Cookie)
		req.ContentLength = total

		return req, nil
	})
	if err != nil {
		return nil, classifyUploadError(b.id, err)
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backend.NewProtocolError(b.id, "reading response: "+err.Error())
	}

	result, err := parseUploadResponse(b.id, raw)
	if err != nil {
		return nil, err
	}

	result.SizeBytes = info.Size()

	return result, nil
}

// classifyUploadError upgrades a generic backend.Error to CredentialExpired
// when the status matches this family's documented expiry signal (HTTP
// 401/403, heuristically treated as an expired cookie rather than bad auth).
func classifyUploadError(id model.BackendID, err error) error {
	var be *backend.Error
	if !errors.As(err, &be) {
		return err
	}

	if be.Kind == backend.KindAuthFailure {
		return backend.NewCredentialExpiredError(id, be.Message)
	}

	return be
}

func buildMultipart(r io.Reader, fileName string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", err
	}

	if _, err := io.Copy(part, r); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf, w.FormDataContentType(), nil
}

// uploadResponse is the superset of fields any backend in this family might
// return; only the fields relevant to the responding backend are populated.
type uploadResponse struct {
	Code int    `json:"code"`
	PID  string `json:"pid"`
	Data struct {
		PID string `json:"pic_id"`
		URL string `json:"url"`
	} `json:"data"`
	ImageURL string `json:"image_url"`
}

// weiboCredentialExpiredCode is weibo's documented "cookie expired" signal.
const weiboCredentialExpiredCode = 100006

func parseUploadResponse(id model.BackendID, raw []byte) (*model.UploadResult, error) {
	var resp uploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, backend.NewProtocolError(id, "unparseable response: "+string(raw))
	}

	if id == model.BackendWeibo && resp.Code == weiboCredentialExpiredCode {
		return nil, backend.NewCredentialExpiredError(id, "weibo cookie expired (code 100006)")
	}

	key := firstNonEmpty(resp.PID, resp.Data.PID)
	if key == "" {
		return nil, backend.NewProtocolError(id, "response missing image key: "+string(raw))
	}

	url := resp.ImageURL
	if url == "" {
		url = resp.Data.URL
	}

	return &model.UploadResult{BackendID: id, FileKey: key, URL: url}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}

// PublicURL assembles the CDN path for successful results. Weibo substitutes
// FileKey into the catalogue's pid template; other backends in this family
// use the URL the server already returned.
func (b *Backend) PublicURL(result *model.UploadResult, config model.BackendConfig) (string, error) {
	if b.id == model.BackendWeibo {
		tmpl, err := catalogue.WeiboCDNTemplate()
		if err != nil {
			return "", err
		}

		return strings.ReplaceAll(tmpl, "{pid}", result.FileKey), nil
	}

	if result.URL != "" {
		return result.URL, nil
	}

	return "", fmt.Errorf("socialcookie: %s: upload result has no URL", b.id)
}
