// Package sidecar implements the credential-acquisition contract (spec §4.4):
// a line-based JSON protocol to an out-of-process browser-automation helper
// (cmd/fetcher) for backends that reject headless HTTP clients, plus an
// in-process webview cookie-jar watcher for cookie-only backends. The
// process invocation shape is grounded on the teacher's tokenfile.go atomic
// write discipline for the token cache and its process-exec conventions
// elsewhere in the tree.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/picdock/engine/internal/model"
)

// InvocationTimeout bounds every sidecar process invocation (spec §4.4/§5).
const InvocationTimeout = 30 * time.Second

// BrowserInfo is the result of check_browser.
type BrowserInfo struct {
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
	Name      string `json:"name,omitempty"`
}

// TokenResult is the result of fetch_token.
type TokenResult struct {
	Token     string `json:"token"`
	ExpiresMs int64  `json:"expires_ms"`
}

// CookieResult is the result of fetch_cookie.
type CookieResult struct {
	CookieString string `json:"cookie_string"`
}

// envelope is the sidecar's stdout shape: {success, data|error}.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client drives the cmd/fetcher binary as a subprocess per invocation. It
// holds no state between calls — browser automation and its temp files are
// entirely owned by the child process, which must clean up on every exit
// path.
type Client struct {
	// BinaryPath is the path to the fetcher executable. Defaults to
	// "fetcher" (resolved via PATH) if empty.
	BinaryPath string

	// runCommand executes the sidecar and returns its raw stdout. Overridable
	// in tests to avoid spawning a real process.
	runCommand func(ctx context.Context, binary string, args []string) ([]byte, error)
}

// NewClient returns a Client invoking the fetcher binary at binaryPath (or
// "fetcher" on PATH if empty).
func NewClient(binaryPath string) *Client {
	return &Client{BinaryPath: binaryPath, runCommand: execCommand}
}

func execCommand(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("sidecar: running %s %v: %w", binary, args, err)
	}

	return stdout.Bytes(), nil
}

func (c *Client) binary() string {
	if c.BinaryPath != "" {
		return c.BinaryPath
	}

	return "fetcher"
}

func (c *Client) invoke(ctx context.Context, args []string) (envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, InvocationTimeout)
	defer cancel()

	out, err := c.runCommand(ctx, c.binary(), args)
	if err != nil {
		return envelope{}, fmt.Errorf("sidecar: invocation failed: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(out, &env); err != nil {
		return envelope{}, fmt.Errorf("sidecar: unparseable response: %w", err)
	}

	return env, nil
}

// CheckBrowser probes well-known install paths for a controllable browser.
func (c *Client) CheckBrowser(ctx context.Context) (BrowserInfo, error) {
	env, err := c.invoke(ctx, []string{"check-chrome"})
	if err != nil {
		return BrowserInfo{}, err
	}

	if !env.Success {
		return BrowserInfo{}, fmt.Errorf("sidecar: check_browser: %s", env.Error)
	}

	var info BrowserInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		return BrowserInfo{}, fmt.Errorf("sidecar: decoding check_browser result: %w", err)
	}

	return info, nil
}

// FetchToken drives a controlled upload of a synthetic 1x1 PNG to sniff the
// upload token for id, given its BackendConfig as the arguments.
func (c *Client) FetchToken(ctx context.Context, id model.BackendID, config model.BackendConfig) (TokenResult, error) {
	payload, err := json.Marshal(config)
	if err != nil {
		return TokenResult{}, fmt.Errorf("sidecar: encoding config: %w", err)
	}

	env, err := c.invoke(ctx, []string{"fetch-token", string(id), string(payload)})
	if err != nil {
		return TokenResult{}, err
	}

	if !env.Success {
		return TokenResult{}, fmt.Errorf("sidecar: fetch_token(%s): %s", id, env.Error)
	}

	var result TokenResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return TokenResult{}, fmt.Errorf("sidecar: decoding fetch_token result: %w", err)
	}

	return result, nil
}

// FetchCookie drives a controlled navigation to site and returns the
// resulting cookie string.
func (c *Client) FetchCookie(ctx context.Context, site string) (CookieResult, error) {
	env, err := c.invoke(ctx, []string{"fetch-cookie", site})
	if err != nil {
		return CookieResult{}, err
	}

	if !env.Success {
		return CookieResult{}, fmt.Errorf("sidecar: fetch_cookie(%s): %s", site, env.Error)
	}

	var result CookieResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return CookieResult{}, fmt.Errorf("sidecar: decoding fetch_cookie result: %w", err)
	}

	return result, nil
}
