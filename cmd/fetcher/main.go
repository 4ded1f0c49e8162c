// Command fetcher is the out-of-process credential-acquisition helper
// invoked as "fetcher <command> [args]": it prints one JSON envelope to
// stdout and exits 0 on success or 1 on failure. It is the producer side
// of the contract internal/sidecar.Client consumes.
//
// Commands:
//
//	check-chrome               -> {installed, path?, name?}
//	fetch-token <id> <config>  -> {token, expires_ms}
//	fetch-cookie <site>        -> failure envelope; no browser-automation
//	                              driver is wired for cookie capture, so no
//	                              cookie_string is ever returned
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/picdock/engine/internal/model"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		return emit(envelope{Success: false, Error: "fetcher: missing command"})
	}

	switch args[0] {
	case "check-chrome":
		return emit(checkChrome())
	case "fetch-token":
		return emit(fetchToken(args[1:]))
	case "fetch-cookie":
		return emit(fetchCookie(args[1:]))
	default:
		return emit(envelope{Success: false, Error: fmt.Sprintf("fetcher: unknown command %q", args[0])})
	}
}

func emit(env envelope) int {
	out, err := json.Marshal(env)
	if err != nil {
		fmt.Fprintln(os.Stdout, `{"success":false,"error":"fetcher: encoding response"}`)
		return 1
	}

	fmt.Fprintln(os.Stdout, string(out))

	if env.Success {
		return 0
	}

	return 1
}

// chromeCandidatePaths lists well-known controllable-browser install
// locations checked in order; the first that exists wins.
var chromeCandidatePaths = []struct {
	path string
	name string
}{
	{"/usr/bin/google-chrome", "Google Chrome"},
	{"/usr/bin/chromium-browser", "Chromium"},
	{"/usr/bin/chromium", "Chromium"},
	{"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome", "Google Chrome"},
	{`C:\Program Files\Google\Chrome\Application\chrome.exe`, "Google Chrome"},
}

func checkChrome() envelope {
	for _, candidate := range chromeCandidatePaths {
		if info, err := os.Stat(candidate.path); err == nil && !info.IsDir() {
			return envelope{Success: true, Data: map[string]any{
				"installed": true,
				"path":      candidate.path,
				"name":      candidate.name,
			}}
		}
	}

	return envelope{Success: true, Data: map[string]any{"installed": false}}
}

func fetchToken(args []string) envelope {
	if len(args) < 2 {
		return envelope{Success: false, Error: "fetcher: fetch-token requires <id> <config>"}
	}

	id := model.BackendID(args[0])

	var cfg model.BackendConfig
	if err := json.Unmarshal([]byte(args[1]), &cfg); err != nil {
		return envelope{Success: false, Error: fmt.Sprintf("fetcher: decoding config for %s: %v", id, err)}
	}

	// A driver process (out of scope here) launches the controlled browser,
	// navigates it through a synthetic 1x1 PNG upload against the backend,
	// and exports the resulting page's DevTools WebSocket URL through
	// devToolsWSEnv. This binary owns only the interception from that point
	// on: it dials the page, watches outgoing requests, and pulls the
	// bearer token off the one matching the upload.
	token, err := interceptUploadToken(context.Background())
	if err != nil {
		return envelope{Success: false, Error: fmt.Sprintf("fetcher: no browser-automation driver configured for %s: %v", id, err)}
	}

	return envelope{Success: true, Data: map[string]any{
		"token":      token,
		"expires_ms": 0,
	}}
}

func fetchCookie(args []string) envelope {
	if len(args) < 1 {
		return envelope{Success: false, Error: "fetcher: fetch-cookie requires <site>"}
	}

	return envelope{Success: false, Error: fmt.Sprintf("fetcher: no browser-automation driver configured for %s", args[0])}
}
