package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// devToolsWSEnv names the environment variable a browser-automation driver
// sets to the DevTools-control-protocol WebSocket URL of the page it just
// navigated to a backend's upload form. This binary does not launch or
// drive the browser itself; it only owns the interception once that page
// is already open and performing its synthetic upload.
const devToolsWSEnv = "PICDOCK_DEVTOOLS_WS"

const interceptTimeout = 25 * time.Second

// cdpRequest is a minimal Chrome DevTools Protocol command envelope.
type cdpRequest struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
}

// cdpEvent is the subset of Network.requestWillBeSent this binary reads
// off the wire looking for the outgoing upload request's credentials.
type cdpEvent struct {
	Method string `json:"method"`
	Params struct {
		Request struct {
			URL     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		} `json:"request"`
	} `json:"params"`
}

// interceptUploadToken dials the page's DevTools WebSocket, enables the
// Network domain, and watches requestWillBeSent events for the bearer
// token carried on the outgoing upload request.
func interceptUploadToken(ctx context.Context) (string, error) {
	wsURL := os.Getenv(devToolsWSEnv)
	if wsURL == "" {
		return "", fmt.Errorf("%s not set", devToolsWSEnv)
	}

	ctx, cancel := context.WithTimeout(ctx, interceptTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return "", fmt.Errorf("dialing devtools websocket: %w", err)
	}
	defer conn.CloseNow()

	if err := writeCDPFrame(ctx, conn, cdpRequest{ID: 1, Method: "Network.enable"}); err != nil {
		return "", err
	}

	for {
		token, found, err := readTokenFrame(ctx, conn)
		if err != nil {
			return "", err
		}
		if found {
			_ = conn.Close(websocket.StatusNormalClosure, "token captured")
			return token, nil
		}
	}
}

func writeCDPFrame(ctx context.Context, conn *websocket.Conn, req cdpRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding devtools command: %w", err)
	}

	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("writing devtools command: %w", err)
	}

	return nil
}

// authHeaderPrefixes are stripped from a captured Authorization header to
// leave the bare token, in the order backends tend to use them.
var authHeaderPrefixes = []string{"Bearer ", "bearer ", "Token "}

func readTokenFrame(ctx context.Context, conn *websocket.Conn) (token string, found bool, err error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return "", false, fmt.Errorf("reading devtools frame: %w", err)
	}

	var evt cdpEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return "", false, nil
	}

	if evt.Method != "Network.requestWillBeSent" {
		return "", false, nil
	}

	auth := evt.Params.Request.Headers["Authorization"]
	if auth == "" {
		return "", false, nil
	}

	for _, prefix := range authHeaderPrefixes {
		if strings.HasPrefix(auth, prefix) {
			return strings.TrimPrefix(auth, prefix), true, nil
		}
	}

	return auth, true, nil
}
