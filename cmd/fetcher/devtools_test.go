package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevToolsPage accepts one websocket connection, reads the
// Network.enable command, then emits a requestWillBeSent event carrying a
// bearer token in its Authorization header.
func fakeDevToolsPage(t *testing.T, authHeader string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		ctx := r.Context()

		_, _, err = conn.Read(ctx) // Network.enable
		require.NoError(t, err)

		event := `{"method":"Network.requestWillBeSent","params":{"request":{"url":"https://upload.example/put","headers":{"Authorization":"` + authHeader + `"}}}}`
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(event)))

		time.Sleep(50 * time.Millisecond)
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	})

	return httptest.NewServer(mux)
}

func TestInterceptUploadToken_CapturesBearerToken(t *testing.T) {
	srv := fakeDevToolsPage(t, "Bearer abc123")
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/page"
	t.Setenv(devToolsWSEnv, wsURL)

	token, err := interceptUploadToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestInterceptUploadToken_NoDriverConfigured(t *testing.T) {
	t.Setenv(devToolsWSEnv, "")

	_, err := interceptUploadToken(context.Background())
	require.Error(t, err)
}

func TestReadTokenFrame_IgnoresUnrelatedEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		ctx := r.Context()
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"method":"Network.loadingFinished"}`)))
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"method":"Network.requestWillBeSent","params":{"request":{"headers":{"Authorization":"Token xyz"}}}}`)))
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/"
	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	_, found, err := readTokenFrame(ctx, conn)
	require.NoError(t, err)
	assert.False(t, found)

	token, found, err := readTokenFrame(ctx, conn)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "xyz", token)
}
