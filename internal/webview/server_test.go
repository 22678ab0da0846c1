// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package webview

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rp2-ai/rp2-ai-helper/internal/extension"
	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, prompt string, onText func(string)) error {
	onText("echo: ")
	onText(prompt)
	return nil
}

type testServer struct {
	srv  *Server
	ext  *extension.Extension
	http *httptest.Server
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ext := extension.New(extension.Options{
		Generator: func() panel.Generator { return echoGenerator{} },
	})
	ext.Activate()

	srv := New(ext, opts)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		ts.Close()
		ext.Deactivate()
	})
	return &testServer{srv: srv, ext: ext, http: ts}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + WSPath
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) panel.Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg panel.Message
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

// =============================================================================
// HTTP TESTS
// =============================================================================

func TestServer_PanelPage(t *testing.T) {
	ts := newTestServer(t, Options{Title: "My <Panel>"})

	resp, err := http.Get(ts.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, resp.Header.Get("X-Content-Type-Options"), "nosniff")

	page := string(body)
	assert.Contains(t, page, "<title>My &lt;Panel&gt;</title>")
	assert.Contains(t, page, `<button id="ask">Ask</button>`)
	assert.Contains(t, page, `"Please type a question first."`)
	assert.Contains(t, page, `"Thinking..."`)
	assert.Contains(t, page, "const wsPath = ")
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Panels)
}

// =============================================================================
// WEBSOCKET TESTS
// =============================================================================

func TestServer_ChatOverWebSocket(t *testing.T) {
	ts := newTestServer(t, Options{})
	ws := ts.dial(t)

	require.NoError(t, ws.WriteJSON(panel.Chat("ping")))

	var last panel.Message
	for !last.Done {
		last = readMessage(t, ws)
		assert.Equal(t, panel.CommandChatResponse, last.Command)
	}
	assert.Equal(t, "echo: ping", last.Text)
	assert.Equal(t, 1, ts.ext.Sessions())

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return ts.ext.Sessions() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestServer_InvalidMessage(t *testing.T) {
	ts := newTestServer(t, Options{})
	ws := ts.dial(t)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, panel.Response(panel.TextInvalidMessage, false), readMessage(t, ws))

	require.NoError(t, ws.WriteJSON(panel.Chat("")))
	assert.Equal(t, panel.Response(panel.TextEmptyPrompt, true), readMessage(t, ws))
}

func TestServer_RateLimit(t *testing.T) {
	ts := newTestServer(t, Options{MessagesPerSecond: 0.01, Burst: 1})
	ws := ts.dial(t)

	require.NoError(t, ws.WriteJSON(panel.Chat(" ")))
	assert.Equal(t, panel.TextEmptyPrompt, readMessage(t, ws).Text)

	require.NoError(t, ws.WriteJSON(panel.Chat(" ")))
	assert.Equal(t, TextSlowDown, readMessage(t, ws).Text)
}

func TestServer_ShutdownClosesSockets(t *testing.T) {
	ts := newTestServer(t, Options{})
	ws := ts.dial(t)

	require.Eventually(t, func() bool { return ts.ext.Sessions() == 1 },
		2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ts.srv.Shutdown(ctx))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "err = %v", err)
	assert.Equal(t, 0, ts.ext.Sessions())
}
