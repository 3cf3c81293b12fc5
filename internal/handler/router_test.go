package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-widget/internal/model/realtime"
	"github.com/zhouzirui/chat-widget/internal/relay"
)

func setupRouter(t *testing.T, staticDir string) (http.Handler, *relay.Hub) {
	t.Helper()
	metrics := relay.NewMetrics()
	hub := relay.NewHub(relay.HubOptions{}, metrics)
	t.Cleanup(hub.Close)
	return NewRouter(hub, metrics, staticDir), hub
}

func TestHealthz(t *testing.T) {
	r, _ := setupRouter(t, "")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setupRouter(t, "")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "go_goroutines")
}

func TestEmbedServesIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>widget</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat-widget.js"), []byte("console.log(1)"), 0o644))
	r, _ := setupRouter(t, dir)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/embed", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "widget")

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/chat-widget.js", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "console.log(1)", resp.Body.String())
}

func TestEmbedWithoutBundle(t *testing.T) {
	r, _ := setupRouter(t, "")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/embed", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestPublishValidation(t *testing.T) {
	r, _ := setupRouter(t, "")

	cases := []struct {
		name string
		body string
		code int
	}{
		{"text", `{"event":"text_message","data":"oi"}`, http.StatusAccepted},
		{"image", `{"event":"image_message","data":"data:image/png;base64,AAAA"}`, http.StatusAccepted},
		{"unknown event", `{"event":"typing","data":""}`, http.StatusBadRequest},
		{"not json", `oi`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := setupRouter(t, "")
	req := httptest.NewRequest(http.MethodOptions, "/publish", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) realtime.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f realtime.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocketBroadcastReachesSender(t *testing.T) {
	r, hub := setupRouter(t, "")
	srv := httptest.NewServer(r)
	defer srv.Close()

	alice := dialWS(t, srv)
	bob := dialWS(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(realtime.TextFrame("<b>olá</b>")))
	assert.Equal(t, realtime.TextFrame("<b>olá</b>"), readFrame(t, alice))
	assert.Equal(t, realtime.TextFrame("<b>olá</b>"), readFrame(t, bob))

	require.NoError(t, bob.WriteJSON(realtime.Frame{Event: "typing", Data: "..."}))
	require.NoError(t, bob.WriteJSON(realtime.ImageFrame("data:image/png;base64,AAAA")))
	assert.Equal(t, realtime.ImageFrame("data:image/png;base64,AAAA"), readFrame(t, alice))
}

func TestEventsStreamReceivesPublishedFrames(t *testing.T) {
	r, hub := setupRouter(t, "")
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(realtime.TextFrame("pelo http"))
	pub, err := http.Post(srv.URL+"/publish", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	io.Copy(io.Discard, pub.Body)
	pub.Body.Close()
	require.Equal(t, http.StatusAccepted, pub.StatusCode)

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	assert.Equal(t, realtime.EventText, event)
	var f realtime.Frame
	require.NoError(t, json.Unmarshal([]byte(data), &f))
	assert.Equal(t, realtime.TextFrame("pelo http"), f)
}
