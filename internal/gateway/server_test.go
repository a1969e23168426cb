package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/minder/internal/actor"
	"github.com/soyeahso/minder/internal/config"
	"github.com/soyeahso/minder/internal/llm"
	"github.com/soyeahso/minder/internal/logging"
	"github.com/soyeahso/minder/internal/ratelimit"
	"github.com/soyeahso/minder/internal/store"
)

func testServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	deps := actor.Deps{
		State:    store.NewStateStore(db),
		Messages: store.NewMessageStore(db),
		Tasks:    store.NewTaskStore(db),
		Model:    &llm.MockClient{},
		Limiter:  ratelimit.New(),
		Limits:   actor.DefaultLimits(),
	}
	manager := actor.NewManager(deps, log)
	t.Cleanup(manager.Shutdown)

	cfg := config.Defaults()
	cfg.Model.Provider = "mock"
	if mutate != nil {
		mutate(&cfg)
	}

	s := New(cfg, manager, log)
	s.startedAt = time.Now()
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	ts := httptest.NewServer(withMiddleware(mux, log, cfg.Gateway.AllowedOrigins))
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestWebSocket_ConnectAndChat(t *testing.T) {
	ts := testServer(t, nil)
	conn := dial(t, ts, "?user=alice")

	hello := readFrame(t, conn)
	assert.Equal(t, "connected", hello["type"])
	assert.Equal(t, "alice", hello["userId"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "chat", "content": "hi"}))
	resp := readFrame(t, conn)
	assert.Equal(t, "chat_response", resp["type"])
	assert.Equal(t, "mock response", resp["content"])
}

func TestWebSocket_MissingUserRejected(t *testing.T) {
	ts := testServer(t, nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocket_TokenAuth(t *testing.T) {
	ts := testServer(t, func(cfg *config.Config) { cfg.Gateway.Token = "s3cret" })

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?user=alice"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := dial(t, ts, "?user=alice&token=s3cret")
	hello := readFrame(t, conn)
	assert.Equal(t, "connected", hello["type"])
}

func TestWebSocket_MalformedFrameKeepsConnection(t *testing.T) {
	ts := testServer(t, nil)
	conn := dial(t, ts, "?user=alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
	errFrame := readFrame(t, conn)
	assert.Equal(t, "error", errFrame["type"])
	assert.Equal(t, "validation_error", errFrame["error"])

	// The connection survives a bad frame.
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	pong := readFrame(t, conn)
	assert.Equal(t, "pong", pong["type"])
}

func TestWebSocket_UnknownType(t *testing.T) {
	ts := testServer(t, nil)
	conn := dial(t, ts, "?user=alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "fly_to_moon"}))
	errFrame := readFrame(t, conn)
	assert.Equal(t, "error", errFrame["type"])
	assert.Equal(t, "unknown_type", errFrame["error"])
}

func TestWebSocket_TaskRoundTrip(t *testing.T) {
	ts := testServer(t, nil)
	conn := dial(t, ts, "?user=alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "create_task", "title": "pack bags"}))
	created := readFrame(t, conn)
	require.Equal(t, "task_created", created["type"])
	task := created["task"].(map[string]any)
	assert.Equal(t, "pack bags", task["title"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "list_tasks"}))
	list := readFrame(t, conn)
	assert.Equal(t, "tasks_list", list["type"])
	assert.Equal(t, float64(1), list["count"])
}

func TestHealth(t *testing.T) {
	ts := testServer(t, nil)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestStatus_RequiresToken(t *testing.T) {
	ts := testServer(t, func(cfg *config.Config) { cfg.Gateway.Token = "s3cret" })

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResolveBindAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:18890", resolveBindAddr(config.GatewayConfig{Bind: "loopback", Port: 18890}))
	assert.Equal(t, "0.0.0.0:80", resolveBindAddr(config.GatewayConfig{Bind: "lan", Port: 80}))
	assert.Equal(t, "10.0.0.5:9", resolveBindAddr(config.GatewayConfig{Bind: "custom", CustomBindHost: "10.0.0.5", Port: 9}))
	assert.Equal(t, "127.0.0.1:1", resolveBindAddr(config.GatewayConfig{Port: 1}))
}
