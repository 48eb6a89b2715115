package stream

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/netxfw/netxmap/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, opts Options) (*feed.Registry, *httptest.Server) {
	t.Helper()
	reg := feed.NewRegistry()
	srv := httptest.NewServer(NewHandler(reg, opts, nil))
	t.Cleanup(func() {
		reg.CloseAll()
		srv.Close()
	})
	return reg, srv
}

func dial(t *testing.T, srv *httptest.Server, query string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	if query != "" {
		u += "?" + query
	}
	return websocket.DefaultDialer.Dial(u, header)
}

func mustDial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ws, _, err := dial(t, srv, query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func broadcast(reg *feed.Registry, payload string) {
	for _, s := range reg.Snapshot() {
		_ = s.Send([]byte(payload))
	}
}

func readText(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	typ, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	return string(data)
}

// TestHandler_Delivery tests that messages arrive in order
// TestHandler_Delivery 测试消息按顺序到达
func TestHandler_Delivery(t *testing.T) {
	reg, srv := startServer(t, Options{})
	ws := mustDial(t, srv, "")
	require.Eventually(t, func() bool { return reg.Len() == 1 }, 3*time.Second, 5*time.Millisecond)

	for _, m := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		broadcast(reg, m)
	}
	assert.Equal(t, `{"n":1}`, readText(t, ws))
	assert.Equal(t, `{"n":2}`, readText(t, ws))
	assert.Equal(t, `{"n":3}`, readText(t, ws))

	// Inbound messages are ignored
	// 入站消息会被忽略
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	broadcast(reg, `{"n":4}`)
	assert.Equal(t, `{"n":4}`, readText(t, ws))
	assert.Equal(t, 1, reg.Len())
}

// TestHandler_Disconnect tests that a closed viewer is removed from the registry
// TestHandler_Disconnect 测试关闭的查看者会从注册表移除
func TestHandler_Disconnect(t *testing.T) {
	reg, srv := startServer(t, Options{})
	stay := mustDial(t, srv, "")
	leave := mustDial(t, srv, "")
	require.Eventually(t, func() bool { return reg.Len() == 2 }, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, leave.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	require.NoError(t, leave.Close())
	require.Eventually(t, func() bool { return reg.Len() == 1 }, 3*time.Second, 5*time.Millisecond)

	broadcast(reg, `{"n":1}`)
	assert.Equal(t, `{"n":1}`, readText(t, stay))
}

// TestHandler_Filter tests per viewer filters and rejection of invalid ones
// TestHandler_Filter 测试查看者级过滤及无效过滤器的拒绝
func TestHandler_Filter(t *testing.T) {
	reg, srv := startServer(t, Options{})

	_, resp, err := dial(t, srv, "filter="+url.QueryEscape("magnitude >"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	mustDial(t, srv, "filter="+url.QueryEscape("magnitude > 50"))
	require.Eventually(t, func() bool { return reg.Len() == 1 }, 3*time.Second, 5*time.Millisecond)

	sub, ok := reg.Snapshot()[0].(feed.Filterer)
	require.True(t, ok)
	big, small := 80.0, 10.0
	assert.True(t, sub.Accept(&feed.EnrichedEvent{Event: &feed.TrafficEvent{Magnitude: &big}}))
	assert.False(t, sub.Accept(&feed.EnrichedEvent{Event: &feed.TrafficEvent{Magnitude: &small}}))
}

// TestHandler_Origin tests the origin allow list
// TestHandler_Origin 测试来源白名单
func TestHandler_Origin(t *testing.T) {
	reg, srv := startServer(t, Options{AllowedOrigins: []string{"map.example.com"}})

	_, resp, err := dial(t, srv, "", http.Header{"Origin": {"http://evil.example.com"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ws, _, err := dial(t, srv, "", http.Header{"Origin": {"https://map.example.com"}})
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return reg.Len() == 1 }, 3*time.Second, 5*time.Millisecond)
}

// TestHandler_ServerClose tests that closing the subscriber ends the viewer session
// TestHandler_ServerClose 测试关闭订阅者会结束查看者会话
func TestHandler_ServerClose(t *testing.T) {
	reg, srv := startServer(t, Options{})
	ws := mustDial(t, srv, "")
	require.Eventually(t, func() bool { return reg.Len() == 1 }, 3*time.Second, 5*time.Millisecond)

	reg.Remove(reg.Snapshot()[0].ID())

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}

// TestConn_Send tests the bounded queue
// TestConn_Send 测试有界队列
func TestConn_Send(t *testing.T) {
	c := &Conn{id: "x", queue: make(chan []byte, 2), done: make(chan struct{})}

	assert.NoError(t, c.Send([]byte("1")))
	assert.NoError(t, c.Send([]byte("2")))
	assert.ErrorIs(t, c.Send([]byte("3")), ErrQueueFull)
	assert.Equal(t, "1", string(<-c.queue))

	close(c.done)
	assert.ErrorIs(t, c.Send([]byte("4")), ErrClosed)
	assert.True(t, c.Accept(&feed.EnrichedEvent{Event: &feed.TrafficEvent{}}))
}
