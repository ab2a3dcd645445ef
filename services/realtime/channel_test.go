// File: services/realtime/channel_test.go
package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tripsync/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// wsServer starts a test websocket endpoint; handler runs once per connection.
func wsServer(t *testing.T, handler func(conn *websocket.Conn)) (srv *httptest.Server, wsURL string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// readUntilClose keeps the server side open until the peer goes away.
func readUntilClose(conn *websocket.Conn) {
	defer conn.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestBackoffDelayDoubles(t *testing.T) {
	base := time.Second
	assert.Equal(t, 1*time.Second, BackoffDelay(1, base))
	assert.Equal(t, 2*time.Second, BackoffDelay(2, base))
	assert.Equal(t, 4*time.Second, BackoffDelay(3, base))
	assert.Equal(t, 8*time.Second, BackoffDelay(4, base))
	assert.Equal(t, 16*time.Second, BackoffDelay(5, base))
	assert.Equal(t, base, BackoffDelay(0, base), "attempt numbers below 1 clamp to the base delay")
}

func TestConnectDispatchesAndFiltersHeartbeats(t *testing.T) {
	srv, wsURL := wsServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]any{"type": "pong", "timestamp": 1})
		conn.WriteJSON(map[string]any{"type": "itinerary_update", "days": []any{}})
		readUntilClose(conn)
	})
	defer srv.Close()

	ch := New(wsURL, Options{HeartbeatInterval: time.Hour})
	messages := make(chan []byte, 4)
	unsub := ch.Subscribe(func(msg []byte) {
		buf := make([]byte, len(msg))
		copy(buf, msg)
		messages <- buf
	})
	defer unsub()

	require.NoError(t, ch.Connect("conv-1"))
	assert.Equal(t, models.ChannelConnected, ch.State())
	assert.Equal(t, "conv-1", ch.Session().ConversationID)

	select {
	case msg := <-messages:
		assert.Equal(t, "itinerary_update", gjson.GetBytes(msg, "type").String())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pushed message")
	}

	// The pong must never have reached the listener.
	select {
	case msg := <-messages:
		t.Fatalf("unexpected extra message: %s", msg)
	case <-time.After(100 * time.Millisecond):
	}

	ch.Disconnect()
	assert.Equal(t, models.ChannelDisconnected, ch.State())
}

func TestConnectSameSessionIsNoop(t *testing.T) {
	var conns int64
	srv, wsURL := wsServer(t, func(conn *websocket.Conn) {
		atomic.AddInt64(&conns, 1)
		readUntilClose(conn)
	})
	defer srv.Close()

	ch := New(wsURL, Options{HeartbeatInterval: time.Hour})
	require.NoError(t, ch.Connect("conv-1"))
	require.NoError(t, ch.Connect("conv-1"))
	assert.Equal(t, int64(1), atomic.LoadInt64(&conns))

	ch.Disconnect()
}

func TestHeartbeatPings(t *testing.T) {
	pings := make(chan []byte, 1)
	srv, wsURL := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case pings <- data:
			default:
			}
		}
	})
	defer srv.Close()

	ch := New(wsURL, Options{HeartbeatInterval: 20 * time.Millisecond})
	require.NoError(t, ch.Connect("conv-1"))
	defer ch.Disconnect()

	select {
	case data := <-pings:
		assert.Equal(t, models.WSTypePing, gjson.GetBytes(data, "type").String())
		assert.Greater(t, gjson.GetBytes(data, "timestamp").Int(), int64(0))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for heartbeat ping")
	}
}

func TestDisconnectIsCleanAndFinal(t *testing.T) {
	var conns int64
	srv, wsURL := wsServer(t, func(conn *websocket.Conn) {
		atomic.AddInt64(&conns, 1)
		readUntilClose(conn)
	})
	defer srv.Close()

	ch := New(wsURL, Options{HeartbeatInterval: time.Hour, BaseDelay: 5 * time.Millisecond})
	require.NoError(t, ch.Connect("conv-1"))
	ch.Disconnect()

	// A clean close must not trigger auto-reconnect.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, models.ChannelDisconnected, ch.State())
	assert.Equal(t, int64(1), atomic.LoadInt64(&conns))
}

func TestReconnectAfterAbnormalClose(t *testing.T) {
	var conns int64
	srv, wsURL := wsServer(t, func(conn *websocket.Conn) {
		n := atomic.AddInt64(&conns, 1)
		if n == 1 {
			// Drop the connection without a close frame.
			conn.Close()
			return
		}
		readUntilClose(conn)
	})
	defer srv.Close()

	ch := New(wsURL, Options{HeartbeatInterval: time.Hour, BaseDelay: 10 * time.Millisecond})
	require.NoError(t, ch.Connect("conv-1"))

	require.Eventually(t, func() bool {
		return ch.State() == models.ChannelConnected && atomic.LoadInt64(&conns) == 2
	}, 2*time.Second, 10*time.Millisecond, "channel must redial after an abnormal close")

	// A successful reconnect resets the attempt counter.
	assert.Equal(t, 0, ch.Session().ReconnectAttempts)

	ch.Disconnect()
}

func TestReconnectAfterGoingAwayClose(t *testing.T) {
	var conns int64
	srv, wsURL := wsServer(t, func(conn *websocket.Conn) {
		n := atomic.AddInt64(&conns, 1)
		if n == 1 {
			// Server restart: close with 1001 GoingAway.
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			conn.Close()
			return
		}
		readUntilClose(conn)
	})
	defer srv.Close()

	ch := New(wsURL, Options{HeartbeatInterval: time.Hour, BaseDelay: 10 * time.Millisecond})
	require.NoError(t, ch.Connect("conv-1"))

	require.Eventually(t, func() bool {
		return ch.State() == models.ChannelConnected && atomic.LoadInt64(&conns) == 2
	}, 2*time.Second, 10*time.Millisecond, "a going-away close must schedule reconnect")

	ch.Disconnect()
}

func TestConnectionLostAfterExhaustedAttempts(t *testing.T) {
	srv, wsURL := wsServer(t, func(conn *websocket.Conn) { conn.Close() })
	srv.Close() // every dial now fails

	ch := New(wsURL, Options{BaseDelay: 5 * time.Millisecond, MaxAttempts: 2})
	events := make(chan []byte, 4)
	ch.Subscribe(func(msg []byte) {
		buf := make([]byte, len(msg))
		copy(buf, msg)
		events <- buf
	})

	err := ch.Connect("conv-1")
	require.Error(t, err)

	select {
	case msg := <-events:
		assert.Equal(t, models.WSTypeConnectionLost, gjson.GetBytes(msg, "type").String())
		assert.Equal(t, "conv-1", gjson.GetBytes(msg, "conversation_id").String())
		assert.Equal(t, int64(2), gjson.GetBytes(msg, "attempts").Int())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection_lost event")
	}

	assert.Equal(t, models.ChannelDisconnected, ch.State())
	ch.Disconnect()
}

func TestSubscribeOrderAndUnsubscribe(t *testing.T) {
	ch := New("ws://unused", Options{})

	var mu sync.Mutex
	var order []int
	ch.Subscribe(func([]byte) { mu.Lock(); order = append(order, 1); mu.Unlock() })
	unsub2 := ch.Subscribe(func([]byte) { mu.Lock(); order = append(order, 2); mu.Unlock() })
	ch.Subscribe(func([]byte) { mu.Lock(); order = append(order, 3); mu.Unlock() })

	ch.dispatch([]byte(`{}`))
	assert.Equal(t, []int{1, 2, 3}, order, "listeners fire in registration order")

	order = nil
	unsub2()
	unsub2() // releasing twice is harmless
	ch.dispatch([]byte(`{}`))
	assert.Equal(t, []int{1, 3}, order, "removing one listener must not disturb the others")
}

func TestSendWithoutConnection(t *testing.T) {
	ch := New("ws://unused", Options{})
	assert.Error(t, ch.Send(map[string]any{"type": "ping"}))
	assert.Error(t, ch.RequestState())
}
