// ABOUTME: Tests for the WebSocket transport lifecycle and frame delivery
// ABOUTME: Uses httptest servers with a gorilla upgrader to drive open, close and reconnect

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/nexus-chat/internal/protocol"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// wsURL converts an HTTP test server URL to a WebSocket URL.
func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/test-user"
}

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return Event{}
	}
}

func startClient(t *testing.T, cfg Config) (*Client, context.CancelFunc) {
	t.Helper()
	c := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c, cancel
}

func TestClient_InitialStateConnecting(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/ws/x"})
	assert.Equal(t, StateConnecting, c.State())
	assert.ErrorIs(t, c.Send("hello"), ErrNotConnected)
}

func TestClient_DeliversFramesInOrderAndDropsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, msg := range []string{
			`{"type":"progress","payload":{"agent":"FENG","status":"RECEIVED","detail":"one"}}`,
			`{"type":"typing","payload":{}}`,
			`garbage`,
			`{"type":"progress","payload":{"agent":"FENG","status":"PROCESSING","detail":"two"}}`,
			`{"type":"final_response","payload":{"answer":"ok"}}`,
		} {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, _ := startClient(t, Config{URL: wsURL(srv)})

	ev := nextEvent(t, c)
	require.Equal(t, EventOpened, ev.Kind)
	assert.Equal(t, StateOpen, c.State())

	ev = nextEvent(t, c)
	require.Equal(t, EventFrame, ev.Kind)
	assert.Equal(t, "one", ev.Frame.Progress.Detail)

	ev = nextEvent(t, c)
	require.Equal(t, EventFrame, ev.Kind)
	assert.Equal(t, "two", ev.Frame.Progress.Detail)

	ev = nextEvent(t, c)
	require.Equal(t, EventFrame, ev.Kind)
	assert.Equal(t, protocol.TypeFinalResponse, ev.Frame.Type)
	assert.Equal(t, "ok", ev.Frame.Final.Answer)
}

func TestClient_SendDeliversRawText(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, _ := startClient(t, Config{URL: wsURL(srv)})
	require.Equal(t, EventOpened, nextEvent(t, c).Kind)

	require.NoError(t, c.Send("สวัสดี"))

	select {
	case got := <-received:
		assert.Equal(t, "สวัสดี", got)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}
}

func TestClient_ReconnectsAfterServerClose(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connections.Add(1)
		if n == 1 {
			// Drop the first connection immediately.
			_ = conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	delay := 50 * time.Millisecond
	c, _ := startClient(t, Config{URL: wsURL(srv), ReconnectDelay: delay})

	require.Equal(t, EventOpened, nextEvent(t, c).Kind)

	closedAt := time.Now()
	ev := nextEvent(t, c)
	require.Equal(t, EventClosed, ev.Kind)
	assert.Error(t, ev.Err)
	assert.ErrorIs(t, c.Send("x"), ErrNotConnected)

	ev = nextEvent(t, c)
	require.Equal(t, EventOpened, ev.Kind)
	// The reconnect waits out the fixed delay (allowing for scheduling slack).
	assert.GreaterOrEqual(t, time.Since(closedAt), delay/2)
	assert.Equal(t, int32(2), connections.Load())
}

func TestClient_DialFailureKeepsRetrying(t *testing.T) {
	var mu sync.Mutex
	accept := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ok := accept
		mu.Unlock()
		if !ok {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, _ := startClient(t, Config{URL: wsURL(srv), ReconnectDelay: 20 * time.Millisecond})

	// Several failed dials in a row, each reported as a close.
	for i := 0; i < 3; i++ {
		ev := nextEvent(t, c)
		require.Equal(t, EventClosed, ev.Kind)
		assert.Contains(t, ev.Err.Error(), "503")
	}

	mu.Lock()
	accept = true
	mu.Unlock()

	for {
		ev := nextEvent(t, c)
		if ev.Kind == EventOpened {
			break
		}
		require.Equal(t, EventClosed, ev.Kind)
	}
	assert.Equal(t, StateOpen, c.State())
}

func TestClient_RunReturnsOnCancel(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/ws/x", ReconnectDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// The first dial fails and the loop parks in the reconnect delay.
	ev := nextEvent(t, c)
	require.Equal(t, EventClosed, ev.Kind)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
