// ABOUTME: Persistent WebSocket transport to the agent backend with fixed-interval reconnect
// ABOUTME: Emits typed open/close/frame events on a channel for a single consumer

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/nexus-chat/internal/protocol"
)

// Default connection constants.
const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultWriteWait      = 10 * time.Second
	DefaultMaxMessageSize = 4 * 1024 * 1024
	DefaultCloseGrace     = time.Second

	eventBufferSize = 64
)

// ErrNotConnected is returned by Send while the transport is not OPEN.
// Sends are never queued for later delivery.
var ErrNotConnected = errors.New("connection unavailable")

// State is the connection lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind identifies a transport event.
type EventKind int

const (
	EventOpened EventKind = iota
	EventClosed
	EventFrame
)

// Event is emitted on the Events channel. Frame is set for EventFrame,
// Err for EventClosed.
type Event struct {
	Kind  EventKind
	Frame protocol.Frame
	Err   error
}

// Config configures the transport.
type Config struct {
	// URL is the full WebSocket endpoint, e.g. ws://host:8000/ws/<user_id>.
	URL string

	// Header is sent on every handshake (e.g. Authorization).
	Header http.Header

	// ReconnectDelay is the fixed wait between a close and the next dial.
	ReconnectDelay time.Duration

	DialTimeout    time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client owns one logical connection to the backend. Run drives the
// CONNECTING -> OPEN -> CLOSED -> CONNECTING cycle until its context ends.
type Client struct {
	cfg    Config
	logger *slog.Logger

	state  atomic.Int32
	events chan Event

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex // serializes writes (gorilla/websocket requirement)
}

// New creates a Client in the CONNECTING state. Nothing is dialed until Run.
func New(cfg Config) *Client {
	cfg.defaults()
	c := &Client{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "transport"),
		events: make(chan Event, eventBufferSize),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// Events returns the channel transport events are delivered on. It is never
// closed; consumers stop reading when their own context ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Run dials, reads and reconnects forever. There is no retry ceiling; it
// returns nil once ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	for {
		c.setState(StateConnecting)

		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			c.setState(StateClosed)
			return nil
		}

		c.setState(StateClosed)
		c.emit(ctx, Event{Kind: EventClosed, Err: err})
		c.logger.Warn("connection lost, reconnecting",
			"error", err,
			"delay", c.cfg.ReconnectDelay,
		)

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// runOnce performs one dial and, on success, reads until the connection
// fails. The returned error describes why the connection ended.
func (c *Client) runOnce(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer c.dropConn(conn)

	c.setState(StateOpen)
	c.logger.Info("connected", "url", c.cfg.URL)
	c.emit(ctx, Event{Kind: EventOpened})

	return c.readLoop(ctx, conn)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.DialTimeout,
	}

	c.logger.Debug("dialing", "url", c.cfg.URL)

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s (status %d): %w", c.cfg.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", c.cfg.URL, err)
	}
	conn.SetReadLimit(c.cfg.MaxMessageSize)
	return conn, nil
}

// readLoop decodes inbound messages until the connection errors or ctx ends.
// Frames of unknown type and malformed frames are dropped.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	// ReadMessage has no context; closing the socket is what unblocks it.
	go func() {
		select {
		case <-ctx.Done():
			c.closeGracefully(conn)
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading message: %w", err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownType) {
				c.logger.Debug("ignoring frame", "error", err)
			} else {
				c.logger.Warn("dropping malformed frame", "error", err)
			}
			continue
		}

		c.emit(ctx, Event{Kind: EventFrame, Frame: frame})
	}
}

func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// Send writes the utterance as a single text message.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || c.State() != StateOpen {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		// Force the read loop to notice so the reconnect cycle starts.
		_ = conn.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

func (c *Client) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) closeGracefully(conn *websocket.Conn) {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed")
	_ = conn.SetWriteDeadline(time.Now().Add(DefaultCloseGrace))
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	c.writeMu.Unlock()
	_ = conn.Close()
}
