// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scolaia/scolaia-tui/internal/protocol"
)

// =============================================================================
// CONNECTION STATE
// =============================================================================

// ConnState tracks the duplex channel lifecycle.
type ConnState int

const (
	// StateDisconnected means no connection exists and none is pending.
	StateDisconnected ConnState = iota
	// StateConnecting means a dial is in progress.
	StateConnecting
	// StateOpen means the channel is established and turns may be sent.
	StateOpen
	// StateClosedRetrying means the channel dropped and exactly one
	// reconnect timer is pending.
	StateClosedRetrying
)

// String returns the state name for logging and the status bar.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "connected"
	case StateClosedRetrying:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// =============================================================================
// DUPLEX CONFIGURATION
// =============================================================================

// DuplexConfig holds configuration for the duplex channel.
type DuplexConfig struct {
	// URL is the WebSocket endpoint, e.g. "ws://127.0.0.1:8000/api/v1/chat/ws".
	URL string

	// ReconnectDelay is the fixed delay before a reconnect attempt
	// (default: 3s). There is no backoff growth and no retry cap: a chat
	// session runs for a long time and should always eventually reconnect.
	ReconnectDelay time.Duration

	// HandshakeTimeout bounds the WebSocket dial (default: 10s).
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single frame write (default: 10s).
	WriteTimeout time.Duration

	// Greeting is the synthetic first turn flushed when the channel opens,
	// so the assistant introduces itself (default: "Who are you?").
	// Set to "-" to disable.
	Greeting string
}

// DefaultDuplexConfig returns the default duplex configuration.
func DefaultDuplexConfig() DuplexConfig {
	return DuplexConfig{
		URL:              "ws://127.0.0.1:8000/api/v1/chat/ws",
		ReconnectDelay:   3 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		Greeting:         "Who are you?",
	}
}

func (c *DuplexConfig) fillDefaults() {
	def := DefaultDuplexConfig()
	if c.URL == "" {
		c.URL = def.URL
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Greeting == "" {
		c.Greeting = def.Greeting
	} else if c.Greeting == "-" {
		c.Greeting = ""
	}
}

// =============================================================================
// DUPLEX CHANNEL
// =============================================================================

// dialFunc establishes a WebSocket connection. Replaced in tests.
type dialFunc func(ctx context.Context, url string, timeout time.Duration) (*websocket.Conn, error)

// scheduleFunc runs fn after d. Replaced in tests so the reconnect timer can
// be fired deterministically. The returned func cancels the timer.
type scheduleFunc func(d time.Duration, fn func()) func() bool

// Duplex owns the persistent WebSocket channel to the assistant: open,
// reconnection, and per-frame decode. Inbound frames are decoded through
// protocol.ParseDuplexFrame and handed to the Handler in delivery order;
// undecodable frames are logged and skipped.
//
// Invariants:
//   - at most one socket is open at a time; Open while Connecting/Open is a
//     programming error (ErrAlreadyOpen)
//   - at most one reconnect timer is pending at a time
//   - Send while the channel is down fails with ErrNotConnected; turns are
//     never queued
type Duplex struct {
	cfg     DuplexConfig
	handler Handler
	onState func(ConnState)
	logger  *log.Logger

	dial     dialFunc
	schedule scheduleFunc

	mu           sync.Mutex
	state        ConnState
	conn         *websocket.Conn
	gen          int // connection generation; stale read loops are ignored
	retryPending bool
	cancelRetry  func() bool
	closed       bool

	writeMu sync.Mutex
}

// NewDuplex creates a duplex channel. The handler receives response events;
// onState (optional) is notified of every state transition.
func NewDuplex(cfg DuplexConfig, handler Handler, onState func(ConnState), logger *log.Logger) *Duplex {
	cfg.fillDefaults()
	if logger == nil {
		logger = log.New(log.Writer(), "duplex: ", log.LstdFlags)
	}
	return &Duplex{
		cfg:     cfg,
		handler: handler,
		onState: onState,
		logger:  logger,
		dial:    gorillaDial,
		schedule: func(d time.Duration, fn func()) func() bool {
			t := time.AfterFunc(d, fn)
			return t.Stop
		},
	}
}

func gorillaDial(ctx context.Context, url string, timeout time.Duration) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	return conn, err
}

// State returns the current connection state.
func (d *Duplex) State() ConnState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Ready reports whether a turn can be dispatched right now.
func (d *Duplex) Ready() bool {
	return d.State() == StateOpen
}

// setState transitions the state under d.mu and returns the notification to
// run after unlocking. Callbacks never run under the lock.
func (d *Duplex) setState(s ConnState) func() {
	d.state = s
	if d.onState == nil {
		return func() {}
	}
	cb := d.onState
	return func() { cb(s) }
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Open establishes the channel. On success the state is Open, the read loop
// is running, and the greeting turn has been flushed. On failure the channel
// transitions to ClosedRetrying and schedules a reconnect; the error is
// returned so the caller can surface it.
func (d *Duplex) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return &Error{Type: ErrTypeConnection, Message: "duplex channel is shut down"}
	}
	if d.state == StateConnecting || d.state == StateOpen {
		d.mu.Unlock()
		return ErrAlreadyOpen
	}
	notify := d.setState(StateConnecting)
	d.mu.Unlock()
	notify()

	return d.connect(ctx)
}

// connect dials and either transitions to Open or to ClosedRetrying.
func (d *Duplex) connect(ctx context.Context) error {
	conn, err := d.dial(ctx, d.cfg.URL, d.cfg.HandshakeTimeout)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		notify := d.setState(StateClosedRetrying)
		d.scheduleRetryLocked()
		d.mu.Unlock()
		notify()
		d.logger.Printf("dial %s failed: %v", d.cfg.URL, err)
		return &Error{Type: ErrTypeConnection, Message: "failed to reach the assistant", Cause: err}
	}

	d.conn = conn
	d.gen++
	gen := d.gen
	notify := d.setState(StateOpen)
	d.mu.Unlock()
	notify()

	go d.readLoop(conn, gen)

	if d.cfg.Greeting != "" {
		if err := d.writeFrame(conn, d.cfg.Greeting); err != nil {
			// The read loop will observe the broken socket and retry.
			d.logger.Printf("greeting send failed: %v", err)
			conn.Close()
		}
	}
	return nil
}

// scheduleRetryLocked arms the reconnect timer. Caller holds d.mu.
// Only one timer may be pending; a duplicate request is a no-op.
func (d *Duplex) scheduleRetryLocked() {
	if d.retryPending {
		return
	}
	d.retryPending = true
	d.cancelRetry = d.schedule(d.cfg.ReconnectDelay, d.retryFired)
}

// retryFired runs when the reconnect timer elapses.
func (d *Duplex) retryFired() {
	d.mu.Lock()
	d.retryPending = false
	d.cancelRetry = nil
	if d.closed || d.state != StateClosedRetrying {
		d.mu.Unlock()
		return
	}
	notify := d.setState(StateConnecting)
	d.mu.Unlock()
	notify()

	// Errors here were already logged and rescheduled by connect.
	_ = d.connect(context.Background())
}

// readLoop decodes inbound frames until the socket breaks.
func (d *Duplex) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			d.socketClosed(gen, err)
			return
		}
		ev, ok := protocol.ParseDuplexFrame(data)
		if !ok {
			d.logger.Printf("ignoring unrecognized frame: %s", truncateFrame(data))
			continue
		}
		d.handler(ev)
	}
}

// socketClosed handles an unexpected closure: the in-flight response (if
// any) receives an implicit error event, the state moves to ClosedRetrying,
// and exactly one reconnect is scheduled.
func (d *Duplex) socketClosed(gen int, cause error) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.conn = nil
	notify := d.setState(StateClosedRetrying)
	d.scheduleRetryLocked()
	d.mu.Unlock()
	notify()

	d.logger.Printf("connection lost: %v", cause)
	d.handler(protocol.ErrorEvent("connection to the assistant was lost"))
}

// Close tears the channel down for good: the pending reconnect (if any) is
// cancelled and no further retries occur. Used when the chat view unmounts.
func (d *Duplex) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.cancelRetry != nil {
		d.cancelRetry()
		d.cancelRetry = nil
		d.retryPending = false
	}
	conn := d.conn
	d.conn = nil
	notify := d.setState(StateDisconnected)
	d.mu.Unlock()
	notify()

	if conn != nil {
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}

// =============================================================================
// SENDING
// =============================================================================

// Send dispatches one outgoing turn. It fails with ErrNotConnected while the
// channel is down; the turn is dropped, never queued. There is no mid-stream
// cancellation on this transport: once dispatched, a turn runs to
// complete/error/closure, so ctx only guards the write itself.
func (d *Duplex) Send(ctx context.Context, content string) error {
	d.mu.Lock()
	if d.state != StateOpen || d.conn == nil {
		d.mu.Unlock()
		return ErrNotConnected
	}
	conn := d.conn
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &Error{Type: ErrTypeConnection, Message: "send cancelled", Cause: err}
	}
	if err := d.writeFrame(conn, content); err != nil {
		conn.Close()
		return &Error{Type: ErrTypeConnection, Message: "failed to send message", Cause: err}
	}
	return nil
}

// writeFrame encodes and writes one client frame. Gorilla supports a single
// concurrent writer, so writes are serialized here.
func (d *Duplex) writeFrame(conn *websocket.Conn, content string) error {
	data, err := protocol.EncodeClientFrame(content)
	if err != nil {
		return err
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(d.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// truncateFrame bounds frame bytes for log lines.
func truncateFrame(data []byte) string {
	const max = 120
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max]) + "..."
}
