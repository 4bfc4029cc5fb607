// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/scolaia/scolaia-tui/internal/protocol"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testLogger = log.New(io.Discard, "", 0)

// eventCollector gathers handler events across goroutines.
type eventCollector struct {
	mu     sync.Mutex
	events []protocol.Event
	ch     chan protocol.Event
}

func newEventCollector() *eventCollector {
	return &eventCollector{ch: make(chan protocol.Event, 64)}
}

func (c *eventCollector) handler(ev protocol.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.ch <- ev
}

// wait blocks until n events arrived or the deadline passes.
func (c *eventCollector) wait(t *testing.T, n int) []protocol.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		got := len(c.events)
		c.mu.Unlock()
		if got >= n {
			break
		}
		select {
		case <-c.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, got)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Event(nil), c.events...)
}

// stateRecorder gathers state transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []ConnState
}

func (r *stateRecorder) record(s ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) snapshot() []ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnState(nil), r.states...)
}

// fakeTimer captures scheduled reconnects so tests can fire them manually.
type fakeTimer struct {
	mu        sync.Mutex
	scheduled []func()
}

func (f *fakeTimer) schedule(_ time.Duration, fn func()) func() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, fn)
	return func() bool { return true }
}

func (f *fakeTimer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}

func (f *fakeTimer) fire(t *testing.T, i int) {
	f.mu.Lock()
	fn := f.scheduled[i]
	f.mu.Unlock()
	fn()
}

// wsEchoServer runs script against each accepted connection.
func wsEchoServer(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestDuplex_OpenWhileOpenIsProgrammingError(t *testing.T) {
	srv := wsEchoServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	d := NewDuplex(DuplexConfig{URL: wsURL(srv), Greeting: "-"}, func(protocol.Event) {}, nil, testLogger)
	defer d.Close()

	require.NoError(t, d.Open(context.Background()))
	require.Equal(t, StateOpen, d.State())

	err := d.Open(context.Background())
	require.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestDuplex_SendWhileDownIsRejected(t *testing.T) {
	d := NewDuplex(DuplexConfig{URL: "ws://127.0.0.1:1/api/v1/chat/ws"}, func(protocol.Event) {}, nil, testLogger)
	defer d.Close()

	err := d.Send(context.Background(), "hello")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestDuplex_FailedDialSchedulesExactlyOneRetry(t *testing.T) {
	timer := &fakeTimer{}
	rec := &stateRecorder{}

	d := NewDuplex(DuplexConfig{URL: "ws://x"}, func(protocol.Event) {}, rec.record, testLogger)
	d.dial = func(context.Context, string, time.Duration) (*websocket.Conn, error) {
		return nil, errors.New("refused")
	}
	d.schedule = timer.schedule
	defer d.Close()

	err := d.Open(context.Background())
	require.Error(t, err)
	require.Equal(t, StateClosedRetrying, d.State())
	require.Equal(t, 1, timer.count())

	// Firing the timer transitions to Connecting exactly once, and the next
	// failure re-arms exactly one new timer. No backoff growth, no cap.
	timer.fire(t, 0)
	require.Equal(t, 2, timer.count())

	var connecting int
	for _, s := range rec.snapshot() {
		if s == StateConnecting {
			connecting++
		}
	}
	require.Equal(t, 2, connecting) // initial Open + one retry
}

func TestDuplex_GreetingFlushedOnOpen(t *testing.T) {
	got := make(chan string, 1)
	srv := wsEchoServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got <- string(data)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	d := NewDuplex(DuplexConfig{URL: wsURL(srv)}, func(protocol.Event) {}, nil, testLogger)
	defer d.Close()
	require.NoError(t, d.Open(context.Background()))

	select {
	case frame := <-got:
		require.JSONEq(t, `{"content":"Who are you?"}`, frame)
	case <-time.After(5 * time.Second):
		t.Fatal("greeting was never sent")
	}
}

// =============================================================================
// EVENT DELIVERY TESTS
// =============================================================================

func TestDuplex_DeliversEventsInOrderAndSkipsNoise(t *testing.T) {
	srv := wsEchoServer(t, func(conn *websocket.Conn) {
		// Wait for the greeting turn, then stream a scripted response.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		frames := []string{
			`{"status":"processing","message":"Processing your message..."}`,
			`{"type":"token","content":"A","full_response":"A"}`,
			`{"type":"token","content":"B","full_response":"AB"}`,
			`{"type":"complete","full_response":"AB"}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	col := newEventCollector()
	d := NewDuplex(DuplexConfig{URL: wsURL(srv)}, col.handler, nil, testLogger)
	defer d.Close()
	require.NoError(t, d.Open(context.Background()))

	events := col.wait(t, 3)
	require.Equal(t, protocol.EventToken, events[0].Type)
	require.Equal(t, "A", events[0].Cumulative)
	require.Equal(t, protocol.EventToken, events[1].Type)
	require.Equal(t, "AB", events[1].Cumulative)
	require.Equal(t, protocol.EventComplete, events[2].Type)
	require.Equal(t, "AB", events[2].Cumulative)
	require.True(t, events[2].HasCumulative)
}

func TestDuplex_ClosureDeliversImplicitError(t *testing.T) {
	srv := wsEchoServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		// One token, then the socket dies mid-stream.
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"token","content":"A","full_response":"A"}`))
		conn.Close()
	})

	timer := &fakeTimer{}
	col := newEventCollector()
	d := NewDuplex(DuplexConfig{URL: wsURL(srv)}, col.handler, nil, testLogger)
	d.schedule = timer.schedule
	defer d.Close()
	require.NoError(t, d.Open(context.Background()))

	events := col.wait(t, 2)
	require.Equal(t, protocol.EventToken, events[0].Type)
	require.Equal(t, protocol.EventError, events[1].Type)
	require.Equal(t, StateClosedRetrying, d.State())
	require.Equal(t, 1, timer.count())
}

func TestDuplex_CloseCancelsPendingRetry(t *testing.T) {
	timer := &fakeTimer{}
	d := NewDuplex(DuplexConfig{URL: "ws://x"}, func(protocol.Event) {}, nil, testLogger)
	d.dial = func(context.Context, string, time.Duration) (*websocket.Conn, error) {
		return nil, errors.New("refused")
	}
	d.schedule = timer.schedule

	_ = d.Open(context.Background())
	require.Equal(t, 1, timer.count())

	require.NoError(t, d.Close())
	require.Equal(t, StateDisconnected, d.State())

	// A stale timer firing after Close must not resurrect the channel.
	timer.fire(t, 0)
	require.Equal(t, StateDisconnected, d.State())
	require.Equal(t, 1, timer.count())
}
