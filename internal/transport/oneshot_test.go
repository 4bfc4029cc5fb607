// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scolaia/scolaia-tui/internal/protocol"
)

// streamServer responds to every POST with the given body blocks.
func streamServer(t *testing.T, blocks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, b := range blocks {
			_, _ = w.Write([]byte(b))
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStream_TokensThenDone(t *testing.T) {
	srv := streamServer(t, "data: A\n\n", "data: B\n\n", "data: [DONE]\n\n")

	col := newEventCollector()
	s := NewStream(StreamConfig{URL: srv.URL}, col.handler, testLogger)

	require.NoError(t, s.Send(context.Background(), "hi"))

	events := col.wait(t, 3)
	require.Equal(t, protocol.TokenEvent("A"), events[0])
	require.Equal(t, protocol.TokenEvent("B"), events[1])
	require.Equal(t, protocol.EventComplete, events[2].Type)
	require.False(t, events[2].HasCumulative)
}

func TestStream_ErrorSentinelIsTerminal(t *testing.T) {
	srv := streamServer(t, "data: partial\n\n", "data: [ERROR]\n\n")

	col := newEventCollector()
	s := NewStream(StreamConfig{URL: srv.URL}, col.handler, testLogger)

	// The [ERROR] sentinel is an in-band protocol failure, not a transport
	// failure: Send itself succeeds.
	require.NoError(t, s.Send(context.Background(), "hi"))

	events := col.wait(t, 2)
	require.Equal(t, protocol.EventError, events[1].Type)
}

func TestStream_BadStatusFailsInline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	col := newEventCollector()
	s := NewStream(StreamConfig{URL: srv.URL}, col.handler, testLogger)

	err := s.Send(context.Background(), "hi")
	require.Error(t, err)

	events := col.wait(t, 1)
	require.Equal(t, protocol.EventError, events[0].Type)
}

func TestStream_TruncatedStreamFailsInline(t *testing.T) {
	srv := streamServer(t, "data: A\n\n") // no terminator

	col := newEventCollector()
	s := NewStream(StreamConfig{URL: srv.URL}, col.handler, testLogger)

	err := s.Send(context.Background(), "hi")
	var terr *Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, ErrTypeTruncated, terr.Type)

	events := col.wait(t, 2)
	require.Equal(t, protocol.TokenEvent("A"), events[0])
	require.Equal(t, protocol.EventError, events[1].Type)
}

func TestStream_AbortViaContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: A\n\n"))
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	col := newEventCollector()
	s := NewStream(StreamConfig{URL: srv.URL}, col.handler, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Send(ctx, "hi") }()

	col.wait(t, 1) // first token arrived
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after cancel")
	}

	// A deliberate abort synthesizes no terminal error event.
	for _, ev := range col.wait(t, 1) {
		require.NotEqual(t, protocol.EventError, ev.Type)
	}
}
