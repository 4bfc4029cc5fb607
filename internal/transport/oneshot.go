// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/scolaia/scolaia-tui/internal/protocol"
)

// =============================================================================
// ONE-SHOT STREAMING SENDER
// =============================================================================

// StreamConfig holds configuration for the one-shot transport.
type StreamConfig struct {
	// URL is the streaming endpoint, e.g. "http://127.0.0.1:8000/api/v1/chat/stream".
	URL string
}

// Stream sends each turn as a single POST whose chunked response body is the
// token stream. Unlike the duplex channel there is no connection to manage
// and no reconnection: a transport failure fails the turn, inline, with no
// retry. Each request gets its own abort handle through the context passed
// to Send.
type Stream struct {
	cfg        StreamConfig
	handler    Handler
	httpClient *http.Client
	logger     *log.Logger
}

// NewStream creates a one-shot streaming sender.
// The http.Client deliberately has no timeout: the stream runs as long as
// the assistant keeps producing tokens, and a stalled stream is not timed
// out client-side. Cancellation happens through the Send context.
func NewStream(cfg StreamConfig, handler Handler, logger *log.Logger) *Stream {
	if cfg.URL == "" {
		cfg.URL = "http://127.0.0.1:8000/api/v1/chat/stream"
	}
	if logger == nil {
		logger = log.New(log.Writer(), "stream: ", log.LstdFlags)
	}
	return &Stream{
		cfg:        cfg,
		handler:    handler,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Ready always reports true: the one-shot transport holds no connection, so
// every turn may be attempted.
func (s *Stream) Ready() bool { return true }

// Send posts one turn and blocks until the response stream terminates or ctx
// is cancelled. Response events are delivered to the handler in order. Any
// failure — bad status, broken body, missing terminator — is delivered as a
// terminal error event so the in-flight response always resolves, and is
// also returned for logging.
func (s *Stream) Send(ctx context.Context, content string) error {
	body, err := json.Marshal(protocol.ClientFrame{Content: content})
	if err != nil {
		return s.fail(&Error{Type: ErrTypeUnknown, Message: "failed to encode message", Cause: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return s.fail(&Error{Type: ErrTypeConnection, Message: "failed to create request", Cause: err})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Deliberate abort: the in-flight response was already discarded
			// by the caller, so no error event is synthesized.
			return err
		}
		return s.fail(&Error{Type: ErrTypeConnection, Message: "failed to reach the assistant", Cause: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.fail(&Error{
			Type:    ErrTypeBadStatus,
			Message: "assistant request failed: " + resp.Status,
		})
	}

	scanner := protocol.NewStreamScanner(resp.Body)
	for scanner.Scan() {
		s.handler(scanner.Event())
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return err
		}
		return s.fail(&Error{Type: ErrTypeConnection, Message: "response stream broke", Cause: err})
	}
	if !scanner.Terminated() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.fail(&Error{Type: ErrTypeTruncated, Message: "response stream ended unexpectedly"})
	}
	return nil
}

// fail logs the error, delivers it as a terminal event, and returns it.
func (s *Stream) fail(err *Error) error {
	s.logger.Printf("one-shot turn failed: %v", err)
	s.handler(protocol.ErrorEvent(err.Message))
	return err
}
