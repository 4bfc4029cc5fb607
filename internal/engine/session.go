// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/scolaia/scolaia-tui/internal/attach"
	"github.com/scolaia/scolaia-tui/internal/protocol"
	"github.com/scolaia/scolaia-tui/internal/transport"
)

// =============================================================================
// SUBMISSION ERRORS
// =============================================================================

var (
	// ErrBusy means a response is already in flight. The submission is
	// dropped; nothing is queued.
	ErrBusy = errors.New("a response is already in flight")

	// ErrEmpty means there was nothing to send: no text, no attachments,
	// no pending extracted text.
	ErrEmpty = errors.New("nothing to send")
)

// Dispatcher is the transport surface the session needs: dispatch one turn
// and say whether dispatching is currently possible.
type Dispatcher interface {
	Send(ctx context.Context, content string) error
	Ready() bool
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one open chat view: a transport, an aggregator, and the
// attachment pipeline, bound together by the submission flow.
type Session struct {
	id          string
	kind        transport.Kind
	dispatcher  Dispatcher
	agg         *Aggregator
	attachments *attach.Pipeline
	sink        Sink
	logger      *log.Logger

	// launch runs the dispatch concurrently; tests replace it to run inline.
	launch func(fn func())

	mu     sync.Mutex
	cancel context.CancelFunc // abort handle for the active one-shot request
}

// NewSession creates a chat session over the given transport.
func NewSession(kind transport.Kind, dispatcher Dispatcher, agg *Aggregator, attachments *attach.Pipeline, sink Sink, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(log.Writer(), "session: ", log.LstdFlags)
	}
	return &Session{
		id:          uuid.NewString(),
		kind:        kind,
		dispatcher:  dispatcher,
		agg:         agg,
		attachments: attachments,
		sink:        sink,
		logger:      logger,
		launch:      func(fn func()) { go fn() },
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Kind returns the transport kind this session uses.
func (s *Session) Kind() transport.Kind { return s.kind }

// Busy reports whether a response is in flight.
func (s *Session) Busy() bool { return s.agg.Active() }

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit runs one turn through the submission flow:
//
//  1. drop if a response is already in flight (single in-flight invariant)
//  2. drop if there is nothing to send
//  3. reject with a visible system message if the transport is down
//  4. render the user's turn optimistically, with attachment chips
//  5. bind a fresh render target and dispatch the payload
//  6. clear the attachment set regardless of transport outcome
//
// The loading gate engages when the in-flight response is bound and
// releases on complete/error.
func (s *Session) Submit(userText string) error {
	if s.agg.Active() {
		s.logger.Printf("submission dropped: response in flight")
		return ErrBusy
	}

	extracted := s.attachments.ExtractedText()
	if strings.TrimSpace(userText) == "" && s.attachments.Empty() && extracted == "" {
		return ErrEmpty
	}

	if !s.dispatcher.Ready() {
		s.sink.SystemMessage("Connection error: the assistant is unreachable. Reconnecting...")
		return transport.ErrNotConnected
	}

	payload := buildPayload(userText, extracted)

	s.sink.RenderUserTurn(userText, s.attachments.Names())

	if !s.agg.Begin(s.sink.NewAssistantTarget()) {
		// Lost the race with an unprompted response; treat as busy.
		return ErrBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.launch(func() {
		defer cancel()
		if err := s.dispatcher.Send(ctx, payload); err != nil {
			if errors.Is(err, context.Canceled) {
				// User abort; Abort already resolved the response.
				return
			}
			s.logger.Printf("dispatch failed: %v", err)
			if s.kind == transport.KindDuplex {
				// The one-shot transport surfaces its own failure events;
				// the duplex write path does not.
				s.agg.Apply(protocol.ErrorEvent("failed to send message"))
			}
		}
	})

	// Attachments are one-shot per turn.
	s.attachments.Clear()
	return nil
}

// Abort cancels the active one-shot request, if any, and fails the
// in-flight response. The duplex transport has no mid-stream cancellation;
// for it this only resolves the local state.
func (s *Session) Abort() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.agg.Abort()
}

// buildPayload merges the extracted attachment text into the outgoing turn.
func buildPayload(userText, extracted string) string {
	if extracted == "" {
		return userText
	}
	return userText + "\n\nReference text: [" + extracted + "]"
}
