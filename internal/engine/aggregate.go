// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"log"
	"strings"
	"sync"

	"github.com/scolaia/scolaia-tui/internal/protocol"
)

// =============================================================================
// IN-FLIGHT RESPONSE
// =============================================================================

// inFlight tracks one assistant response currently streaming.
// State machine: Streaming -> Completed or Streaming -> Failed; the struct
// is discarded on either terminal transition.
type inFlight struct {
	target RenderTarget

	// raw is the locally concatenated token record. On the one-shot
	// transport it is the only record of the response.
	raw strings.Builder

	// authoritative is the server-declared cumulative text (duplex only).
	// When present it overrides raw at completion, which self-heals dropped
	// or duplicated tokens.
	authoritative    string
	hasAuthoritative bool

	// explicit marks responses created by a submission (as opposed to the
	// assistant speaking unprompted, e.g. the connect greeting). Only
	// explicit responses toggled the loading gate on.
	explicit bool
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator consumes normalized protocol events and maintains the single
// in-flight response. Events must be applied in delivery order; the
// aggregator never reorders or coalesces beyond appending raw text.
type Aggregator struct {
	sink     Sink
	renderer Renderer
	gate     LoadingGate
	logger   *log.Logger

	mu      sync.Mutex
	current *inFlight
}

// NewAggregator creates a response aggregator.
func NewAggregator(sink Sink, renderer Renderer, gate LoadingGate, logger *log.Logger) *Aggregator {
	if gate == nil {
		gate = nopGate{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "engine: ", log.LstdFlags)
	}
	return &Aggregator{sink: sink, renderer: renderer, gate: gate, logger: logger}
}

// Active reports whether a response is in flight.
func (a *Aggregator) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil
}

// Begin binds a new in-flight response to target. It returns false if one
// already exists; the caller must treat that as a rejected submission.
func (a *Aggregator) Begin(target RenderTarget) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		return false
	}
	a.current = &inFlight{target: target, explicit: true}
	a.gate.SetLoading(true)
	return true
}

// Apply processes one event against the in-flight response.
func (a *Aggregator) Apply(ev protocol.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Type {
	case protocol.EventToken:
		cur := a.current
		if cur == nil {
			// The assistant spoke unprompted (the connect greeting does
			// this). Bind a fresh target so the response has somewhere to
			// live.
			cur = &inFlight{target: a.sink.NewAssistantTarget()}
			a.current = cur
		}
		cur.target.AppendRaw(ev.Token)
		cur.raw.WriteString(ev.Token)
		if ev.HasCumulative {
			cur.authoritative = ev.Cumulative
			cur.hasAuthoritative = true
		}

	case protocol.EventComplete:
		cur := a.current
		if cur == nil {
			a.logger.Printf("complete event with no response in flight; ignored")
			return
		}
		if ev.HasCumulative {
			cur.authoritative = ev.Cumulative
			cur.hasAuthoritative = true
		}
		// Exactly one markdown render pass, preferring the server's view of
		// the full text over local reconstruction.
		final := cur.raw.String()
		if cur.hasAuthoritative {
			final = cur.authoritative
		}
		cur.target.SetRendered(a.renderer.Render(final))
		a.finishLocked()

	case protocol.EventError:
		cur := a.current
		if cur == nil {
			// Nothing streaming; a connection-level error with no response
			// in flight is not the aggregator's problem.
			a.logger.Printf("error event with no response in flight: %s", ev.Message)
			return
		}
		cur.target.SetError(formatError(ev.Message))
		a.finishLocked()
	}
}

// Abort fails the in-flight response after a user-initiated cancellation.
func (a *Aggregator) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return
	}
	a.current.target.SetError(formatError("response stopped"))
	a.finishLocked()
}

// finishLocked discards the in-flight state and releases the loading gate.
// Caller holds a.mu.
func (a *Aggregator) finishLocked() {
	a.current = nil
	a.gate.SetLoading(false)
}

func formatError(message string) string {
	if message == "" {
		message = "the assistant reported an error"
	}
	return "Error: " + message
}
