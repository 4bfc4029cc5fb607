// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/scolaia/scolaia-tui/internal/engine"
)

// =============================================================================
// PLAIN-TERMINAL SINK
// =============================================================================

// PlainSink implements engine.Sink and engine.LoadingGate for the REPL.
// Responses stream straight to the writer as they arrive; a waiter channel
// lets the REPL block until the in-flight turn resolves.
//
// A plain terminal cannot repaint, so the raw stream is what the user keeps:
// the final rendered form is dropped rather than printed twice.
type PlainSink struct {
	out io.Writer

	mu   sync.Mutex
	done chan struct{}
}

// NewPlainSink creates a sink writing to out.
func NewPlainSink(out io.Writer) *PlainSink {
	return &PlainSink{out: out}
}

// RenderUserTurn echoes attachment chips; the typed text is already on
// screen from the prompt line.
func (s *PlainSink) RenderUserTurn(text string, attachments []string) {
	if len(attachments) > 0 {
		fmt.Fprintf(s.out, "%s\n", infoStyle.Render("[attached: "+strings.Join(attachments, ", ")+"]"))
	}
}

// NewAssistantTarget starts a response block.
func (s *PlainSink) NewAssistantTarget() engine.RenderTarget {
	fmt.Fprintf(s.out, "\n%s ", assistantStyle.Render("ScolaIA:"))
	return &plainTarget{out: s.out}
}

// SystemMessage prints an out-of-band notice.
func (s *PlainSink) SystemMessage(text string) {
	fmt.Fprintf(s.out, "%s\n", warnStyle.Render(text))
}

// SetLoading toggles the in-flight state; the false edge releases Wait.
func (s *PlainSink) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loading {
		if s.done == nil {
			s.done = make(chan struct{})
		}
		return
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

// Wait blocks until the current turn resolves. Returns immediately when
// nothing is in flight.
func (s *PlainSink) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// plainTarget streams one response to the terminal.
type plainTarget struct {
	out io.Writer
}

func (t *plainTarget) AppendRaw(text string) {
	fmt.Fprint(t.out, text)
}

func (t *plainTarget) SetRendered(string) {
	// Raw stream already printed; just close the block.
	fmt.Fprint(t.out, "\n\n")
}

func (t *plainTarget) SetError(message string) {
	fmt.Fprintf(t.out, "\n%s\n\n", errorStyle.Render(message))
}
