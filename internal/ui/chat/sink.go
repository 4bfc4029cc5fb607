// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/scolaia/scolaia-tui/internal/engine"
	"github.com/scolaia/scolaia-tui/internal/transport"
)

// =============================================================================
// ENGINE -> TEA BRIDGE
// =============================================================================

// Sink adapts the Bubble Tea program to the engine's presentation
// interfaces (engine.Sink and engine.LoadingGate). Every call forwards a
// message into the tea loop, so it is safe to invoke from transport
// goroutines.
//
// The sink is created before the program exists (the model needs it, the
// program needs the model); Attach wires the send function once the program
// is running. Calls before Attach are dropped, which only affects events
// fired during startup.
type Sink struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// NewSink creates an unattached sink.
func NewSink() *Sink {
	return &Sink{}
}

// Attach connects the sink to a running program.
func (s *Sink) Attach(p *tea.Program) {
	s.mu.Lock()
	s.send = p.Send
	s.mu.Unlock()
}

func (s *Sink) post(msg tea.Msg) {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// RenderUserTurn shows the user's turn with its attachment chips.
func (s *Sink) RenderUserTurn(text string, attachments []string) {
	s.post(userTurnMsg{text: text, attachments: attachments})
}

// NewAssistantTarget allocates the render surface for the next response.
func (s *Sink) NewAssistantTarget() engine.RenderTarget {
	id := uuid.NewString()
	s.post(assistantStartMsg{id: id})
	return &teaTarget{id: id, sink: s}
}

// SystemMessage shows an out-of-band notice.
func (s *Sink) SystemMessage(text string) {
	s.post(systemNoticeMsg{text: text})
}

// SetLoading toggles the input gate and spinner.
func (s *Sink) SetLoading(loading bool) {
	s.post(loadingMsg{loading: loading})
}

// ConnStateChanged reflects a duplex lifecycle change in the status bar.
// Wire it as the transport's onState callback.
func (s *Sink) ConnStateChanged(state transport.ConnState) {
	s.post(connStateMsg{state: state})
}

// AttachmentsChanged refreshes the attachment chips. Wire it as the
// pipeline's onPreview hook.
func (s *Sink) AttachmentsChanged(names []string) {
	s.post(attachmentsMsg{names: names})
}

// Alert surfaces a blocking pipeline failure as a system notice. Wire it as
// the pipeline's onAlert hook.
func (s *Sink) Alert(message string) {
	s.post(systemNoticeMsg{text: message})
}

// teaTarget is the render surface for one assistant message.
type teaTarget struct {
	id   string
	sink *Sink
}

func (t *teaTarget) AppendRaw(text string) {
	t.sink.post(streamChunkMsg{id: t.id, text: text})
}

func (t *teaTarget) SetRendered(text string) {
	t.sink.post(streamRenderedMsg{id: t.id, text: text})
}

func (t *teaTarget) SetError(message string) {
	t.sink.post(streamErrorMsg{id: t.id, message: message})
}
