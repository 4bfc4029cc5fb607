// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/scolaia/scolaia-tui/internal/engine"
	"github.com/scolaia/scolaia-tui/internal/model"
)

// Update is the Bubble Tea update loop.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg.Width, msg.Height)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	// ----- engine-originated messages -----

	case userTurnMsg:
		m.conversation.AddUserMessage(msg.text, msg.attachments)
		m.refreshViewport()
		return m, nil

	case assistantStartMsg:
		target := m.conversation.AddAssistantMessage()
		m.targets[msg.id] = target
		m.streamBuf.Reset()
		m.streamingID = msg.id
		m.refreshViewport()
		return m, nil

	case streamChunkMsg:
		if msg.id != m.streamingID {
			// A chunk for a finished or aborted response; drop it.
			return m, nil
		}
		m.streamBuf.Write(msg.text)
		if !m.ticking {
			m.ticking = true
			return m, streamTickCmd()
		}
		return m, nil

	case StreamTickMsg:
		if m.streamingID == "" {
			m.ticking = false
			return m, nil
		}
		if content, ok := m.streamBuf.Flush(); ok {
			if target := m.targets[m.streamingID]; target != nil {
				target.AppendToken(content)
			}
			m.refreshViewport()
		}
		return m, streamTickCmd()

	case streamRenderedMsg:
		if target := m.resolveStream(msg.id); target != nil {
			// The raw concatenation becomes the stored content; the
			// rendered form is display-only.
			target.FinalizeStream(target.GetDisplayContent(), msg.text, nil)
		}
		m.refreshViewport()
		return m, m.saveCmd()

	case streamErrorMsg:
		if target := m.resolveStream(msg.id); target != nil {
			target.FailStream(msg.message)
		}
		m.refreshViewport()
		return m, m.saveCmd()

	case systemNoticeMsg:
		m.conversation.AddSystemMessage(msg.text)
		m.refreshViewport()
		return m, nil

	case loadingMsg:
		m.loading = msg.loading
		if msg.loading {
			return m, m.spinner.Tick
		}
		return m, nil

	case connStateMsg:
		m.connState = msg.state
		return m, nil

	case attachmentsMsg:
		m.attachedNames = msg.names
		m.handleResize(m.width, m.height)
		m.refreshViewport()
		return m, nil

	case submitDoneMsg:
		if errors.Is(msg.err, engine.ErrBusy) {
			m.conversation.AddSystemMessage("Please wait for the current response to finish.")
			m.refreshViewport()
		}
		// ErrEmpty and transport errors are already surfaced by the engine.
		return m, nil
	}

	// Everything else feeds the focused widgets.
	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, taCmd, vpCmd)
	return m, tea.Batch(cmds...)
}

// resolveStream drains any buffered tail into the response's message and
// clears the in-flight bookkeeping. Returns nil for unknown IDs.
func (m *Model) resolveStream(id string) *model.Message {
	target := m.targets[id]
	if target == nil {
		return nil
	}
	if id == m.streamingID {
		if content, ok := m.streamBuf.ForceFlush(); ok {
			target.AppendToken(content)
		}
		m.streamingID = ""
	}
	delete(m.targets, id)
	return target
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		if m.loading {
			session := m.session
			return m, func() tea.Msg {
				session.Abort()
				return nil
			}
		}
		return m, tea.Quit

	case tea.KeyEnter:
		// Alt+Enter inserts a newline; plain Enter sends.
		if msg.Alt {
			break
		}
		return m.handleSubmit()

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// handleSubmit dispatches the typed input, routing slash commands locally.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := m.textarea.Value()
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "/") {
		m.textarea.Reset()
		return m.handleCommand(trimmed)
	}

	if trimmed == "" && (m.attachments == nil || m.attachments.Empty()) {
		return m, nil
	}

	m.textarea.Reset()
	session := m.session
	// Submit blocks on nothing but may call back into the sink; run it off
	// the tea loop.
	return m, func() tea.Msg {
		return submitDoneMsg{err: session.Submit(text)}
	}
}

// saveCmd persists the conversation snapshot after a turn resolves.
func (m Model) saveCmd() tea.Cmd {
	if m.store == nil {
		return nil
	}
	store := m.store
	snapshot := m.conversation.Clone()
	logger := m.logger
	return func() tea.Msg {
		if err := store.Save(snapshot); err != nil {
			logger.Printf("history save failed: %v", err)
		}
		return nil
	}
}

// handleResize recomputes widget dimensions.
//
// COUPLING: the constants here mirror the components rendered in view.go;
// a height change there needs a matching change here.
func (m *Model) handleResize(width, height int) {
	m.width = width
	m.height = height
	if width == 0 || height == 0 {
		return
	}

	const (
		headerLines = 1
		statusLines = 1
		// input border + textarea rows
		inputLines = inputHeight + 1
	)
	chipLines := 0
	if len(m.attachedNames) > 0 {
		chipLines = 1
	}

	vpHeight := height - headerLines - statusLines - inputLines - chipLines
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(width - 2)
}
