// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/scolaia/scolaia-tui/internal/attach"
	"github.com/scolaia/scolaia-tui/internal/model"
	"github.com/scolaia/scolaia-tui/internal/storage"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const helpText = `Commands:
  /help              Show this help
  /new               Start a new conversation
  /attach <file>     Attach a file to the next turn
  /files             List queued attachments
  /detach <n>        Remove attachment n (1-based)
  /history           List saved conversations
  /resume <n>        Resume a saved conversation
  /export <file>     Export this conversation as Markdown
  /quit              Exit

Enter sends, Alt+Enter inserts a newline, Esc stops a response.`

// handleCommand dispatches a typed slash command.
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "/help":
		m.conversation.AddSystemMessage(helpText)
		m.refreshViewport()
		return m, nil

	case "/new":
		return m.commandNew()

	case "/attach":
		return m.commandAttach(args)

	case "/files":
		return m.commandFiles()

	case "/detach":
		return m.commandDetach(args)

	case "/history":
		return m.commandHistory()

	case "/resume":
		return m.commandResume(args)

	case "/export":
		return m.commandExport(args)

	case "/quit", "/exit":
		return m, tea.Quit

	default:
		m.conversation.AddSystemMessage(fmt.Sprintf("Unknown command %s. Try /help.", cmd))
		m.refreshViewport()
		return m, nil
	}
}

func (m Model) commandNew() (tea.Model, tea.Cmd) {
	save := m.saveCmd()
	kind := ""
	if m.session != nil {
		kind = string(m.session.Kind())
	}
	m.conversation = model.NewConversationWithTransport(kind)
	m.targets = make(map[string]*model.Message)
	m.streamingID = ""
	m.streamBuf.Reset()
	m.refreshViewport()
	return m, save
}

func (m Model) commandAttach(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		m.conversation.AddSystemMessage("Usage: /attach <file>")
		m.refreshViewport()
		return m, nil
	}
	if m.attachments == nil {
		m.conversation.AddSystemMessage("Attachments are not available in this session.")
		m.refreshViewport()
		return m, nil
	}

	path := strings.Join(args, " ")
	pipeline := m.attachments
	// Reading and extraction block on disk and network; run off the loop.
	// The pipeline's hooks surface the outcome.
	return m, func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return systemNoticeMsg{text: fmt.Sprintf("Could not read %s: %v", path, err)}
		}
		pipeline.AddFiles(context.Background(), []attach.File{{
			Name: filepath.Base(path),
			Data: data,
		}})
		return nil
	}
}

func (m Model) commandFiles() (tea.Model, tea.Cmd) {
	if m.attachments == nil || m.attachments.Empty() {
		m.conversation.AddSystemMessage("No attachments queued.")
	} else {
		var b strings.Builder
		b.WriteString("Queued attachments:")
		for i, name := range m.attachments.Names() {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, name)
		}
		m.conversation.AddSystemMessage(b.String())
	}
	m.refreshViewport()
	return m, nil
}

func (m Model) commandDetach(args []string) (tea.Model, tea.Cmd) {
	if len(args) != 1 {
		m.conversation.AddSystemMessage("Usage: /detach <n>")
		m.refreshViewport()
		return m, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		m.conversation.AddSystemMessage("Usage: /detach <n>")
		m.refreshViewport()
		return m, nil
	}
	if m.attachments == nil {
		m.refreshViewport()
		return m, nil
	}
	pipeline := m.attachments
	return m, func() tea.Msg {
		pipeline.RemoveFile(context.Background(), n-1)
		return nil
	}
}

func (m Model) commandHistory() (tea.Model, tea.Cmd) {
	if m.store == nil {
		m.conversation.AddSystemMessage("History is disabled.")
		m.refreshViewport()
		return m, nil
	}
	store := m.store
	return m, func() tea.Msg {
		metas, err := store.List()
		if err != nil {
			return systemNoticeMsg{text: fmt.Sprintf("Could not list history: %v", err)}
		}
		if len(metas) == 0 {
			return systemNoticeMsg{text: "No saved conversations."}
		}
		return systemNoticeMsg{text: storage.FormatConversationList(metas)}
	}
}

func (m Model) commandResume(args []string) (tea.Model, tea.Cmd) {
	if m.store == nil {
		m.conversation.AddSystemMessage("History is disabled.")
		m.refreshViewport()
		return m, nil
	}
	if len(args) != 1 {
		m.conversation.AddSystemMessage("Usage: /resume <n>")
		m.refreshViewport()
		return m, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		m.conversation.AddSystemMessage("Usage: /resume <n>")
		m.refreshViewport()
		return m, nil
	}

	conv, err := m.store.LoadByIndex(n - 1)
	if err != nil {
		m.conversation.AddSystemMessage(fmt.Sprintf("Could not resume conversation %d: %v", n, err))
		m.refreshViewport()
		return m, nil
	}

	save := m.saveCmd()
	m.conversation = conv
	m.targets = make(map[string]*model.Message)
	m.streamingID = ""
	m.streamBuf.Reset()
	m.refreshViewport()
	return m, save
}

func (m Model) commandExport(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		m.conversation.AddSystemMessage("Usage: /export <file>")
		m.refreshViewport()
		return m, nil
	}
	path := strings.Join(args, " ")
	snapshot := m.conversation.Clone()
	return m, func() tea.Msg {
		data := storage.ExportMarkdown(snapshot)
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			return systemNoticeMsg{text: fmt.Sprintf("Export failed: %v", err)}
		}
		return systemNoticeMsg{text: "Exported conversation to " + path}
	}
}
