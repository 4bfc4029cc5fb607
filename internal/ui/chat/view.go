// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/scolaia/scolaia-tui/internal/model"
	"github.com/scolaia/scolaia-tui/internal/transport"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the complete chat screen.
// Layout: header + messages viewport + [attachment chips] + input + status.
// See handleResize for the matching height arithmetic.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
	}
	if len(m.attachedNames) > 0 {
		sections = append(sections, m.renderChips())
	}
	sections = append(sections, m.renderInput(), m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the one-line title bar.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("ScolaIA")
	subtitle := m.theme.HeaderSubtitle.Render(" · " + m.conversation.GetTitle())
	return truncateLine(title+subtitle, m.width)
}

// renderChips renders the queued attachment names.
func (m Model) renderChips() string {
	chips := make([]string, 0, len(m.attachedNames))
	for _, name := range m.attachedNames {
		chips = append(chips, m.theme.AttachmentChip.Render("📎 "+name))
	}
	return truncateLine(strings.Join(chips, " "), m.width)
}

// renderInput renders the input area, replaced by the thinking line while a
// response is in flight.
func (m Model) renderInput() string {
	if m.loading {
		thinking := m.spinner.View() + m.theme.ThinkingText.Render(" Thinking... press Esc to stop")
		return m.theme.InputContainer.Width(m.width).Render(
			lipgloss.NewStyle().Height(inputHeight).Render(thinking),
		)
	}
	return m.theme.InputContainer.Width(m.width).Render(m.textarea.View())
}

// renderStatusBar renders the one-line footer: connection state, transport
// kind, and shortcut hints.
func (m Model) renderStatusBar() string {
	var conn string
	if m.session != nil && m.session.Kind() == transport.KindStream {
		conn = m.theme.ConnOnline.Render("● http")
	} else {
		switch m.connState {
		case transport.StateOpen:
			conn = m.theme.ConnOnline.Render("● connected")
		case transport.StateConnecting:
			conn = m.theme.ConnRetrying.Render("◌ connecting")
		case transport.StateClosedRetrying:
			conn = m.theme.ConnRetrying.Render("◌ reconnecting")
		default:
			conn = m.theme.ConnOffline.Render("○ offline")
		}
	}

	hints := m.theme.ShortcutKey.Render("Enter") + m.theme.ShortcutDesc.Render(" send  ") +
		m.theme.ShortcutKey.Render("/help") + m.theme.ShortcutDesc.Render(" commands  ") +
		m.theme.ShortcutKey.Render("Ctrl+C") + m.theme.ShortcutDesc.Render(" quit")

	left := conn
	right := hints
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return truncateLine(m.theme.StatusBar.Render(left), m.width)
	}
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

// refreshViewport re-renders the message list and scrolls to the bottom.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// renderMessages renders the conversation transcript.
func (m Model) renderMessages() string {
	msgs := m.conversation.GetHistory()
	if len(msgs) == 0 {
		return m.theme.SystemText.Render("\n  Start by asking a question. Attach course material with /attach <file>.")
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMessage renders one transcript entry.
func (m Model) renderMessage(msg *model.Message) string {
	ts := m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	switch msg.Role {
	case model.RoleUser:
		label := m.theme.UserLabel.Render(msg.Role.DisplayName())
		body := m.theme.UserBubble.Render(wrapText(msg.Content, m.width-2))
		line := fmt.Sprintf("%s %s\n%s", label, ts, body)
		if len(msg.Attachments) > 0 {
			line += "\n" + m.theme.SystemText.Render("  [attached: "+strings.Join(msg.Attachments, ", ")+"]")
		}
		return line

	case model.RoleAssistant:
		label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
		content := msg.GetDisplayContent()
		if msg.IsStreaming && content == "" {
			content = m.theme.ThinkingText.Render("...")
		}
		if msg.IsError {
			content = m.theme.ErrorText.Render(content)
		} else if msg.Rendered == "" {
			// Raw text mid-stream; glamour output is already wrapped.
			content = wrapText(content, m.width-2)
		}
		line := fmt.Sprintf("%s %s\n%s", label, ts, content)
		if stats := msg.FormatStats(); stats != "" {
			line += "\n" + m.theme.StatsLine.Render("  "+stats)
		}
		return line

	default:
		return m.theme.SystemText.Render(wrapText(msg.Content, m.width-2))
	}
}

// =============================================================================
// TEXT HELPERS
// =============================================================================

// wrapText soft-wraps text at the given display width, preserving existing
// newlines. Width-aware so CJK text wraps correctly.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	if runewidth.StringWidth(line) <= width {
		return []string{line}
	}
	var wrapped []string
	var current strings.Builder
	currentWidth := 0
	for _, word := range strings.Split(line, " ") {
		w := runewidth.StringWidth(word)
		if currentWidth > 0 && currentWidth+1+w > width {
			wrapped = append(wrapped, current.String())
			current.Reset()
			currentWidth = 0
		}
		if currentWidth > 0 {
			current.WriteString(" ")
			currentWidth++
		}
		current.WriteString(word)
		currentWidth += w
	}
	if current.Len() > 0 {
		wrapped = append(wrapped, current.String())
	}
	if len(wrapped) == 0 {
		return []string{""}
	}
	return wrapped
}

// truncateLine clips a styled line to the terminal width.
func truncateLine(line string, width int) string {
	if width <= 0 || lipgloss.Width(line) <= width {
		return line
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(line)
}
