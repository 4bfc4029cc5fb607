// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/scolaia/scolaia-tui/internal/model"
	"github.com/scolaia/scolaia-tui/internal/util"
)

// =============================================================================
// CONVERSATION EXPORT
// =============================================================================

// ExportMarkdown renders a conversation as a Markdown document with
// metadata, timestamps, and role labels.
func ExportMarkdown(conv *model.Conversation) string {
	var sb strings.Builder
	sb.WriteString("# " + conv.GetTitle() + "\n\n")
	sb.WriteString("Created: " + conv.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range conv.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "** (" + msg.Timestamp.Format("15:04") + "):\n\n")
		if len(msg.Attachments) > 0 {
			sb.WriteString("_Attachments: " + strings.Join(msg.Attachments, ", ") + "_\n\n")
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// ExportJSON renders a conversation as pretty-printed JSON.
func ExportJSON(conv *model.Conversation) ([]byte, error) {
	return json.MarshalIndent(conv, "", "  ")
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatConversationList formats conversation metadata as a plain table for
// terminal display.
func FormatConversationList(metas []model.ConversationMeta) string {
	if len(metas) == 0 {
		return "No conversations found."
	}

	var sb strings.Builder
	sb.WriteString("Conversations:\n")
	sb.WriteString("-----------------------------------------------------\n")
	sb.WriteString(pad("ID", 14) + " " + pad("Updated", 18) + " " + pad("Msgs", 5) + " Title\n")
	sb.WriteString("-----------------------------------------------------\n")

	for _, m := range metas {
		id := m.ID
		if len(id) > 14 {
			id = id[:14]
		}
		sb.WriteString(pad(id, 14) + " " +
			pad(m.UpdatedAt.Format("2006-01-02 15:04"), 18) + " " +
			pad(util.IntToString(m.MessageCount), 5) + " " +
			util.TruncateRunes(m.Title, 40) + "\n")
	}
	return sb.String()
}

// pad pads a string to the given rune width with spaces.
func pad(s string, width int) string {
	n := util.RuneLen(s)
	for i := n; i < width; i++ {
		s += " "
	}
	return s
}
