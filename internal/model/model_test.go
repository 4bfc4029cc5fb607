// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_StreamingLifecycle(t *testing.T) {
	msg := NewAssistantMessage()
	if !msg.IsStreaming {
		t.Fatal("new assistant message should be streaming")
	}

	msg.AppendToken("Hello")
	msg.AppendToken(", world")
	if got := msg.GetDisplayContent(); got != "Hello, world" {
		t.Errorf("GetDisplayContent() = %q, want %q", got, "Hello, world")
	}

	msg.FinalizeStream("Hello, world", "rendered", nil)
	if msg.IsStreaming {
		t.Error("message should no longer be streaming after finalize")
	}
	if msg.Content != "Hello, world" {
		t.Errorf("Content = %q, want %q", msg.Content, "Hello, world")
	}
	if got := msg.GetDisplayContent(); got != "rendered" {
		t.Errorf("GetDisplayContent() = %q, want rendered form", got)
	}
}

func TestMessage_FinalizeOverridesStreamedContent(t *testing.T) {
	// The server's cumulative text wins over the local concatenation.
	msg := NewAssistantMessage()
	msg.AppendToken("A")
	msg.AppendToken("A")

	msg.FinalizeStream("AB", "", nil)
	if msg.Content != "AB" {
		t.Errorf("Content = %q, want the final text %q", msg.Content, "AB")
	}
}

func TestMessage_FailStreamDropsPartialContent(t *testing.T) {
	msg := NewAssistantMessage()
	msg.AppendToken("partial answer")

	msg.FailStream("Error: model overloaded")
	if !msg.IsError {
		t.Error("message should be marked as error")
	}
	if msg.IsStreaming {
		t.Error("message should no longer be streaming")
	}
	if got := msg.GetDisplayContent(); got != "Error: model overloaded" {
		t.Errorf("GetDisplayContent() = %q, want the error text", got)
	}
	if strings.Contains(msg.Content, "partial") {
		t.Error("partial streamed content must be discarded on error")
	}
}

func TestMessage_AppendIgnoredAfterFinalize(t *testing.T) {
	msg := NewAssistantMessage()
	msg.FinalizeStream("done", "", nil)
	msg.AppendToken("late token")
	if msg.Content != "done" {
		t.Errorf("Content = %q, want %q", msg.Content, "done")
	}
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage(strings.Repeat("x", 100), nil)
	preview := msg.Preview(10)
	if len([]rune(preview)) != 10 {
		t.Errorf("Preview length = %d runes, want 10", len([]rune(preview)))
	}
	if !strings.HasSuffix(preview, "...") {
		t.Errorf("Preview = %q, want ellipsis suffix", preview)
	}
}

func TestMessage_UserAttachments(t *testing.T) {
	msg := NewUserMessage("summarize", []string{"notes.pdf", "essay.docx"})
	if len(msg.Attachments) != 2 {
		t.Fatalf("Attachments = %v, want 2 entries", msg.Attachments)
	}
	if msg.Attachments[0] != "notes.pdf" {
		t.Errorf("Attachments[0] = %q, want notes.pdf", msg.Attachments[0])
	}
}

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "ScolaIA"},
		{RoleSystem, "System"},
		{Role("other"), "other"},
	}

	for _, tc := range tests {
		if got := tc.role.DisplayName(); got != tc.want {
			t.Errorf("DisplayName(%s) = %q, want %q", tc.role, got, tc.want)
		}
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_TitleFromFirstUserMessage(t *testing.T) {
	conv := NewConversation()
	conv.AddSystemMessage("Connected")
	conv.AddUserMessage("What is photosynthesis?", nil)
	conv.AddUserMessage("And respiration?", nil)

	if conv.GetTitle() != "What is photosynthesis?" {
		t.Errorf("GetTitle() = %q, want the first user message", conv.GetTitle())
	}
}

func TestConversation_DefaultTitle(t *testing.T) {
	conv := NewConversation()
	if conv.GetTitle() != "New Conversation" {
		t.Errorf("GetTitle() = %q, want default", conv.GetTitle())
	}
}

func TestConversation_LastMessageLookups(t *testing.T) {
	conv := NewConversationWithTransport("duplex")
	conv.AddUserMessage("question", nil)
	assistant := conv.AddAssistantMessage()
	conv.AddSystemMessage("notice")

	if conv.GetLastAssistantMessage() != assistant {
		t.Error("GetLastAssistantMessage should return the streaming message")
	}
	if conv.GetLastUserMessage().Content != "question" {
		t.Error("GetLastUserMessage mismatch")
	}
	if conv.Transport != "duplex" {
		t.Errorf("Transport = %q, want duplex", conv.Transport)
	}
}

func TestConversation_RemoveMessage(t *testing.T) {
	conv := NewConversation()
	msg := conv.AddUserMessage("to remove", nil)

	if !conv.RemoveMessage(msg.ID) {
		t.Fatal("RemoveMessage should report success")
	}
	if conv.RemoveMessage(msg.ID) {
		t.Error("second removal should report failure")
	}
	if !conv.IsEmpty() {
		t.Error("conversation should be empty after removal")
	}
}

func TestConversation_PruneKeepsSystemMessages(t *testing.T) {
	conv := NewConversation()
	conv.AddSystemMessage("pinned")
	for i := 0; i < MaxMessages+10; i++ {
		conv.AddUserMessage("msg", nil)
	}

	if conv.MessageCount() != MaxMessages+1 {
		t.Errorf("MessageCount = %d, want %d", conv.MessageCount(), MaxMessages+1)
	}
	if conv.Messages[0].Role != RoleSystem {
		t.Error("system message should survive pruning")
	}
}

func TestConversation_Clone(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("original", nil)

	clone := conv.Clone()
	clone.Messages[0].Content = "mutated"

	if conv.Messages[0].Content != "original" {
		t.Error("mutating the clone must not affect the source")
	}
}

func TestConversation_Meta(t *testing.T) {
	conv := NewConversationWithTransport("stream")
	conv.AddUserMessage("hello there", nil)

	meta := conv.GetMeta()
	if meta.ID != conv.ID {
		t.Error("meta ID mismatch")
	}
	if meta.Transport != "stream" {
		t.Errorf("meta Transport = %q, want stream", meta.Transport)
	}
	if meta.MessageCount != 1 {
		t.Errorf("meta MessageCount = %d, want 1", meta.MessageCount)
	}
}
