// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat conversations and individual messages.
//
// # Key Types
//
//   - Conversation: Container for a chat session with messages and metadata
//   - Message: Single message with role, content, timestamp, and attachments
//   - Role: Message role enumeration (user, assistant, system)
//   - Statistics: Timing data for one assistant response
//
// # Usage
//
// Create a new conversation:
//
//	conv := model.NewConversation()
//	conv.AddUserMessage("Hello!", nil)
//
// Stream an assistant response:
//
//	msg := conv.AddAssistantMessage()
//	msg.AppendToken("Hi ")
//	msg.AppendToken("there")
//	msg.FinalizeStream("Hi there", rendered, stats)
package model
