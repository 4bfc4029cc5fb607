// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for scolaia.
//
// This package saves and loads conversations to a local SQLite database,
// with support for search, listing, pruning, and export.
//
// # Key Types
//
//   - HistoryStore: SQLite-backed conversation store
//   - ErrConversationNotFound: sentinel for missing conversations
//
// # Usage
//
// Open a store and save a conversation:
//
//	store, err := storage.Open(path, 200)
//	err = store.Save(conversation)
//
// List and load conversations:
//
//	metas, err := store.List()
//	conv, err := store.Load(metas[0].ID)
//
// Search by message content:
//
//	results, err := store.SearchMessages("query text")
//
// # Storage Location
//
// The database lives at ~/.scolaia/history.db by default.
package storage
