// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for scolaia.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/scolaia/scolaia-tui/internal/model"
	"github.com/scolaia/scolaia-tui/internal/util"
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	transport  TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	attachments     TEXT NOT NULL DEFAULT '',
	is_error        INTEGER NOT NULL DEFAULT 0,
	ttft_ms         INTEGER NOT NULL DEFAULT 0,
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, position);
CREATE INDEX IF NOT EXISTS idx_conversations_updated
	ON conversations(updated_at DESC);
`

// =============================================================================
// HISTORY STORE
// =============================================================================

// HistoryStore persists conversations to a local SQLite database.
type HistoryStore struct {
	db *sql.DB

	// MaxConversations limits stored conversations (0 = unlimited).
	// Oldest conversations are pruned on save when the limit is exceeded.
	MaxConversations int
}

// DefaultDBPath returns the default history database path.
func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".scolaia", "history.db"), nil
}

// Open opens (or creates) the history database at path.
func Open(path string, maxConversations int) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &HistoryStore{db: db, MaxConversations: maxConversations}, nil
}

// Close closes the store and releases resources.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a conversation, replacing any previous snapshot of it.
// Streaming messages are skipped: only resolved turns are written.
func (s *HistoryStore) Save(conv *model.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	created := conv.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = tx.Exec(`
		INSERT INTO conversations (id, title, transport, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			transport = excluded.transport,
			updated_at = excluded.updated_at
	`, conv.ID, conv.GetTitle(), conv.Transport, created.Unix(), now.Unix())
	if err != nil {
		return err
	}

	// Replace the message snapshot wholesale; diffing individual rows is
	// not worth it for conversation-sized data.
	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", conv.ID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages
			(id, conversation_id, position, role, content, attachments, is_error, ttft_ms, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	pos := 0
	for _, msg := range conv.Messages {
		if msg.IsStreaming {
			continue
		}
		attachments := ""
		if len(msg.Attachments) > 0 {
			data, err := json.Marshal(msg.Attachments)
			if err != nil {
				return err
			}
			attachments = string(data)
		}
		isError := 0
		if msg.IsError {
			isError = 1
		}
		_, err = stmt.Exec(
			msg.ID, conv.ID, pos, string(msg.Role), msg.Content, attachments,
			isError, msg.TTFT.Milliseconds(), msg.TotalDuration.Milliseconds(),
			msg.Timestamp.Unix(),
		)
		if err != nil {
			return err
		}
		pos++
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if s.MaxConversations > 0 {
		s.enforceLimit()
	}
	return nil
}

// enforceLimit removes oldest conversations if over limit.
func (s *HistoryStore) enforceLimit() {
	s.db.Exec(`
		DELETE FROM conversations WHERE id IN (
			SELECT id FROM conversations
			ORDER BY updated_at DESC
			LIMIT -1 OFFSET ?
		)
	`, s.MaxConversations)
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID.
func (s *HistoryStore) Load(id string) (*model.Conversation, error) {
	conv := &model.Conversation{ID: id}

	var created, updated int64
	err := s.db.QueryRow(`
		SELECT title, transport, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&conv.Title, &conv.Transport, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.CreatedAt = time.Unix(created, 0)
	conv.UpdatedAt = time.Unix(updated, 0)

	rows, err := s.db.Query(`
		SELECT id, role, content, attachments, is_error, ttft_ms, duration_ms, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg         model.Message
			role        string
			attachments string
			isError     int
			ttftMs      int64
			durationMs  int64
			ts          int64
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &attachments, &isError, &ttftMs, &durationMs, &ts); err != nil {
			return nil, err
		}
		msg.Role = model.Role(role)
		msg.IsError = isError != 0
		msg.TTFT = time.Duration(ttftMs) * time.Millisecond
		msg.TotalDuration = time.Duration(durationMs) * time.Millisecond
		msg.Timestamp = time.Unix(ts, 0)
		if attachments != "" {
			if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
				return nil, err
			}
		}
		m := msg
		conv.Messages = append(conv.Messages, &m)
	}
	return conv, rows.Err()
}

// LoadByIndex loads a conversation by its index in the list (0 = most recent).
func (s *HistoryStore) LoadByIndex(index int) (*model.Conversation, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(metas) {
		return nil, ErrConversationNotFound
	}
	return s.Load(metas[index].ID)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved conversations (most recent first).
func (s *HistoryStore) List() ([]model.ConversationMeta, error) {
	rows, err := s.db.Query(`
		SELECT
			c.id, c.title, c.transport, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
			COALESCE((
				SELECT m.content FROM messages m
				WHERE m.conversation_id = c.id AND m.role = 'user'
				ORDER BY m.position LIMIT 1
			), '')
		FROM conversations c
		ORDER BY c.updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []model.ConversationMeta
	for rows.Next() {
		var (
			meta             model.ConversationMeta
			created, updated int64
			preview          string
		)
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.Transport, &created, &updated, &meta.MessageCount, &preview); err != nil {
			return nil, err
		}
		meta.CreatedAt = time.Unix(created, 0)
		meta.UpdatedAt = time.Unix(updated, 0)
		meta.Preview = util.TruncateRunes(strings.ReplaceAll(preview, "\n", " "), 80)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// SearchMessages searches conversations by message content.
// Returns conversations where any message contains the query string
// (case-insensitive), most recent first.
func (s *HistoryStore) SearchMessages(query string) ([]model.ConversationMeta, error) {
	if query == "" {
		return s.List()
	}

	all, err := s.List()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT DISTINCT conversation_id FROM messages
		WHERE content LIKE '%' || ? || '%' COLLATE NOCASE
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matched := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		matched[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []model.ConversationMeta
	for _, meta := range all {
		if matched[meta.ID] {
			results = append(results, meta)
		}
	}
	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation by ID.
func (s *HistoryStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Clear removes all saved conversations.
func (s *HistoryStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM conversations")
	return err
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
