// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"log"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/scolaia/scolaia-tui/internal/attach"
	"github.com/scolaia/scolaia-tui/internal/engine"
	"github.com/scolaia/scolaia-tui/internal/model"
	"github.com/scolaia/scolaia-tui/internal/storage"
	"github.com/scolaia/scolaia-tui/internal/transport"
	"github.com/scolaia/scolaia-tui/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// MaxInputChars bounds one turn's typed input.
	MaxInputChars = 8000

	// inputHeight is the textarea height in rows.
	inputHeight = 3
)

// =============================================================================
// MODEL
// =============================================================================

// Options wires the chat model's collaborators.
type Options struct {
	Theme        *styles.Theme
	Session      *engine.Session
	Attachments  *attach.Pipeline
	Store        *storage.HistoryStore // nil disables history
	Conversation *model.Conversation   // nil starts a fresh one
	Logger       *log.Logger
}

// Model is the Bubble Tea model for the chat view.
//
// Layout: header (1 line) + messages viewport + [attachment chips] +
// input area + status bar (1 line).
type Model struct {
	width  int
	height int
	ready  bool

	theme    *styles.Theme
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	conversation *model.Conversation
	session      *engine.Session
	attachments  *attach.Pipeline
	store        *storage.HistoryStore
	logger       *log.Logger

	// targets maps sink-allocated response IDs to their visible messages.
	targets map[string]*model.Message

	// streamBuf batches raw chunks for the in-flight response; streamingID
	// names the response the buffer belongs to.
	streamBuf   *StreamingBuffer
	streamingID string
	ticking     bool

	loading       bool
	connState     transport.ConnState
	attachedNames []string
}

// New creates the chat model.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(true)
	}
	if opts.Conversation == nil {
		kind := ""
		if opts.Session != nil {
			kind = string(opts.Session.Kind())
		}
		opts.Conversation = model.NewConversationWithTransport(kind)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "chat: ", log.LstdFlags)
	}

	ta := textarea.New()
	ta.Placeholder = "Ask ScolaIA anything... (/help for commands)"
	ta.Prompt = "┃ "
	ta.CharLimit = MaxInputChars
	ta.SetHeight(inputHeight)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Spinner

	return Model{
		theme:        opts.Theme,
		textarea:     ta,
		spinner:      sp,
		conversation: opts.Conversation,
		session:      opts.Session,
		attachments:  opts.Attachments,
		store:        opts.Store,
		logger:       opts.Logger,
		targets:      make(map[string]*model.Message),
		streamBuf:    NewStreamingBuffer(),
		connState:    transport.StateDisconnected,
	}
}

// Conversation exposes the current conversation, e.g. for saving on exit.
func (m Model) Conversation() *model.Conversation {
	return m.conversation
}

// Init starts the textarea blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}
