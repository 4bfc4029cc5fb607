// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/scolaia/scolaia-tui/internal/transport"
)

// =============================================================================
// TEA MESSAGES
// =============================================================================

// The engine and transports run in their own goroutines; everything they
// want to show crosses into the Bubble Tea loop as one of these messages.

// userTurnMsg shows the user's own turn optimistically.
type userTurnMsg struct {
	text        string
	attachments []string
}

// assistantStartMsg allocates the visible assistant message for a response.
type assistantStartMsg struct {
	id string
}

// streamChunkMsg carries a batch of raw streamed text for one response.
type streamChunkMsg struct {
	id   string
	text string
}

// streamRenderedMsg replaces a response's content with its final
// markdown-rendered form.
type streamRenderedMsg struct {
	id   string
	text string
}

// streamErrorMsg replaces a response's content with an error line.
type streamErrorMsg struct {
	id      string
	message string
}

// systemNoticeMsg shows an out-of-band notice, e.g. a connection error.
type systemNoticeMsg struct {
	text string
}

// loadingMsg toggles the in-flight state.
type loadingMsg struct {
	loading bool
}

// connStateMsg reflects a duplex channel state change in the status bar.
type connStateMsg struct {
	state transport.ConnState
}

// attachmentsMsg refreshes the visible attachment chips.
type attachmentsMsg struct {
	names []string
}

// submitDoneMsg reports the synchronous outcome of a Submit call.
type submitDoneMsg struct {
	err error
}

// StreamTickMsg drives the capped-rate flush of buffered stream chunks.
type StreamTickMsg struct {
	Time time.Time
}
