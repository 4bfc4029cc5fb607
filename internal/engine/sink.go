// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine drives chat turn submission and response aggregation.
package engine

// =============================================================================
// INJECTED UI CAPABILITIES
// =============================================================================

// RenderTarget is the render surface for one assistant message. The engine
// only ever hands it fully-formed strings: raw text while streaming, one
// markdown-rendered string at completion, or an error line.
type RenderTarget interface {
	// AppendRaw appends streamed text to the target. Raw means raw: markdown
	// is never parsed mid-stream, so partial markup is shown verbatim
	// instead of flashing through malformed render states.
	AppendRaw(text string)

	// SetRendered replaces the target's content with the final
	// markdown-rendered response.
	SetRendered(text string)

	// SetError replaces the target's content with a formatted error line.
	// Partial streamed content is not retained.
	SetError(message string)
}

// Sink is the Presentation Sink: the UI collaborator that owns the message
// list. The engine drives it, never the other way around.
type Sink interface {
	// RenderUserTurn shows the user's own turn immediately and
	// optimistically, tagged with file-name chips when attachments were
	// present.
	RenderUserTurn(text string, attachments []string)

	// NewAssistantTarget allocates the render surface for the next
	// assistant response.
	NewAssistantTarget() RenderTarget

	// SystemMessage shows an out-of-band notice, e.g. a connection error.
	SystemMessage(text string)
}

// LoadingGate disables the submit control and input while a response is in
// flight.
type LoadingGate interface {
	SetLoading(loading bool)
}

// Renderer performs the single markdown render pass at completion.
type Renderer interface {
	Render(markdown string) string
}

// nopGate is used when no loading gate is wired (headless runs).
type nopGate struct{}

func (nopGate) SetLoading(bool) {}
