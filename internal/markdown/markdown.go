// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders completed assistant responses for the terminal.
//
// During streaming the engine appends raw text only; markdown is parsed
// exactly once, at completion, to avoid flashing malformed partial markup.
// This package provides that single authoritative render pass: glamour for
// full terminal markdown, with a chroma-based code-fence highlighter as the
// fallback when glamour is unavailable (e.g. a hostile TERM).
package markdown

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns a completed markdown document into terminal output.
type Renderer struct {
	term     *glamour.TermRenderer
	wordWrap int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWordWrap sets the wrap column (default: 80).
func WithWordWrap(width int) Option {
	return func(r *Renderer) {
		if width > 0 {
			r.wordWrap = width
		}
	}
}

// New creates a Renderer. Glamour initialization failure is not fatal: the
// renderer degrades to the code-fence fallback.
func New(opts ...Option) *Renderer {
	r := &Renderer{wordWrap: 80}
	for _, opt := range opts {
		opt(r)
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.wordWrap),
	)
	if err == nil {
		r.term = term
	}
	return r
}

// Render performs the single markdown render pass over a completed response.
// If rendering fails the input is returned with code fences highlighted,
// never an error: a finished response must always be displayable.
func (r *Renderer) Render(content string) string {
	if r.term != nil {
		if rendered, err := r.term.Render(content); err == nil {
			return rendered
		}
	}
	return highlightFences(content)
}

// SetWordWrap rebuilds the glamour renderer for a new terminal width.
func (r *Renderer) SetWordWrap(width int) {
	if width <= 0 || width == r.wordWrap {
		return
	}
	r.wordWrap = width
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.term = term
	}
}

// highlightFences renders fenced code blocks with chroma and leaves the
// surrounding prose untouched.
func highlightFences(content string) string {
	lines := strings.Split(content, "\n")
	var out []string
	var fence []string
	var lang string
	inFence := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				out = append(out, Highlight(strings.Join(fence, "\n"), lang))
				fence = fence[:0]
				inFence = false
			} else {
				lang = strings.TrimPrefix(trimmed, "```")
				inFence = true
			}
			continue
		}
		if inFence {
			fence = append(fence, line)
		} else {
			out = append(out, line)
		}
	}
	if inFence {
		// Unterminated fence in a completed response; emit what we have.
		out = append(out, Highlight(strings.Join(fence, "\n"), lang))
	}
	return strings.Join(out, "\n")
}
