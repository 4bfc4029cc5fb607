// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the plain-terminal REPL mode.
//
// When stdout is not a TTY, or the user passes --plain, the chat runs as a
// readline loop instead of the full-screen TUI. The loop drives the same
// submission engine and transports as the TUI; only the presentation
// differs. Responses stream to stdout as raw text, input history persists
// across sessions in the app directory, and Ctrl+C aborts the in-flight
// response instead of exiting.
package cli
