// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the Bubble Tea chat view.
//
// The view is the engine's Presentation Sink: transports and the submission
// engine run in their own goroutines and everything they want displayed
// crosses into the tea loop as a message, posted by the Sink bridge. The
// model owns the transcript, the input textarea, and the status bar; it
// never talks to a transport directly.
//
// Streamed text is batched by a StreamingBuffer and flushed at a capped
// frame rate, so fast streams don't flicker and slow streams still animate.
//
// # Key Types
//
//   - Model: the Bubble Tea model (New, Update, View)
//   - Sink: goroutine-safe bridge implementing engine.Sink
//   - StreamingBuffer: token batching for smooth rendering
//
// # Usage
//
//	sink := chat.NewSink()
//	m := chat.New(chat.Options{Session: session, ...})
//	p := tea.NewProgram(m, tea.WithAltScreen())
//	sink.Attach(p)
//	_, err := p.Run()
package chat
