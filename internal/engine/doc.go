// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine is the transport-independent heart of the chat client: it
// turns submitted turns into dispatched payloads and normalized response
// events into rendered messages.
//
// The engine holds no references to concrete UI elements. The Presentation
// Sink, the per-message RenderTarget, and the loading gate are injected
// interfaces, which keeps the whole state machine testable without a
// terminal or a live backend.
//
// One invariant rules the package: at most one response may be in flight
// per session. A submission while a response is streaming is dropped with a
// no-op; nothing is queued.
package engine
