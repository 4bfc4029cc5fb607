// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements a local stub assistant backend.
//
// It speaks the same wire protocol as the production ScolaIA API so the
// client transports can be developed and integration-tested without a
// running deployment:
//
//   - GET  /api/v1/chat/ws           - duplex WebSocket channel
//   - POST /api/v1/chat/stream       - one-shot streaming response
//   - POST /api/v1/chat/extract-text - attachment text extraction
//   - GET  /health                   - health check
//
// The duplex channel acknowledges each turn with a {"status":"processing"}
// envelope, then streams token frames carrying the cumulative text in
// full_response, and closes the turn with a complete frame. The one-shot
// endpoint emits "data: <token>" blocks terminated by the [DONE] sentinel.
//
// Replies come from a pluggable Responder; the default echoes the prompt,
// paced by a token-rate limiter so clients exercise real streaming.
//
// # Usage
//
//	srv := server.NewServer(8000)
//	go srv.Start()
//	defer srv.Shutdown(context.Background())
package server
