// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol implements the two wire framings spoken by the ScolaIA
// chat backend and normalizes both into a single event union.
//
// The duplex framing is used over the persistent WebSocket channel: each
// inbound message is a JSON envelope with a "type" discriminator carrying
// token, complete, or error payloads. The one-shot framing is used over a
// chunked HTTP response body: "data: " blocks separated by blank lines,
// terminated by the [DONE] or [ERROR] sentinel.
//
// The two framings are intentionally asymmetric. Duplex frames restate the
// server's cumulative response text with every token, so the client can
// always trust the server's view. One-shot blocks carry bare fragments and
// local concatenation is the only record of the response. Consumers must
// preserve that distinction; see the engine package.
package protocol
