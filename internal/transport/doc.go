// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport provides the two chat transports: a persistent duplex
// WebSocket channel with automatic reconnection, and a one-shot HTTP
// streaming sender with per-request cancellation.
//
// Both transports decode inbound data through the protocol package and
// deliver the resulting events, in delivery order, to a Handler bound at
// construction. Neither transport retries individual turns; only the duplex
// connection itself is retried, on a fixed delay, without a cap. A chat
// session is expected to stay open for a long time, so the connection should
// always eventually come back.
package transport
