// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport provides the duplex and one-shot chat transports.
package transport

import (
	"context"

	"github.com/scolaia/scolaia-tui/internal/protocol"
)

// =============================================================================
// TRANSPORT KIND
// =============================================================================

// Kind selects which transport a chat session uses.
type Kind string

const (
	// KindDuplex is the persistent WebSocket channel.
	KindDuplex Kind = "duplex"
	// KindStream is the one-shot HTTP streaming request.
	KindStream Kind = "stream"
)

// Valid reports whether k names a known transport.
func (k Kind) Valid() bool {
	return k == KindDuplex || k == KindStream
}

// =============================================================================
// SHARED CONTRACTS
// =============================================================================

// Handler consumes normalized response events. Transports call it from a
// single goroutine per connection or request, so events for one response
// always arrive in delivery order.
type Handler func(protocol.Event)

// Sender dispatches one outgoing turn. The response streams back through the
// Handler bound when the transport was built.
type Sender interface {
	Send(ctx context.Context, content string) error
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes transport errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotConnected
	ErrTypeAlreadyOpen
	ErrTypeConnection
	ErrTypeBadStatus
	ErrTypeTruncated
)

// Error represents a failure in either transport.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Sentinel errors for easy checking.
var (
	// ErrNotConnected is returned when a turn is submitted while the duplex
	// channel is down. The caller surfaces it as a connection error message;
	// the turn is never queued.
	ErrNotConnected = &Error{Type: ErrTypeNotConnected, Message: "not connected to the assistant"}

	// ErrAlreadyOpen is returned when Open is called on a channel that is
	// already connecting or open. That is a programming error, not a
	// recoverable condition.
	ErrAlreadyOpen = &Error{Type: ErrTypeAlreadyOpen, Message: "duplex channel already open"}
)
