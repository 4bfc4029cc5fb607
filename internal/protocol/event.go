// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol implements the ScolaIA chat wire framings.
package protocol

// =============================================================================
// EVENT UNION
// =============================================================================

// EventType discriminates the normalized stream events.
type EventType int

const (
	// EventToken carries one incrementally produced fragment.
	EventToken EventType = iota
	// EventComplete terminates a response successfully.
	EventComplete
	// EventError terminates a response with a server-reported failure.
	EventError
)

// String returns the event type name for logging.
func (t EventType) String() string {
	switch t {
	case EventToken:
		return "token"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is the single internal event type both framings decode into.
// Token and Complete events from the duplex framing carry the server's
// authoritative cumulative text; one-shot events never do.
type Event struct {
	Type EventType

	// Token is the newly produced fragment (EventToken only).
	Token string

	// Cumulative is the server-declared full response so far.
	// Valid only when HasCumulative is true.
	Cumulative    string
	HasCumulative bool

	// Message is the failure description (EventError only).
	Message string
}

// TokenEvent builds a token event without an authoritative cumulative value.
func TokenEvent(fragment string) Event {
	return Event{Type: EventToken, Token: fragment}
}

// CompleteEvent builds a bare completion event.
func CompleteEvent() Event {
	return Event{Type: EventComplete}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}
