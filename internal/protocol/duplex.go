// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import "encoding/json"

// =============================================================================
// DUPLEX FRAMING
// =============================================================================

// Frame type discriminators used by the duplex channel.
const (
	frameTypeToken    = "token"
	frameTypeComplete = "complete"
	frameTypeError    = "error"
)

// duplexFrame mirrors the inbound duplex JSON envelope. The backend also
// emits informational shapes (for example {"status": "processing"}) that
// carry no "type" field; those decode to an empty Type and are skipped.
type duplexFrame struct {
	Type         string `json:"type"`
	Content      string `json:"content"`
	FullResponse string `json:"full_response"`
	Error        string `json:"error"`
}

// ClientFrame is the outbound duplex message.
type ClientFrame struct {
	Content string `json:"content"`
}

// EncodeClientFrame serializes an outgoing turn for the duplex channel.
func EncodeClientFrame(content string) ([]byte, error) {
	return json.Marshal(ClientFrame{Content: content})
}

// ParseDuplexFrame decodes one inbound duplex message into an Event.
// Malformed JSON and unknown discriminators return ok=false; per the error
// contract they are skipped, never fatal.
func ParseDuplexFrame(data []byte) (Event, bool) {
	var frame duplexFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Event{}, false
	}

	switch frame.Type {
	case frameTypeToken:
		return Event{
			Type:          EventToken,
			Token:         frame.Content,
			Cumulative:    frame.FullResponse,
			HasCumulative: true,
		}, true
	case frameTypeComplete:
		return Event{
			Type:          EventComplete,
			Cumulative:    frame.FullResponse,
			HasCumulative: true,
		}, true
	case frameTypeError:
		return Event{Type: EventError, Message: frame.Error}, true
	default:
		return Event{}, false
	}
}
