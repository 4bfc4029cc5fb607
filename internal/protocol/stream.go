// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// =============================================================================
// ONE-SHOT STREAMING FRAMING
// =============================================================================

const (
	// streamPrefix marks a payload block in the one-shot body.
	streamPrefix = "data: "

	// DoneSentinel terminates a one-shot stream successfully.
	DoneSentinel = "[DONE]"

	// ErrorSentinel terminates a one-shot stream with a failure. The one-shot
	// framing carries no error payload; the sentinel is all the client gets.
	ErrorSentinel = "[ERROR]"
)

// StreamScanner decodes a one-shot streaming response body into Events.
// The body is a sequence of blocks separated by a blank line; blocks
// prefixed "data: " carry either a sentinel or a verbatim token fragment.
// Blocks without the prefix are skipped.
//
// Usage mirrors bufio.Scanner:
//
//	sc := protocol.NewStreamScanner(resp.Body)
//	for sc.Scan() {
//	    ev := sc.Event()
//	    ...
//	}
//	if err := sc.Err(); err != nil { ... }
type StreamScanner struct {
	scanner  *bufio.Scanner
	event    Event
	terminal bool
}

// NewStreamScanner wraps a response body in a block scanner.
func NewStreamScanner(r io.Reader) *StreamScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	sc.Split(scanBlocks)
	return &StreamScanner{scanner: sc}
}

// Scan advances to the next event. It returns false once the stream is
// exhausted or a terminal event (Complete or Error) has been delivered.
func (s *StreamScanner) Scan() bool {
	if s.terminal {
		return false
	}
	for s.scanner.Scan() {
		block := s.scanner.Text()
		if !strings.HasPrefix(block, streamPrefix) {
			// Not a payload block. Skipped, never fatal.
			continue
		}
		payload := strings.TrimPrefix(block, streamPrefix)
		switch payload {
		case DoneSentinel:
			s.event = CompleteEvent()
			s.terminal = true
		case ErrorSentinel:
			s.event = ErrorEvent("assistant reported an error")
			s.terminal = true
		default:
			s.event = TokenEvent(payload)
		}
		return true
	}
	return false
}

// Event returns the event produced by the last successful Scan.
func (s *StreamScanner) Event() Event {
	return s.event
}

// Err returns the first error encountered while reading the body.
func (s *StreamScanner) Err() error {
	return s.scanner.Err()
}

// Terminated reports whether a terminal event was seen. A stream that ends
// without one was cut off mid-response.
func (s *StreamScanner) Terminated() bool {
	return s.terminal
}

// scanBlocks is a bufio.SplitFunc that splits on blank lines.
func scanBlocks(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
