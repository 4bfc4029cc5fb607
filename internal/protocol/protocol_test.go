// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// DUPLEX FRAMING TESTS
// =============================================================================

func TestParseDuplexFrame(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantOK bool
		want   Event
	}{
		{
			name:   "token frame",
			input:  `{"type":"token","content":"Hel","full_response":"Hel"}`,
			wantOK: true,
			want:   Event{Type: EventToken, Token: "Hel", Cumulative: "Hel", HasCumulative: true},
		},
		{
			name:   "token frame with restated cumulative",
			input:  `{"type":"token","content":"lo","full_response":"Hello"}`,
			wantOK: true,
			want:   Event{Type: EventToken, Token: "lo", Cumulative: "Hello", HasCumulative: true},
		},
		{
			name:   "complete frame",
			input:  `{"type":"complete","full_response":"Hello"}`,
			wantOK: true,
			want:   Event{Type: EventComplete, Cumulative: "Hello", HasCumulative: true},
		},
		{
			name:   "error frame",
			input:  `{"type":"error","error":"rate limit exceeded"}`,
			wantOK: true,
			want:   Event{Type: EventError, Message: "rate limit exceeded"},
		},
		{
			name:   "processing status frame is skipped",
			input:  `{"status":"processing","message":"Processing your message..."}`,
			wantOK: false,
		},
		{
			name:   "unknown discriminator is skipped",
			input:  `{"type":"usage","tokens":42}`,
			wantOK: false,
		},
		{
			name:   "malformed JSON is skipped",
			input:  `{not json`,
			wantOK: false,
		},
		{
			name:   "empty input is skipped",
			input:  ``,
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := ParseDuplexFrame([]byte(tc.input))
			require.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				require.Equal(t, tc.want, ev)
			}
		})
	}
}

func TestEncodeClientFrame(t *testing.T) {
	data, err := EncodeClientFrame("Explain X")
	require.NoError(t, err)
	require.JSONEq(t, `{"content":"Explain X"}`, string(data))
}

// =============================================================================
// ONE-SHOT FRAMING TESTS
// =============================================================================

func collectStream(t *testing.T, body string) ([]Event, *StreamScanner) {
	t.Helper()
	sc := NewStreamScanner(strings.NewReader(body))
	var events []Event
	for sc.Scan() {
		events = append(events, sc.Event())
	}
	require.NoError(t, sc.Err())
	return events, sc
}

func TestStreamScanner_TokensThenDone(t *testing.T) {
	events, sc := collectStream(t, "data: A\n\ndata: B\n\ndata: [DONE]\n\n")

	require.Len(t, events, 3)
	require.Equal(t, TokenEvent("A"), events[0])
	require.Equal(t, TokenEvent("B"), events[1])
	require.Equal(t, EventComplete, events[2].Type)
	// One-shot completion never carries an authoritative cumulative value.
	require.False(t, events[2].HasCumulative)
	require.True(t, sc.Terminated())
}

func TestStreamScanner_ErrorSentinel(t *testing.T) {
	events, sc := collectStream(t, "data: partial\n\ndata: [ERROR]\n\n")

	require.Len(t, events, 2)
	require.Equal(t, EventError, events[1].Type)
	require.NotEmpty(t, events[1].Message)
	require.True(t, sc.Terminated())
}

func TestStreamScanner_SkipsUnprefixedBlocks(t *testing.T) {
	events, _ := collectStream(t, ": keepalive\n\ndata: A\n\nnoise\n\ndata: [DONE]\n\n")

	require.Len(t, events, 2)
	require.Equal(t, TokenEvent("A"), events[0])
	require.Equal(t, EventComplete, events[1].Type)
}

func TestStreamScanner_TruncatedStream(t *testing.T) {
	events, sc := collectStream(t, "data: A\n\ndata: B\n\n")

	require.Len(t, events, 2)
	require.False(t, sc.Terminated())
}

func TestStreamScanner_FragmentsAreVerbatim(t *testing.T) {
	// Leading/trailing spaces and markdown markers must survive untouched.
	events, _ := collectStream(t, "data:  **bold** \n\ndata: [DONE]\n\n")

	require.Equal(t, " **bold** ", events[0].Token)
}

func TestStreamScanner_StopsAfterTerminal(t *testing.T) {
	sc := NewStreamScanner(strings.NewReader("data: [DONE]\n\ndata: late\n\n"))
	require.True(t, sc.Scan())
	require.Equal(t, EventComplete, sc.Event().Type)
	require.False(t, sc.Scan())
}
