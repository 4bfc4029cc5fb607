// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaia/scolaia-tui/internal/attach"
	"github.com/scolaia/scolaia-tui/internal/protocol"
	"github.com/scolaia/scolaia-tui/internal/transport"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeTarget struct {
	mu       sync.Mutex
	raw      string
	rendered string
	errMsg   string
}

func (t *fakeTarget) AppendRaw(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.raw += text
}

func (t *fakeTarget) SetRendered(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rendered = text
}

func (t *fakeTarget) SetError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errMsg = message
}

type userTurn struct {
	text        string
	attachments []string
}

type fakeSink struct {
	mu      sync.Mutex
	turns   []userTurn
	targets []*fakeTarget
	system  []string
}

func (s *fakeSink) RenderUserTurn(text string, attachments []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, userTurn{text: text, attachments: attachments})
}

func (s *fakeSink) NewAssistantTarget() RenderTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTarget{}
	s.targets = append(s.targets, t)
	return t
}

func (s *fakeSink) SystemMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system = append(s.system, text)
}

func (s *fakeSink) lastTarget() *fakeTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.targets) == 0 {
		return nil
	}
	return s.targets[len(s.targets)-1]
}

type fakeGate struct {
	mu     sync.Mutex
	states []bool
}

func (g *fakeGate) SetLoading(loading bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states = append(g.states, loading)
}

// markRenderer tags rendered output so tests can tell the single final
// render pass apart from raw streamed text.
type markRenderer struct{}

func (markRenderer) Render(markdown string) string { return "md:" + markdown }

type fakeDispatcher struct {
	mu      sync.Mutex
	ready   bool
	sent    []string
	sendErr error
}

func (d *fakeDispatcher) Send(_ context.Context, content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, content)
	return d.sendErr
}

func (d *fakeDispatcher) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

type fakeList struct{ files []attach.File }

func (l *fakeList) Replace(files []attach.File) { l.files = files }
func (l *fakeList) Clear()                      { l.files = nil }

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) Extract(context.Context, []attach.File) (string, error) {
	return e.text, e.err
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// =============================================================================
// TEST HARNESS
// =============================================================================

type harness struct {
	sink        *fakeSink
	gate        *fakeGate
	dispatcher  *fakeDispatcher
	agg         *Aggregator
	attachments *attach.Pipeline
	extractor   *fakeExtractor
	session     *Session
}

func newHarness(t *testing.T, kind transport.Kind) *harness {
	t.Helper()
	h := &harness{
		sink:       &fakeSink{},
		gate:       &fakeGate{},
		dispatcher: &fakeDispatcher{ready: true},
		extractor:  &fakeExtractor{},
	}
	h.agg = NewAggregator(h.sink, markRenderer{}, h.gate, quietLogger())
	h.attachments = attach.NewPipeline(&fakeList{}, h.extractor, nil, nil, quietLogger())
	h.session = NewSession(kind, h.dispatcher, h.agg, h.attachments, h.sink, quietLogger())
	// Run dispatch inline so tests observe a deterministic order.
	h.session.launch = func(fn func()) { fn() }
	return h
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestAggregatorLocalConcatenation(t *testing.T) {
	h := newHarness(t, transport.KindStream)
	target := &fakeTarget{}
	require.True(t, h.agg.Begin(target))

	h.agg.Apply(protocol.TokenEvent("A"))
	h.agg.Apply(protocol.TokenEvent("B"))
	h.agg.Apply(protocol.CompleteEvent())

	assert.Equal(t, "AB", target.raw)
	assert.Equal(t, "md:AB", target.rendered)
	assert.False(t, h.agg.Active())
}

func TestAggregatorAuthoritativeOverridesLocal(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)
	target := &fakeTarget{}
	require.True(t, h.agg.Begin(target))

	// The raw record drifts from the server's cumulative view; the
	// completion pass must trust the server.
	h.agg.Apply(protocol.Event{Type: protocol.EventToken, Token: "A", Cumulative: "A", HasCumulative: true})
	h.agg.Apply(protocol.Event{Type: protocol.EventToken, Token: "A", Cumulative: "AB", HasCumulative: true})
	h.agg.Apply(protocol.Event{Type: protocol.EventComplete, Cumulative: "AB", HasCumulative: true})

	assert.Equal(t, "AA", target.raw, "raw record keeps the duplicated token")
	assert.Equal(t, "md:AB", target.rendered, "final render uses the authoritative text")
}

func TestAggregatorCompleteWithoutCumulativeFallsBackToRaw(t *testing.T) {
	h := newHarness(t, transport.KindStream)
	target := &fakeTarget{}
	require.True(t, h.agg.Begin(target))

	h.agg.Apply(protocol.TokenEvent("hello "))
	h.agg.Apply(protocol.TokenEvent("world"))
	h.agg.Apply(protocol.CompleteEvent())

	assert.Equal(t, "md:hello world", target.rendered)
}

func TestAggregatorErrorReplacesPartialContent(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)
	target := &fakeTarget{}
	require.True(t, h.agg.Begin(target))

	h.agg.Apply(protocol.TokenEvent("partial"))
	h.agg.Apply(protocol.ErrorEvent("model overloaded"))

	assert.Equal(t, "Error: model overloaded", target.errMsg)
	assert.Empty(t, target.rendered)
	assert.False(t, h.agg.Active())
}

func TestAggregatorErrorWithNothingInFlightIsIgnored(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)

	h.agg.Apply(protocol.ErrorEvent("connection to the assistant was lost"))

	assert.Empty(t, h.sink.targets)
	assert.Empty(t, h.gate.states, "gate must not toggle for a discarded error")
}

func TestAggregatorUnpromptedResponseBindsOwnTarget(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)

	// The assistant speaks first, as it does right after connect.
	h.agg.Apply(protocol.Event{Type: protocol.EventToken, Token: "Hi!", Cumulative: "Hi!", HasCumulative: true})
	h.agg.Apply(protocol.Event{Type: protocol.EventComplete, Cumulative: "Hi!", HasCumulative: true})

	require.Len(t, h.sink.targets, 1)
	assert.Equal(t, "md:Hi!", h.sink.targets[0].rendered)
	assert.False(t, h.agg.Active())
}

func TestAggregatorLoadingGateLifecycle(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)
	require.True(t, h.agg.Begin(&fakeTarget{}))
	h.agg.Apply(protocol.CompleteEvent())

	assert.Equal(t, []bool{true, false}, h.gate.states)
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmitSingleInFlight(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)
	// Keep the first turn unresolved: dispatch succeeds but no complete
	// event ever arrives.
	require.NoError(t, h.session.Submit("first"))
	require.True(t, h.session.Busy())

	err := h.session.Submit("second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, []string{"first"}, h.dispatcher.sent, "second turn must not reach the transport")
	assert.Len(t, h.sink.turns, 1, "second turn must not render")

	// Resolving the first turn unblocks submission.
	h.agg.Apply(protocol.CompleteEvent())
	require.NoError(t, h.session.Submit("second"))
	assert.Equal(t, []string{"first", "second"}, h.dispatcher.sent)
}

func TestSubmitEmptyIsNoOp(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)

	err := h.session.Submit("   \n\t ")

	assert.ErrorIs(t, err, ErrEmpty)
	assert.Empty(t, h.dispatcher.sent)
	assert.Empty(t, h.sink.turns)
	assert.Empty(t, h.gate.states)
	assert.False(t, h.session.Busy())
}

func TestSubmitNotConnectedShowsSystemMessage(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)
	h.dispatcher.ready = false

	err := h.session.Submit("hello")

	assert.ErrorIs(t, err, transport.ErrNotConnected)
	assert.Empty(t, h.sink.turns, "user turn must not render when dispatch is impossible")
	assert.Empty(t, h.dispatcher.sent)
	require.Len(t, h.sink.system, 1)
	assert.Contains(t, h.sink.system[0], "Connection error")
	assert.False(t, h.session.Busy())
}

func TestSubmitMergesExtractedText(t *testing.T) {
	h := newHarness(t, transport.KindStream)
	h.extractor.text = "chapter one"
	h.attachments.AddFiles(context.Background(), []attach.File{{Name: "notes.pdf", Data: []byte("x")}})

	require.NoError(t, h.session.Submit("Summarize this"))

	require.Len(t, h.dispatcher.sent, 1)
	assert.Equal(t, "Summarize this\n\nReference text: [chapter one]", h.dispatcher.sent[0])

	// The visible turn shows the user's words and the file chip, not the
	// merged payload.
	require.Len(t, h.sink.turns, 1)
	assert.Equal(t, "Summarize this", h.sink.turns[0].text)
	assert.Equal(t, []string{"notes.pdf"}, h.sink.turns[0].attachments)
}

func TestSubmitClearsAttachmentsAfterDispatch(t *testing.T) {
	h := newHarness(t, transport.KindStream)
	h.extractor.text = "text"
	h.attachments.AddFiles(context.Background(), []attach.File{{Name: "a.txt", Data: []byte("x")}})
	h.dispatcher.sendErr = errors.New("boom")

	_ = h.session.Submit("go")

	assert.True(t, h.attachments.Empty(), "attachment set clears even when the transport fails")
	assert.Empty(t, h.attachments.ExtractedText())
}

func TestSubmitAttachmentsOnlyTurn(t *testing.T) {
	h := newHarness(t, transport.KindStream)
	h.extractor.text = "just the file"
	h.attachments.AddFiles(context.Background(), []attach.File{{Name: "a.txt", Data: []byte("x")}})

	require.NoError(t, h.session.Submit(""))

	require.Len(t, h.dispatcher.sent, 1)
	assert.Equal(t, "\n\nReference text: [just the file]", h.dispatcher.sent[0])
}

func TestSubmitDuplexSendFailureResolvesResponse(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)
	h.dispatcher.sendErr = errors.New("write: broken pipe")

	require.NoError(t, h.session.Submit("hello"))

	target := h.sink.lastTarget()
	require.NotNil(t, target)
	assert.Contains(t, target.errMsg, "failed to send message")
	assert.False(t, h.session.Busy(), "in-flight state must resolve")
	assert.Equal(t, []bool{true, false}, h.gate.states)
}

func TestSubmitOneShotSendFailureDoesNotDoubleReport(t *testing.T) {
	// The one-shot transport delivers its own terminal error event through
	// the handler; the session must not synthesize a second one.
	h := newHarness(t, transport.KindStream)
	h.dispatcher.sendErr = errors.New("connect: refused")

	require.NoError(t, h.session.Submit("hello"))

	target := h.sink.lastTarget()
	require.NotNil(t, target)
	assert.Empty(t, target.errMsg)
	assert.True(t, h.session.Busy(), "resolution belongs to the transport's own error event")

	h.agg.Apply(protocol.ErrorEvent("failed to reach the assistant"))
	assert.False(t, h.session.Busy())
}

func TestAbortResolvesInFlight(t *testing.T) {
	h := newHarness(t, transport.KindStream)
	require.NoError(t, h.session.Submit("long question"))
	require.True(t, h.session.Busy())

	h.session.Abort()

	target := h.sink.lastTarget()
	require.NotNil(t, target)
	assert.Equal(t, "Error: response stopped", target.errMsg)
	assert.False(t, h.session.Busy())
}

func TestAbortWithNothingInFlightIsSafe(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)
	h.session.Abort()
	assert.Empty(t, h.gate.states)
}

// =============================================================================
// END-TO-END TURN
// =============================================================================

func TestFullTurnOverEventStream(t *testing.T) {
	h := newHarness(t, transport.KindDuplex)

	require.NoError(t, h.session.Submit("What is recursion?"))

	h.agg.Apply(protocol.Event{Type: protocol.EventToken, Token: "Recursion ", Cumulative: "Recursion ", HasCumulative: true})
	h.agg.Apply(protocol.Event{Type: protocol.EventToken, Token: "is...", Cumulative: "Recursion is...", HasCumulative: true})
	h.agg.Apply(protocol.Event{Type: protocol.EventComplete, Cumulative: "Recursion is...", HasCumulative: true})

	target := h.sink.lastTarget()
	require.NotNil(t, target)
	assert.Equal(t, "Recursion is...", target.raw)
	assert.Equal(t, "md:Recursion is...", target.rendered)
	assert.Equal(t, []bool{true, false}, h.gate.states)
	assert.False(t, h.session.Busy())
}
