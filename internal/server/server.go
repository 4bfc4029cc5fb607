// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the stub backend.
	DefaultPort = 8000

	// DefaultTokensPerSecond paces token emission so clients exercise their
	// streaming paths instead of receiving the whole reply in one read.
	DefaultTokensPerSecond = 40

	// MaxContentLength is the maximum length of a single turn's content.
	MaxContentLength = 100000

	// MaxRequestBodySize bounds JSON request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxUploadSize bounds a multipart extraction upload (32MB).
	MaxUploadSize = 32 * 1024 * 1024

	// MaxUploadFiles is the maximum number of files per extraction request.
	MaxUploadFiles = 10

	// Version is the stub backend version.
	Version = "0.3.0"
)

// ============================================================================
// RESPONDER
// ============================================================================

// Responder produces the assistant reply for one user turn. The stub backend
// is transport scaffolding; the Responder is where any real generation would
// plug in.
type Responder func(content string) string

// EchoResponder is the default Responder. It answers the self-introduction
// probe with a fixed identity line and otherwise plays back the prompt, which
// makes round-trip assertions in integration tests trivial.
func EchoResponder(content string) string {
	if strings.EqualFold(strings.TrimSpace(content), "who are you?") {
		return "I am ScolaIA, your study assistant. Ask me anything about your course material."
	}
	return "You said: " + content
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the local stub assistant backend. It serves the three endpoints
// the client transports speak to:
//
//	GET  /api/v1/chat/ws           - duplex WebSocket channel
//	POST /api/v1/chat/stream       - one-shot streaming response
//	POST /api/v1/chat/extract-text - attachment text extraction
//	GET  /health                   - health check
type Server struct {
	port    int
	router  *http.ServeMux
	server  *http.Server
	respond Responder

	// tokensPerSecond controls pacing of token emission on both transports.
	tokensPerSecond float64

	upgrader websocket.Upgrader
}

// NewServer creates a stub backend listening on the given port.
// If port is 0, the default port (8000) is used.
func NewServer(port int) *Server {
	if port == 0 {
		port = DefaultPort
	}

	s := &Server{
		port:            port,
		router:          http.NewServeMux(),
		respond:         EchoResponder,
		tokensPerSecond: DefaultTokensPerSecond,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Local development tool; the TUI client sends no Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.setupRoutes()
	return s
}

// WithResponder sets a custom reply generator.
func (s *Server) WithResponder(fn Responder) *Server {
	s.respond = fn
	return s
}

// WithTokenRate sets the token emission rate. Zero or negative disables
// pacing entirely, which integration tests use to stay fast.
func (s *Server) WithTokenRate(tokensPerSecond float64) *Server {
	s.tokensPerSecond = tokensPerSecond
	return s
}

// Port returns the server port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the fully assembled handler, middleware included.
// Exposed so tests can mount the server on an httptest.Server.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
		RateLimitMiddleware(DefaultRateLimiter()),
	)(s.router)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /api/v1/chat/ws", s.handleDuplex)
	s.router.HandleFunc("POST /api/v1/chat/stream", s.handleStream)
	s.router.HandleFunc("POST /api/v1/chat/extract-text", s.handleExtractText)
	s.router.HandleFunc("GET /health", s.handleHealth)
}

// newLimiter builds the pacing limiter for one response, or nil when pacing
// is disabled.
func (s *Server) newLimiter() *rate.Limiter {
	if s.tokensPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(s.tokensPerSecond), 1)
}

// ============================================================================
// WIRE TYPES
// ============================================================================

// clientTurn is the inbound message shape shared by the duplex channel and
// the one-shot endpoint.
type clientTurn struct {
	Content string `json:"content"`
}

// duplexEnvelope is the outbound duplex frame. full_response carries the
// cumulative text on every token frame so the client can self-heal after
// drops.
type duplexEnvelope struct {
	Type         string `json:"type,omitempty"`
	Content      string `json:"content,omitempty"`
	FullResponse string `json:"full_response,omitempty"`
	Error        string `json:"error,omitempty"`
	Status       string `json:"status,omitempty"`
}

// ============================================================================
// DUPLEX HANDLER
// ============================================================================

// handleDuplex handles GET /api/v1/chat/ws.
//
// Per connection: read one client frame, acknowledge with a status envelope,
// stream the reply token by token, finish with a complete frame, repeat.
func (s *Server) handleDuplex(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS_UPGRADE_FAILED | ip=%s error=%v", GetClientIP(r), err)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// Normal closure or client gone; either way the channel is done.
			return
		}

		var turn clientTurn
		if err := json.Unmarshal(data, &turn); err != nil {
			s.writeDuplex(conn, duplexEnvelope{Type: "error", Error: "invalid message format"})
			continue
		}
		if len(turn.Content) > MaxContentLength {
			s.writeDuplex(conn, duplexEnvelope{Type: "error", Error: "message too long"})
			continue
		}

		// Informational acknowledgement. Clients that don't recognize the
		// shape must skip it.
		if err := s.writeDuplex(conn, duplexEnvelope{Status: "processing"}); err != nil {
			return
		}

		reply := s.respond(turn.Content)
		limiter := s.newLimiter()

		var cumulative strings.Builder
		for _, token := range tokenize(reply) {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
			}
			cumulative.WriteString(token)
			frame := duplexEnvelope{
				Type:         "token",
				Content:      token,
				FullResponse: cumulative.String(),
			}
			if err := s.writeDuplex(conn, frame); err != nil {
				return
			}
		}

		done := duplexEnvelope{Type: "complete", FullResponse: reply}
		if err := s.writeDuplex(conn, done); err != nil {
			return
		}
	}
}

// writeDuplex marshals and sends one duplex frame.
func (s *Server) writeDuplex(conn *websocket.Conn, env duplexEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ============================================================================
// ONE-SHOT STREAM HANDLER
// ============================================================================

// handleStream handles POST /api/v1/chat/stream.
//
// The response body is a sequence of "data: <token>" blocks separated by
// blank lines, closed by a [DONE] sentinel. Failures after headers are sent
// surface as a [ERROR] sentinel since the status line is already committed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var turn clientTurn
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil {
		log.Printf("STREAM_BAD_REQUEST | ip=%s error=%v", GetClientIP(r), err)
		writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if len(turn.Content) > MaxContentLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Content exceeds maximum length of %d", MaxContentLength))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ctx := r.Context()
	reply := s.respond(turn.Content)
	limiter := s.newLimiter()

	for _, token := range streamTokens(reply) {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				fmt.Fprintf(w, "data: [ERROR]\n\n")
				flusher.Flush()
				return
			}
		}
		fmt.Fprintf(w, "data: %s\n\n", token)
		flusher.Flush()
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// ============================================================================
// EXTRACT-TEXT HANDLER
// ============================================================================

// extractTextResponse is the success body of the extraction endpoint.
type extractTextResponse struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// handleExtractText handles POST /api/v1/chat/extract-text.
//
// Accepts multipart "files[]" parts and returns their contents concatenated,
// each section introduced by a "--- Content from <name> ---" header. The stub
// treats every upload as plain text; real document parsing lives server-side
// in production.
func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		log.Printf("EXTRACT_BAD_REQUEST | ip=%s error=%v", GetClientIP(r), err)
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files[]"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}
	if len(files) > MaxUploadFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Too many files: maximum is %d", MaxUploadFiles))
		return
	}

	var text strings.Builder
	names := make([]string, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to read upload")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to read upload")
			return
		}

		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		fmt.Fprintf(&text, "--- Content from %s ---\n", header.Filename)
		text.Write(data)
		names = append(names, header.Filename)
	}

	writeJSON(w, http.StatusOK, extractTextResponse{
		Filename: strings.Join(names, ", "),
		Text:     text.String(),
	})
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// healthResponse is the health check body.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: Version})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		// No WriteTimeout: duplex connections and paced streams are
		// long-lived.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("SERVER_START | addr=%s version=%s", addr, Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// tokenize splits a reply into emission-sized fragments. Words keep their
// trailing whitespace so the client-side concatenation reproduces the reply
// byte for byte.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	var tokens []string
	start := 0
	inSpace := false
	for i, r := range s {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !isSpace {
			tokens = append(tokens, s[start:i])
			start = i
		}
		inSpace = isSpace
	}
	tokens = append(tokens, s[start:])
	return tokens
}

// streamTokens produces fragments safe for the blank-line-delimited block
// framing: whitespace attaches to the front of the next word so no fragment
// ends in a newline, and paragraph breaks collapse to single newlines since
// the framing cannot carry a blank line inside a payload.
func streamTokens(s string) []string {
	for strings.Contains(s, "\n\n") {
		s = strings.ReplaceAll(s, "\n\n", "\n")
	}
	s = strings.TrimRight(s, " \n\t")
	if s == "" {
		return nil
	}
	var tokens []string
	start := 0
	prevSpace := true
	for i, r := range s {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if isSpace && !prevSpace && start < i {
			tokens = append(tokens, s[start:i])
			start = i
		}
		prevSpace = isSpace
	}
	tokens = append(tokens, s[start:])
	return tokens
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    status,
		},
	})
}
