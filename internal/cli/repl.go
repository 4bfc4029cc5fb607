// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/scolaia/scolaia-tui/internal/attach"
	"github.com/scolaia/scolaia-tui/internal/config"
	"github.com/scolaia/scolaia-tui/internal/engine"
	"github.com/scolaia/scolaia-tui/internal/storage"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C8CF8")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C8CF8")).Bold(true)
	infoStyle      = lipgloss.NewStyle().Faint(true)
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87070"))
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// Input provides line editing and history for the REPL, backed by liner.
type Input struct {
	line        *liner.State
	historyFile string
}

// NewInput creates the liner state and loads prior history from the app dir.
func NewInput() *Input {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}

	in := &Input{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}
	in.loadHistory()
	return in
}

func (in *Input) loadHistory() {
	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
}

// Read reads one line, recording non-empty input in the history.
func (in *Input) Read(prompt string) (string, error) {
	input, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		in.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (in *Input) Close() {
	if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
		in.line.WriteHistory(f)
		f.Close()
	}
	in.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// REPL is the plain-terminal chat loop for non-TUI terminals and scripting.
// It drives the same submission engine as the TUI.
type REPL struct {
	session     *engine.Session
	sink        *PlainSink
	attachments *attach.Pipeline
	store       *storage.HistoryStore // nil disables history commands
	input       *Input
}

// NewREPL wires the loop. The sink must be the one the session was built
// with, so Wait observes the loading gate.
func NewREPL(session *engine.Session, sink *PlainSink, attachments *attach.Pipeline, store *storage.HistoryStore) *REPL {
	return &REPL{
		session:     session,
		sink:        sink,
		attachments: attachments,
		store:       store,
		input:       NewInput(),
	}
}

// Run executes the REPL until EOF, /quit, or interrupt.
func (r *REPL) Run() error {
	defer r.input.Close()

	fmt.Println(assistantStyle.Render("ScolaIA") + infoStyle.Render(" · type /help for commands, Ctrl+D to exit"))

	// Ctrl+C during a response aborts it instead of killing the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			r.session.Abort()
		}
	}()

	for {
		line, err := r.input.Read(promptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
				continue
			}
			// EOF: exit cleanly.
			fmt.Println()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := r.handleCommand(line); quit {
				return nil
			}
			continue
		}

		if err := r.session.Submit(line); err != nil {
			switch {
			case errors.Is(err, engine.ErrBusy):
				fmt.Println(warnStyle.Render("Please wait for the current response to finish."))
			case errors.Is(err, engine.ErrEmpty):
				// Nothing to send.
			default:
				// Connection errors were already surfaced by the sink.
			}
			continue
		}
		r.sink.Wait()
	}
}

// handleCommand executes a slash command; returns true to exit the loop.
func (r *REPL) handleCommand(line string) bool {
	parts := strings.Fields(line)
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "/help":
		fmt.Println(infoStyle.Render(`Commands:
  /attach <file>   Attach a file to the next turn
  /files           List queued attachments
  /detach <n>      Remove attachment n (1-based)
  /history         List saved conversations
  /quit            Exit`))

	case "/attach":
		r.commandAttach(args)

	case "/files":
		names := []string{}
		if r.attachments != nil {
			names = r.attachments.Names()
		}
		if len(names) == 0 {
			fmt.Println(infoStyle.Render("No attachments queued."))
			break
		}
		for i, name := range names {
			fmt.Printf("  %d. %s\n", i+1, name)
		}

	case "/detach":
		if len(args) != 1 || r.attachments == nil {
			fmt.Println(infoStyle.Render("Usage: /detach <n>"))
			break
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Println(infoStyle.Render("Usage: /detach <n>"))
			break
		}
		r.attachments.RemoveFile(context.Background(), n-1)

	case "/history":
		if r.store == nil {
			fmt.Println(infoStyle.Render("History is disabled."))
			break
		}
		metas, err := r.store.List()
		if err != nil {
			fmt.Println(errorStyle.Render("Could not list history: " + err.Error()))
			break
		}
		if len(metas) == 0 {
			fmt.Println(infoStyle.Render("No saved conversations."))
			break
		}
		fmt.Println(storage.FormatConversationList(metas))

	case "/quit", "/exit":
		return true

	default:
		fmt.Println(infoStyle.Render("Unknown command " + cmd + ". Try /help."))
	}
	return false
}

func (r *REPL) commandAttach(args []string) {
	if len(args) == 0 {
		fmt.Println(infoStyle.Render("Usage: /attach <file>"))
		return
	}
	if r.attachments == nil {
		fmt.Println(infoStyle.Render("Attachments are not available in this session."))
		return
	}

	path := strings.Join(args, " ")
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Could not read %s: %v", path, err)))
		return
	}
	r.attachments.AddFiles(context.Background(), []attach.File{{
		Name: filepath.Base(path),
		Data: data,
	}})
}
