// scolaia - terminal client for the ScolaIA study assistant.
//
// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/scolaia/scolaia-tui/internal/attach"
	"github.com/scolaia/scolaia-tui/internal/cli"
	"github.com/scolaia/scolaia-tui/internal/config"
	"github.com/scolaia/scolaia-tui/internal/engine"
	"github.com/scolaia/scolaia-tui/internal/markdown"
	"github.com/scolaia/scolaia-tui/internal/server"
	"github.com/scolaia/scolaia-tui/internal/storage"
	"github.com/scolaia/scolaia-tui/internal/transport"
	"github.com/scolaia/scolaia-tui/internal/ui/chat"
	"github.com/scolaia/scolaia-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		configPath    = flag.String("config", "", "config file path (default: ~/.scolaia/config.toml)")
		transportMode = flag.String("transport", "", "transport mode: duplex or stream (overrides config)")
		serverURL     = flag.String("server", "", "backend base URL (overrides config)")
		themeName     = flag.String("theme", "", "UI theme: dark, light, or auto (overrides config)")
		plain         = flag.Bool("plain", false, "force the plain line-mode interface")
		noHistory     = flag.Bool("no-history", false, "disable conversation persistence for this run")
		serve         = flag.Bool("serve", false, "run the stub backend instead of the client")
		port          = flag.Int("port", server.DefaultPort, "stub backend port (with -serve)")
		showVersion   = flag.Bool("version", false, "print version and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("scolaia %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if *serve {
		runServe(*port)
		return
	}

	cfg := loadConfig(*configPath)

	// CLI flags override the loaded config.
	if *transportMode != "" {
		cfg.Transport.Mode = *transportMode
	}
	if *serverURL != "" {
		cfg.Server.BaseURL = *serverURL
	}
	if *themeName != "" {
		cfg.UI.Theme = *themeName
	}
	if *noHistory {
		cfg.History.Enabled = false
	}
	if !transport.Kind(cfg.Transport.Mode).Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown transport mode %q (want duplex or stream)\n", cfg.Transport.Mode)
		os.Exit(1)
	}
	config.SetGlobal(cfg)

	logger := openLogger()

	if *plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		runPlain(cfg, logger)
		return
	}
	runTUI(cfg, *configPath, logger)
}

func usage() {
	fmt.Fprintf(os.Stderr, `scolaia - terminal client for the ScolaIA study assistant

Usage:
  scolaia [flags]          start the chat interface
  scolaia -serve [flags]   run the local stub backend

Flags:
`)
	flag.PrintDefaults()
}

// loadConfig loads the config file (or defaults) and exits on a fatal error.
// A missing or partially-broken file is reported but not fatal.
func loadConfig(path string) *config.Config {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if cfg == nil {
		fmt.Fprintf(os.Stderr, "Error: could not load config: %v\n", err)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (continuing with defaults)\n", err)
	}
	return cfg
}

// openLogger writes to ~/.scolaia/scolaia.log; stderr belongs to the UI.
func openLogger() *log.Logger {
	dir, err := config.ConfigDir()
	if err != nil {
		return log.New(io.Discard, "", 0)
	}
	if err := config.EnsureConfigDir(); err != nil {
		return log.New(io.Discard, "", 0)
	}
	f, err := os.OpenFile(filepath.Join(dir, "scolaia.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return log.New(io.Discard, "", 0)
	}
	return log.New(f, "", log.LstdFlags)
}

// =============================================================================
// CLIENT WIRING
// =============================================================================

// app holds the assembled client collaborators.
type app struct {
	session     *engine.Session
	attachments *attach.Pipeline
	store       *storage.HistoryStore // nil when history is disabled
	duplex      *transport.Duplex     // nil in stream mode
}

// hooks carries the front-end callbacks that differ between TUI and plain
// mode. onState, onPreview and onAlert may be nil.
type hooks struct {
	sink      engine.Sink
	gate      engine.LoadingGate
	onState   func(transport.ConnState)
	onPreview func([]string)
	onAlert   func(string)

	// autoGreet lets the duplex channel send the configured greeting on
	// every (re)connect. Plain mode drives the greeting itself so the
	// intro cannot interleave with the prompt.
	autoGreet bool
}

// buildApp assembles the transport, engine, and attachment pipeline for one
// front end.
func buildApp(cfg *config.Config, h hooks, logger *log.Logger) (*app, error) {
	extractor := attach.NewHTTPExtractor(attach.ExtractorConfig{
		URL:     cfg.ExtractEndpoint(),
		Timeout: time.Duration(cfg.Attachments.ExtractTimeoutSecs) * time.Second,
	})
	pipeline := attach.NewPipeline(&attach.MemoryList{}, extractor, h.onPreview, h.onAlert, logger)

	agg := engine.NewAggregator(h.sink, markdown.New(), h.gate, logger)

	kind := transport.Kind(cfg.Transport.Mode)
	a := &app{attachments: pipeline}

	var dispatcher engine.Dispatcher
	switch kind {
	case transport.KindDuplex:
		wsURL, err := cfg.WSEndpoint()
		if err != nil {
			return nil, fmt.Errorf("resolve duplex endpoint: %w", err)
		}
		greeting := cfg.Transport.Greeting
		if !h.autoGreet || greeting == "" {
			greeting = "-"
		}
		d := transport.NewDuplex(transport.DuplexConfig{
			URL:              wsURL,
			ReconnectDelay:   time.Duration(cfg.Transport.ReconnectSecs) * time.Second,
			HandshakeTimeout: time.Duration(cfg.Transport.HandshakeTimeoutSecs) * time.Second,
			Greeting:         greeting,
		}, agg.Apply, h.onState, logger)
		a.duplex = d
		dispatcher = d
	case transport.KindStream:
		dispatcher = transport.NewStream(transport.StreamConfig{
			URL: cfg.StreamEndpoint(),
		}, agg.Apply, logger)
	}

	a.session = engine.NewSession(kind, dispatcher, agg, pipeline, h.sink, logger)
	a.store = openStore(cfg, logger)
	return a, nil
}

// openStore opens the history database, or returns nil when persistence is
// disabled or unavailable. A broken database never blocks chatting.
func openStore(cfg *config.Config, logger *log.Logger) *storage.HistoryStore {
	if !cfg.History.Enabled {
		return nil
	}
	path := cfg.History.DBPath
	if path == "" {
		var err error
		path, err = storage.DefaultDBPath()
		if err != nil {
			logger.Printf("history disabled: %v", err)
			return nil
		}
	}
	store, err := storage.Open(path, cfg.History.MaxConversations)
	if err != nil {
		logger.Printf("history disabled: %v", err)
		return nil
	}
	return store
}

// =============================================================================
// TUI MODE
// =============================================================================

func runTUI(cfg *config.Config, configPath string, logger *log.Logger) {
	sink := chat.NewSink()

	a, err := buildApp(cfg, hooks{
		sink:      sink,
		gate:      sink,
		onState:   sink.ConnStateChanged,
		onPreview: sink.AttachmentsChanged,
		onAlert:   sink.Alert,
		autoGreet: true,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if a.store != nil {
		defer a.store.Close()
	}

	m := chat.New(chat.Options{
		Theme:       styles.Detect(cfg.UI.Theme),
		Session:     a.session,
		Attachments: a.attachments,
		Store:       a.store,
		Logger:      logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	sink.Attach(p)

	// Live config reload: edits to the config file take effect on the next
	// read of the global config.
	if w := startConfigWatcher(configPath, logger); w != nil {
		defer w.Close()
	}

	if a.duplex != nil {
		// A failed dial is not fatal: the channel retries on its own and
		// the status bar shows the connection state.
		if err := a.duplex.Open(context.Background()); err != nil {
			logger.Printf("initial connect: %v", err)
		}
		defer a.duplex.Close()
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running scolaia: %v\n", err)
		os.Exit(1)
	}
}

func startConfigWatcher(configPath string, logger *log.Logger) *config.Watcher {
	path := configPath
	if path == "" {
		var err error
		path, err = config.ConfigPathTOML()
		if err != nil {
			return nil
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	w, err := config.NewWatcher(path, config.SetGlobal, logger)
	if err != nil {
		logger.Printf("config watcher: %v", err)
		return nil
	}
	if err := w.Watch(); err != nil {
		logger.Printf("config watcher: %v", err)
		w.Close()
		return nil
	}
	return w
}

// =============================================================================
// PLAIN MODE
// =============================================================================

func runPlain(cfg *config.Config, logger *log.Logger) {
	sink := cli.NewPlainSink(os.Stdout)

	a, err := buildApp(cfg, hooks{
		sink: sink,
		gate: sink,
		onState: func(st transport.ConnState) {
			if st == transport.StateClosedRetrying {
				sink.SystemMessage("connection lost, retrying...")
			}
		},
		onAlert: sink.SystemMessage,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if a.store != nil {
		defer a.store.Close()
	}

	if a.duplex != nil {
		if err := a.duplex.Open(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		defer a.duplex.Close()

		// The intro turn runs to completion before the first prompt. The
		// question itself is not echoed; only the answer is shown.
		if greeting := cfg.Transport.Greeting; greeting != "" {
			if err := a.session.Submit(greeting); err == nil {
				sink.Wait()
			}
		}
	}

	if err := cli.NewREPL(a.session, sink, a.attachments, a.store).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// SERVE MODE
// =============================================================================

// runServe runs the local stub backend until interrupted.
func runServe(port int) {
	srv := server.NewServer(port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		}
	}()

	fmt.Printf("ScolaIA stub backend listening on http://127.0.0.1:%d\n", srv.Port())
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
