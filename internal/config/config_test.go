// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should validate cleanly: %v", err)
	}
}

func TestValidate_BadTransportMode(t *testing.T) {
	cfg := Default()
	cfg.Transport.Mode = "carrier-pigeon"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for bad transport mode")
	}
	if !strings.Contains(err.Error(), "transport.mode") {
		t.Errorf("error should name the field, got: %v", err)
	}
}

func TestValidate_ReconnectBounds(t *testing.T) {
	cfg := Default()
	cfg.Transport.ReconnectSecs = 0
	if cfg.Validate() == nil {
		t.Error("reconnect_secs of 0 should be rejected")
	}

	cfg = Default()
	cfg.Transport.ReconnectSecs = 301
	if cfg.Validate() == nil {
		t.Error("reconnect_secs over 300 should be rejected")
	}
}

func TestValidate_BadBaseURL(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = "not a url"
	if cfg.Validate() == nil {
		t.Error("malformed base_url should be rejected")
	}
}

func TestValidate_PathsRequireLeadingSlash(t *testing.T) {
	cfg := Default()
	cfg.Server.WSPath = "api/v1/chat/ws"
	if cfg.Validate() == nil {
		t.Error("path without leading slash should be rejected")
	}
}

func TestSetDefaults_FillsMissing(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Transport.Mode != "duplex" {
		t.Errorf("Transport.Mode = %q, want duplex", cfg.Transport.Mode)
	}
	if cfg.Transport.ReconnectSecs != 3 {
		t.Errorf("Transport.ReconnectSecs = %d, want 3", cfg.Transport.ReconnectSecs)
	}
	if cfg.Server.BaseURL == "" {
		t.Error("Server.BaseURL should get a default")
	}
}

func TestMigrate_ModeAliases(t *testing.T) {
	tests := []struct {
		alias string
		want  string
	}{
		{"ws", "duplex"},
		{"websocket", "duplex"},
		{"http", "stream"},
		{"sse", "stream"},
		{"duplex", "duplex"},
	}

	for _, tc := range tests {
		cfg := Default()
		cfg.Transport.Mode = tc.alias
		if err := cfg.Migrate(); err != nil {
			t.Fatalf("Migrate failed: %v", err)
		}
		if cfg.Transport.Mode != tc.want {
			t.Errorf("Migrate(%q) -> %q, want %q", tc.alias, cfg.Transport.Mode, tc.want)
		}
	}
}

// =============================================================================
// ENDPOINT RESOLUTION
// =============================================================================

func TestWSEndpoint_SchemeSwitch(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = "http://localhost:8000"

	got, err := cfg.WSEndpoint()
	if err != nil {
		t.Fatalf("WSEndpoint failed: %v", err)
	}
	if got != "ws://localhost:8000/api/v1/chat/ws" {
		t.Errorf("WSEndpoint = %q", got)
	}

	cfg.Server.BaseURL = "https://chat.example.edu"
	got, err = cfg.WSEndpoint()
	if err != nil {
		t.Fatalf("WSEndpoint failed: %v", err)
	}
	if !strings.HasPrefix(got, "wss://") {
		t.Errorf("WSEndpoint = %q, want wss scheme", got)
	}
}

func TestStreamAndExtractEndpoints(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = "http://localhost:8000/"

	if got := cfg.StreamEndpoint(); got != "http://localhost:8000/api/v1/chat/stream" {
		t.Errorf("StreamEndpoint = %q", got)
	}
	if got := cfg.ExtractEndpoint(); got != "http://localhost:8000/api/v1/chat/extract-text" {
		t.Errorf("ExtractEndpoint = %q", got)
	}
}

// =============================================================================
// LOAD / SAVE ROUND TRIP
// =============================================================================

func TestLoadFromPath_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
base_url = "http://10.0.0.5:9000"

[transport]
mode = "stream"
reconnect_secs = 5
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Server.BaseURL != "http://10.0.0.5:9000" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Transport.Mode != "stream" {
		t.Errorf("Mode = %q, want stream", cfg.Transport.Mode)
	}
	// Fields absent from the file keep defaults.
	if cfg.Server.WSPath != "/api/v1/chat/ws" {
		t.Errorf("WSPath = %q, want default", cfg.Server.WSPath)
	}
}

func TestLoadFromPath_InvalidRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[transport]
mode = "nonsense"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("invalid transport mode should fail load")
	}
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Transport.Mode = "stream"
	if err := SaveJSON(cfg, path); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Transport.Mode != "stream" {
		t.Errorf("Mode = %q after round trip", loaded.Transport.Mode)
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SCOLAIA_SERVER", "http://override:8000")
	t.Setenv("SCOLAIA_MODE", "stream")
	t.Setenv("SCOLAIA_RECONNECT_SECS", "7")
	t.Setenv("SCOLAIA_HISTORY", "false")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.BaseURL != "http://override:8000" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Transport.Mode != "stream" {
		t.Errorf("Mode = %q", cfg.Transport.Mode)
	}
	if cfg.Transport.ReconnectSecs != 7 {
		t.Errorf("ReconnectSecs = %d", cfg.Transport.ReconnectSecs)
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled should be false")
	}
}

// =============================================================================
// DOT NOTATION GET/SET
// =============================================================================

func TestGetSet_DotNotation(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("transport.mode", "stream"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := cfg.Get("transport.mode")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "stream" {
		t.Errorf("Get = %v, want stream", got)
	}

	if err := cfg.Set("transport.reconnect_secs", "10"); err != nil {
		t.Fatalf("Set int from string failed: %v", err)
	}
	if cfg.Transport.ReconnectSecs != 10 {
		t.Errorf("ReconnectSecs = %d, want 10", cfg.Transport.ReconnectSecs)
	}

	if _, err := cfg.Get("no.such.key"); err == nil {
		t.Error("Get of unknown key should fail")
	}
}

func TestGetAllKeys_Resolvable(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("key %q not resolvable: %v", key, err)
		}
	}
}

// =============================================================================
// CONCURRENCY
// =============================================================================

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and ReloadGlobal()
// can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}

	wg.Wait()
}
