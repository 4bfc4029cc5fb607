// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for scolaia.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.scolaia/config.toml
//   - ~/.scolaia/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/scolaia/scolaia-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete scolaia configuration.
type Config struct {
	// General settings
	Version string `toml:"version" json:"version"`

	// Server endpoints
	Server ServerConfig `toml:"server" json:"server"`

	// Transport behavior
	Transport TransportConfig `toml:"transport" json:"transport"`

	// Attachment handling
	Attachments AttachmentsConfig `toml:"attachments" json:"attachments"`

	// Conversation history persistence
	History HistoryConfig `toml:"history" json:"history"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// ServerConfig describes where the ScolaIA backend lives.
type ServerConfig struct {
	// BaseURL is the HTTP base of the backend, e.g. "http://127.0.0.1:8000".
	// The endpoint paths below are resolved against it.
	BaseURL string `toml:"base_url" json:"base_url"`
	// WSPath is the duplex channel path.
	WSPath string `toml:"ws_path" json:"ws_path"`
	// StreamPath is the one-shot streaming path.
	StreamPath string `toml:"stream_path" json:"stream_path"`
	// ExtractPath is the attachment text-extraction path.
	ExtractPath string `toml:"extract_path" json:"extract_path"`
}

// TransportConfig contains transport behavior configuration.
type TransportConfig struct {
	// Mode selects the transport: "duplex" (persistent channel with
	// reconnection) or "stream" (one request per turn).
	Mode string `toml:"mode" json:"mode"`
	// ReconnectSecs is the fixed delay before a duplex reconnect attempt.
	ReconnectSecs int `toml:"reconnect_secs" json:"reconnect_secs"`
	// HandshakeTimeoutSecs bounds the duplex dial handshake.
	HandshakeTimeoutSecs int `toml:"handshake_timeout_secs" json:"handshake_timeout_secs"`
	// Greeting is the turn sent automatically when the duplex channel
	// opens, so the assistant introduces itself. Empty disables it.
	Greeting string `toml:"greeting" json:"greeting"`
}

// AttachmentsConfig contains attachment pipeline configuration.
type AttachmentsConfig struct {
	// ExtractTimeoutSecs bounds one extraction request.
	ExtractTimeoutSecs int `toml:"extract_timeout_secs" json:"extract_timeout_secs"`
	// MaxFiles caps the number of files queued per turn (0 = unlimited).
	MaxFiles int `toml:"max_files" json:"max_files"`
}

// HistoryConfig contains conversation persistence configuration.
type HistoryConfig struct {
	// Enabled controls whether conversations are saved locally.
	Enabled bool `toml:"enabled" json:"enabled"`
	// DBPath is the SQLite database path (empty = ~/.scolaia/history.db).
	DBPath string `toml:"db_path" json:"db_path"`
	// MaxConversations caps stored conversations; oldest are pruned.
	MaxConversations int `toml:"max_conversations" json:"max_conversations"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// CompactMode uses a more compact UI layout
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
	// ShowTimestamps displays message timestamps
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps"`
	// ShowStats displays response timing under assistant messages
	ShowStats bool `toml:"show_stats" json:"show_stats"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			BaseURL:     "http://127.0.0.1:8000",
			WSPath:      "/api/v1/chat/ws",
			StreamPath:  "/api/v1/chat/stream",
			ExtractPath: "/api/v1/chat/extract-text",
		},

		Transport: TransportConfig{
			Mode:                 "duplex",
			ReconnectSecs:        3,
			HandshakeTimeoutSecs: 10,
			Greeting:             "Who are you?",
		},

		Attachments: AttachmentsConfig{
			ExtractTimeoutSecs: 60,
			MaxFiles:           10,
		},

		History: HistoryConfig{
			Enabled:          true,
			MaxConversations: 200,
		},

		UI: UIConfig{
			Theme:          "dark",
			CompactMode:    false,
			ShowTimestamps: false,
			ShowStats:      true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the scolaia configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".scolaia"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Try JSON as fallback
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Defaults only (with any load error for informational purposes)
	cfg, err = finishLoad(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// finishLoad applies env overrides, migration, defaults, and validation.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems; warn, don't fail.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		// Default to TOML
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# scolaia configuration file")
	fmt.Fprintln(file, "# Generated by scolaia - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// ENDPOINT RESOLUTION
// =============================================================================

// WSEndpoint returns the full duplex channel URL, with the scheme switched
// to ws/wss.
func (c *Config) WSEndpoint() (string, error) {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base_url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already a websocket scheme
	default:
		return "", fmt.Errorf("unsupported base_url scheme %q", u.Scheme)
	}
	u.Path = c.Server.WSPath
	return u.String(), nil
}

// StreamEndpoint returns the full one-shot streaming URL.
func (c *Config) StreamEndpoint() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + c.Server.StreamPath
}

// ExtractEndpoint returns the full text-extraction URL.
func (c *Config) ExtractEndpoint() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + c.Server.ExtractPath
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Server
	if c.Server.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: "must not be empty",
		})
	} else if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.Server.BaseURL),
		})
	}
	for _, p := range []struct{ field, value string }{
		{"server.ws_path", c.Server.WSPath},
		{"server.stream_path", c.Server.StreamPath},
		{"server.extract_path", c.Server.ExtractPath},
	} {
		if p.value != "" && !strings.HasPrefix(p.value, "/") {
			errs = append(errs, ValidationError{
				Field:   p.field,
				Message: "must start with '/'",
			})
		}
	}

	// Transport
	validModes := map[string]bool{"duplex": true, "stream": true}
	if !validModes[strings.ToLower(c.Transport.Mode)] {
		errs = append(errs, ValidationError{
			Field:   "transport.mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: duplex, stream", c.Transport.Mode),
		})
	}
	if c.Transport.ReconnectSecs < 1 || c.Transport.ReconnectSecs > 300 {
		errs = append(errs, ValidationError{
			Field:   "transport.reconnect_secs",
			Message: fmt.Sprintf("must be 1-300, got %d", c.Transport.ReconnectSecs),
		})
	}
	if c.Transport.HandshakeTimeoutSecs < 1 || c.Transport.HandshakeTimeoutSecs > 120 {
		errs = append(errs, ValidationError{
			Field:   "transport.handshake_timeout_secs",
			Message: fmt.Sprintf("must be 1-120, got %d", c.Transport.HandshakeTimeoutSecs),
		})
	}

	// Attachments
	if c.Attachments.ExtractTimeoutSecs < 1 || c.Attachments.ExtractTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "attachments.extract_timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.Attachments.ExtractTimeoutSecs),
		})
	}
	if c.Attachments.MaxFiles < 0 || c.Attachments.MaxFiles > 100 {
		errs = append(errs, ValidationError{
			Field:   "attachments.max_files",
			Message: fmt.Sprintf("must be 0-100, got %d", c.Attachments.MaxFiles),
		})
	}

	// History
	if c.History.MaxConversations < 0 {
		errs = append(errs, ValidationError{
			Field:   "history.max_conversations",
			Message: "must be non-negative",
		})
	}

	// UI
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	// Server defaults
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaults.Server.BaseURL
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = defaults.Server.WSPath
	}
	if c.Server.StreamPath == "" {
		c.Server.StreamPath = defaults.Server.StreamPath
	}
	if c.Server.ExtractPath == "" {
		c.Server.ExtractPath = defaults.Server.ExtractPath
	}

	// Transport defaults
	if c.Transport.Mode == "" {
		c.Transport.Mode = defaults.Transport.Mode
	}
	if c.Transport.ReconnectSecs == 0 {
		c.Transport.ReconnectSecs = defaults.Transport.ReconnectSecs
	}
	if c.Transport.HandshakeTimeoutSecs == 0 {
		c.Transport.HandshakeTimeoutSecs = defaults.Transport.HandshakeTimeoutSecs
	}

	// Attachment defaults
	if c.Attachments.ExtractTimeoutSecs == 0 {
		c.Attachments.ExtractTimeoutSecs = defaults.Attachments.ExtractTimeoutSecs
	}

	// History defaults
	if c.History.MaxConversations == 0 {
		c.History.MaxConversations = defaults.History.MaxConversations
	}

	// UI defaults
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// Migrate handles migration from old configuration formats to new ones.
func (c *Config) Migrate() error {
	// Normalize transport mode aliases
	switch strings.ToLower(c.Transport.Mode) {
	case "ws", "websocket":
		c.Transport.Mode = "duplex"
	case "http", "sse", "oneshot":
		c.Transport.Mode = "stream"
	}

	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - SCOLAIA_SERVER: overrides server.base_url
//   - SCOLAIA_MODE: overrides transport.mode
//   - SCOLAIA_RECONNECT_SECS: overrides transport.reconnect_secs
//   - SCOLAIA_HISTORY: set to "0" or "false" to disable history
//   - SCOLAIA_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if server := os.Getenv("SCOLAIA_SERVER"); server != "" {
		c.Server.BaseURL = server
	}

	if mode := os.Getenv("SCOLAIA_MODE"); mode != "" {
		c.Transport.Mode = mode
	}

	if secs := os.Getenv("SCOLAIA_RECONNECT_SECS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil {
			c.Transport.ReconnectSecs = n
		}
	}

	if history := os.Getenv("SCOLAIA_HISTORY"); history != "" {
		c.History.Enabled = !(history == "0" || strings.ToLower(history) == "false")
	}

	if theme := os.Getenv("SCOLAIA_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "transport.mode").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation (e.g., "transport.mode").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	// Handle string input with type conversion
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		}
	}

	// Direct assignment for matching types
	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}

	// Type conversion for compatible types
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"server.base_url",
		"server.ws_path",
		"server.stream_path",
		"server.extract_path",
		"transport.mode",
		"transport.reconnect_secs",
		"transport.handshake_timeout_secs",
		"transport.greeting",
		"attachments.extract_timeout_secs",
		"attachments.max_files",
		"history.enabled",
		"history.db_path",
		"history.max_conversations",
		"ui.theme",
		"ui.compact_mode",
		"ui.show_timestamps",
		"ui.show_stats",
	}
}

// Merge merges another config into this one, overwriting only non-zero values.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Version != "" {
		c.Version = other.Version
	}

	// Server
	if other.Server.BaseURL != "" {
		c.Server.BaseURL = other.Server.BaseURL
	}
	if other.Server.WSPath != "" {
		c.Server.WSPath = other.Server.WSPath
	}
	if other.Server.StreamPath != "" {
		c.Server.StreamPath = other.Server.StreamPath
	}
	if other.Server.ExtractPath != "" {
		c.Server.ExtractPath = other.Server.ExtractPath
	}

	// Transport
	if other.Transport.Mode != "" {
		c.Transport.Mode = other.Transport.Mode
	}
	if other.Transport.ReconnectSecs != 0 {
		c.Transport.ReconnectSecs = other.Transport.ReconnectSecs
	}
	if other.Transport.HandshakeTimeoutSecs != 0 {
		c.Transport.HandshakeTimeoutSecs = other.Transport.HandshakeTimeoutSecs
	}
	if other.Transport.Greeting != "" {
		c.Transport.Greeting = other.Transport.Greeting
	}

	// Attachments
	if other.Attachments.ExtractTimeoutSecs != 0 {
		c.Attachments.ExtractTimeoutSecs = other.Attachments.ExtractTimeoutSecs
	}
	if other.Attachments.MaxFiles != 0 {
		c.Attachments.MaxFiles = other.Attachments.MaxFiles
	}

	// History
	if other.History.Enabled {
		c.History.Enabled = true
	}
	if other.History.DBPath != "" {
		c.History.DBPath = other.History.DBPath
	}
	if other.History.MaxConversations != 0 {
		c.History.MaxConversations = other.History.MaxConversations
	}

	// UI
	if other.UI.Theme != "" {
		c.UI.Theme = other.UI.Theme
	}
	if other.UI.CompactMode {
		c.UI.CompactMode = true
	}
	if other.UI.ShowTimestamps {
		c.UI.ShowTimestamps = true
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Log but don't fail - use defaults
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
