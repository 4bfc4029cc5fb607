// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the ScolaIA TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	UserBubble     lipgloss.Style
	AssistantText  lipgloss.Style
	SystemText     lipgloss.Style
	ErrorText      lipgloss.Style
	Timestamp      lipgloss.Style
	StatsLine      lipgloss.Style

	// AttachmentChip tags a user turn with the name of an attached file.
	AttachmentChip lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	CharCount        lipgloss.Style
	CharCountWarning lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar     lipgloss.Style
	ConnOnline    lipgloss.Style
	ConnOffline   lipgloss.Style
	ConnRetrying  lipgloss.Style
	TransportMode lipgloss.Style
	ShortcutKey   lipgloss.Style
	ShortcutDesc  lipgloss.Style

	// ==========================================================================
	// LOADING STYLES
	// ==========================================================================

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
}

// Palette anchors for the two supported appearances.
const (
	accentDark  = "#7C8CF8"
	accentLight = "#4C5BD4"
)

// NewTheme builds a theme for the given appearance.
func NewTheme(isDark bool) *Theme {
	accent := accentDark
	dim := "240"
	userColor := "#5FD7A7"
	errColor := "#F87070"
	if !isDark {
		accent = accentLight
		dim = "245"
		userColor = "#1A875F"
		errColor = "#C43E3E"
	}

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(lipgloss.Color(accent))
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accent))
	t.HeaderSubtitle = lipgloss.NewStyle().Foreground(lipgloss.Color(dim))

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(userColor))
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accent))
	t.SystemLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(dim))
	t.UserBubble = lipgloss.NewStyle().Foreground(lipgloss.Color(userColor))
	t.AssistantText = lipgloss.NewStyle()
	t.SystemText = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color(dim))
	t.ErrorText = lipgloss.NewStyle().Foreground(lipgloss.Color(errColor))
	t.Timestamp = lipgloss.NewStyle().Faint(true)
	t.StatsLine = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color(dim))

	t.AttachmentChip = lipgloss.NewStyle().
		Foreground(lipgloss.Color(accent)).
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)

	t.InputContainer = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true, false, false, false).
		BorderForeground(lipgloss.Color(dim))
	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accent))
	t.CharCount = lipgloss.NewStyle().Faint(true)
	t.CharCountWarning = lipgloss.NewStyle().Foreground(lipgloss.Color(errColor))

	t.StatusBar = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	t.ConnOnline = lipgloss.NewStyle().Foreground(lipgloss.Color(userColor))
	t.ConnOffline = lipgloss.NewStyle().Foreground(lipgloss.Color(errColor))
	t.ConnRetrying = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	t.TransportMode = lipgloss.NewStyle().Foreground(lipgloss.Color(accent))
	t.ShortcutKey = lipgloss.NewStyle().Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Faint(true)

	t.Spinner = lipgloss.NewStyle().Foreground(lipgloss.Color(accent))
	t.ThinkingText = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color(dim))

	return t
}

// Detect picks the appearance from the terminal background and builds the
// matching theme. "dark" and "light" force an appearance; anything else
// (including "auto") detects it.
func Detect(preference string) *Theme {
	switch preference {
	case "dark":
		return NewTheme(true)
	case "light":
		return NewTheme(false)
	default:
		return NewTheme(termenv.HasDarkBackground())
	}
}
