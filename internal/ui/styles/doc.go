// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles centralizes lipgloss styling for the TUI.
//
// A Theme bundles every style the chat view needs, built once for the
// detected terminal appearance. Views never construct ad-hoc styles; they
// pull from the theme so a palette change touches one file.
//
// # Usage
//
//	theme := styles.Detect(cfg.UI.Theme)
//	header := theme.HeaderTitle.Render("ScolaIA")
package styles
