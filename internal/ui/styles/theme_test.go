// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "testing"

func TestNewThemeBuildsBothAppearances(t *testing.T) {
	dark := NewTheme(true)
	if !dark.IsDark {
		t.Error("dark theme should report IsDark")
	}

	light := NewTheme(false)
	if light.IsDark {
		t.Error("light theme should not report IsDark")
	}
}

func TestDetectForcedAppearance(t *testing.T) {
	if th := Detect("dark"); !th.IsDark {
		t.Error("Detect(dark) should force dark appearance")
	}
	if th := Detect("light"); th.IsDark {
		t.Error("Detect(light) should force light appearance")
	}
	// "auto" must not panic without a real terminal.
	_ = Detect("auto")
}
