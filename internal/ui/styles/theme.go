// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles of the panel view.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// PANEL FRAME
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style

	// ==========================================================================
	// CONVERSATION
	// ==========================================================================

	Prompt       lipgloss.Style
	PromptLabel  lipgloss.Style
	Response     lipgloss.Style
	Notice       lipgloss.Style
	Thinking     lipgloss.Style
	ErrorText    lipgloss.Style
	InputBorder  lipgloss.Style
	InputFocused lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusBusy   lipgloss.Style
	StatusIdle   lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme detects the terminal and builds the styles.
func NewTheme() *Theme {
	profile := termenv.EnvColorProfile()
	if os.Getenv("NO_COLOR") != "" {
		profile = termenv.Ascii
	}
	return NewThemeWithProfile(profile, termenv.HasDarkBackground())
}

// NewThemeWithProfile builds the styles for a known color profile.
func NewThemeWithProfile(profile termenv.Profile, isDark bool) *Theme {
	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// Plain reports whether the theme renders without color.
func (t *Theme) Plain() bool {
	return t.ColorProfile == termenv.Ascii
}

func (t *Theme) initStyles() {
	r := lipgloss.NewRenderer(os.Stdout)
	r.SetColorProfile(t.ColorProfile)
	r.SetHasDarkBackground(t.IsDark)

	t.Header = r.NewStyle().
		Bold(true).
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = r.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderModel = r.NewStyle().Foreground(TextSecondary).Italic(true)

	t.Prompt = r.NewStyle().Foreground(TextPrimary).Bold(true)
	t.PromptLabel = r.NewStyle().Foreground(Cyan).Bold(true)
	t.Response = r.NewStyle().Foreground(TextPrimary)
	t.Notice = r.NewStyle().Foreground(Amber)
	t.Thinking = r.NewStyle().Foreground(Purple).Italic(true)
	t.ErrorText = r.NewStyle().Foreground(Rose).Bold(true)

	t.InputBorder = r.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)
	t.InputFocused = t.InputBorder.BorderForeground(Purple)

	t.StatusBar = r.NewStyle().Foreground(TextMuted)
	t.StatusBusy = r.NewStyle().Foreground(Amber).Bold(true)
	t.StatusIdle = r.NewStyle().Foreground(Emerald)
	t.ShortcutKey = r.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = r.NewStyle().Foreground(TextMuted)
}
