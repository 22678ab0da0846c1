// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/rp2-ai/rp2-ai-helper/internal/ui/styles"
)

// markdownRenderer renders finished responses. A nil renderer or a render
// error falls back to wrapped plain text.
type markdownRenderer struct {
	width int
	tr    *glamour.TermRenderer
}

func newMarkdownRenderer(theme *styles.Theme, width int) *markdownRenderer {
	style := "dark"
	switch {
	case theme.Plain():
		style = "notty"
	case !theme.IsDark:
		style = "light"
	}

	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &markdownRenderer{width: width}
	}
	return &markdownRenderer{width: width, tr: tr}
}

func (r *markdownRenderer) render(text string) string {
	if r.tr != nil {
		if out, err := r.tr.Render(text); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return wrap(text, r.width)
}

func wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
