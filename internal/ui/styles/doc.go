// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the colors and Lip Gloss styles of the terminal
// panel and the one-shot CLI output.
//
// Colors are lipgloss.AdaptiveColor values so they follow the terminal's
// light or dark background. NewTheme detects the color profile with
// termenv; NO_COLOR and dumb terminals get plain text.
package styles
