// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestNewThemeWithProfile_Ascii(t *testing.T) {
	theme := NewThemeWithProfile(termenv.Ascii, true)

	assert.True(t, theme.Plain())
	assert.Equal(t, "hello", theme.Response.Render("hello"))
	assert.NotContains(t, theme.ErrorText.Render("boom"), "\x1b[")
}

func TestNewThemeWithProfile_Color(t *testing.T) {
	theme := NewThemeWithProfile(termenv.TrueColor, true)

	assert.False(t, theme.Plain())
	assert.Contains(t, theme.ErrorText.Render("boom"), "\x1b[")
	assert.Contains(t, theme.ErrorText.Render("boom"), "boom")
}

func TestInputBorder(t *testing.T) {
	theme := NewThemeWithProfile(termenv.Ascii, false)
	box := theme.InputBorder.Render("x")
	assert.Equal(t, 3, len(strings.Split(box, "\n")))
	assert.Contains(t, box, "╭")
}

func TestRenderStatus(t *testing.T) {
	assert.Contains(t, RenderStatus(true, "done"), IndicatorSuccess+" done")
	assert.Contains(t, RenderStatus(false, "failed"), IndicatorError+" failed")
	assert.Contains(t, RenderWarning("careful"), IndicatorWarning)
	assert.Contains(t, RenderInfo("note"), IndicatorInfo)
}
