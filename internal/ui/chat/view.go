// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rp2-ai/rp2-ai-helper/internal/util"
)

// View implements tea.Model.
func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderPrompt(),
		m.viewport.View(),
		m.renderInput(),
		m.renderStatus(),
		m.help.View(m.keys),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(m.title)
	if m.modelName != "" {
		title += " " + m.theme.HeaderModel.Render(m.modelName)
	}
	return m.theme.Header.Width(m.width).Render(title)
}

func (m Model) renderPrompt() string {
	if m.prompt == "" {
		return ""
	}
	line := strings.Join(strings.Fields(m.prompt), " ")
	label := m.theme.PromptLabel.Render("> ")
	return label + m.theme.Prompt.Render(util.TruncateWidth(line, max(m.width-4, 10)))
}

func (m Model) renderInput() string {
	if m.input.Focused() {
		return m.theme.InputFocused.Render(m.input.View())
	}
	return m.theme.InputBorder.Render(m.input.View())
}

func (m Model) renderStatus() string {
	var left string
	switch {
	case m.busy:
		elapsed := time.Since(m.started).Truncate(100 * time.Millisecond)
		left = m.theme.StatusBusy.Render(fmt.Sprintf("%s working %s", m.spinner.View(), elapsed))
	default:
		left = m.theme.StatusIdle.Render("ready")
	}
	if m.notice != "" {
		left += "  " + m.theme.Notice.Render(m.notice)
	}
	return m.theme.StatusBar.Width(m.width).Render(left)
}
