// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package webview

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
)

//go:embed panel.html
var panelHTML string

var panelTemplate = template.Must(template.New("panel").Parse(panelHTML))

// pageData is everything the panel page needs. Strings used inside the
// script are escaped as JS literals by html/template.
type pageData struct {
	Title       string
	WSPath      string
	EmptyPrompt string
	Thinking    string
}

// renderPanel renders the fixed panel page.
func renderPanel(title, wsPath string) ([]byte, error) {
	var buf bytes.Buffer
	err := panelTemplate.Execute(&buf, pageData{
		Title:       title,
		WSPath:      wsPath,
		EmptyPrompt: panel.TextEmptyPrompt,
		Thinking:    panel.TextThinking,
	})
	if err != nil {
		return nil, fmt.Errorf("render panel: %w", err)
	}
	return buf.Bytes(), nil
}
