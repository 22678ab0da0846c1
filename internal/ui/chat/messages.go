// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
)

// =============================================================================
// PROGRAM MESSAGES
// =============================================================================

// ResponseMsg carries one outbound panel message into the program.
type ResponseMsg struct {
	Message panel.Message
}

// deliveryErrMsg reports that an inbound message could not be delivered.
type deliveryErrMsg struct {
	err error
}

// =============================================================================
// PROGRAM POSTER
// =============================================================================

// ProgramPoster forwards panel messages to a running tea.Program. Messages
// posted before Attach are dropped.
type ProgramPoster struct {
	mu      sync.Mutex
	program *tea.Program
}

// Attach sets the program that receives messages.
func (p *ProgramPoster) Attach(program *tea.Program) {
	p.mu.Lock()
	p.program = program
	p.mu.Unlock()
}

// Post implements panel.Poster.
func (p *ProgramPoster) Post(msg panel.Message) {
	p.mu.Lock()
	program := p.program
	p.mu.Unlock()
	if program != nil {
		program.Send(ResponseMsg{Message: msg})
	}
}
