// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rp2-ai/rp2-ai-helper/internal/extension"
)

// Run opens a panel through ext and shows it in the terminal until the
// user quits or ctx is done. The panel is disposed on return.
func Run(ctx context.Context, ext *extension.Extension, opts Options, teaOpts ...tea.ProgramOption) error {
	poster := &ProgramPoster{}
	session, err := ext.OpenPanel(ctx, poster)
	if err != nil {
		return fmt.Errorf("open panel: %w", err)
	}
	defer session.Dispose()

	if opts.Title == "" {
		opts.Title = session.Title
	}

	programOpts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, teaOpts...)
	p := tea.NewProgram(New(session, opts), programOpts...)
	poster.Attach(p)

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("panel UI: %w", err)
	}
	return nil
}
