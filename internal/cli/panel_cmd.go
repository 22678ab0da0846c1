// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/rp2-ai/rp2-ai-helper/internal/ui/chat"
	"github.com/rp2-ai/rp2-ai-helper/internal/ui/styles"
)

func newPanelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "panel",
		Short: "Open the assistant panel in the terminal",
		Args:  cobra.NoArgs,
		RunE:  a.runPanel,
	}
}

func (a *app) runPanel(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the terminal panel needs a terminal; use 'stdio' or 'serve' instead")
	}

	cfg := a.config()
	if cfg.Log.File == "" {
		// stderr shares the screen with the panel
		a.logger = a.logger.WithOptions(zap.IncreaseLevel(zapcore.ErrorLevel))
	}

	ext := a.newExtension()
	defer ext.Deactivate()

	return chat.Run(cmd.Context(), ext, chat.Options{
		Title: cfg.Panel.Title,
		Model: cfg.Ollama.Model,
		Theme: styles.NewTheme(),
	})
}
