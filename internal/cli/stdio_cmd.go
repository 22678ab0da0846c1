// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/rp2-ai/rp2-ai-helper/internal/stdio"
)

func newStdioCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Host one panel over JSON lines on stdin and stdout",
		Long: `Read panel messages from stdin and write panel messages to stdout,
one JSON object per line:

  {"command":"chat","text":"How do I blink the LED?"}
  {"command":"chatResponse","text":"Use gpio_put..."}
  {"command":"chatResponse","text":"Use gpio_put...","done":true}

The panel closes when stdin ends, after the running answer completes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			ext := a.newExtension()
			defer ext.Deactivate()

			host := stdio.New(ext, cmd.InOrStdin(), cmd.OutOrStdout(), a.logger.Named("stdio"))
			if err := host.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
