// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rp2-ai/rp2-ai-helper/internal/ui/styles"
	"github.com/rp2-ai/rp2-ai-helper/internal/util"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that Ollama is reachable and show the settings in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			out := cmd.OutOrStdout()

			err := a.newClient().CheckRunning(cmd.Context())

			path, pathErr := a.configFile()
			source := "built-in defaults"
			if pathErr == nil {
				if _, statErr := os.Stat(path); statErr == nil {
					source = path
				}
			}

			if err != nil {
				printField(out, "Ollama", styles.RenderError(cfg.Ollama.URL+" unreachable"))
			} else {
				printField(out, "Ollama", styles.RenderSuccess(cfg.Ollama.URL))
			}
			printField(out, "Model", cfg.Ollama.Model)
			printField(out, "Max tokens", strconv.Itoa(cfg.Ollama.MaxTokens))
			printField(out, "Overlap", cfg.Panel.Overlap)
			printField(out, "Config", source)

			if err != nil {
				return fmt.Errorf("ollama check failed: %w", err)
			}
			return nil
		},
	}
}

func printField(out io.Writer, label, value string) {
	fmt.Fprintf(out, "%s %s\n", util.PadRight(label+":", 12), value)
}
