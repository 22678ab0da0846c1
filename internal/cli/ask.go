// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
	"github.com/rp2-ai/rp2-ai-helper/internal/ui/styles"
)

func newAskCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one question and print the answer",
		Long: `Ask one question and print the answer.

Without arguments the question is read from stdin. On a terminal the
answer is rendered as Markdown once complete; otherwise it is streamed
as plain text.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "" && !isTerminal(cmd.InOrStdin()) {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read question: %w", err)
				}
				prompt = string(data)
			}
			if strings.TrimSpace(prompt) == "" {
				return errors.New(panel.TextEmptyPrompt)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			render := !raw && isTerminal(out)

			final, err := a.ask(ctx, prompt, out, !render)
			if err != nil {
				return err
			}
			if render {
				fmt.Fprintln(out, renderMarkdown(final.Text, terminalWidth(out)))
			}
			if ctx.Err() != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), styles.RenderWarning("Cancelled"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print plain text even on a terminal")
	return cmd
}

// ask runs one exchange on a fresh panel and returns its final message.
// With stream set, text is written to out as it arrives.
func (a *app) ask(ctx context.Context, prompt string, out io.Writer, stream bool) (panel.Message, error) {
	ext := a.newExtension()
	defer ext.Deactivate()

	var (
		mu      sync.Mutex
		last    panel.Message
		printed string
	)
	poster := panel.PosterFunc(func(msg panel.Message) {
		mu.Lock()
		defer mu.Unlock()
		last = msg
		if stream && !panel.IsErrorText(msg.Text) {
			printed = writeDelta(out, printed, msg.Text)
		}
	})

	session, err := ext.OpenPanel(ctx, poster)
	if err != nil {
		return panel.Message{}, err
	}
	defer session.Dispose()

	if err := session.Receive(ctx, panel.Chat(prompt)); err != nil {
		return panel.Message{}, err
	}
	session.Wait()

	mu.Lock()
	defer mu.Unlock()
	if panel.IsErrorText(last.Text) {
		return last, errors.New(last.Text)
	}
	if stream && printed != "" {
		fmt.Fprintln(out)
	}
	return last, nil
}

// writeDelta writes the part of text not yet printed and returns the new
// printed text. Panel messages carry the whole answer so far, so normally
// only a suffix is new.
func writeDelta(out io.Writer, printed, text string) string {
	if strings.HasPrefix(text, printed) {
		io.WriteString(out, text[len(printed):])
		return text
	}
	if printed != "" {
		io.WriteString(out, "\n")
	}
	io.WriteString(out, text)
	return text
}

// renderMarkdown renders text for the terminal, or returns it unchanged
// if rendering fails.
func renderMarkdown(text string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}
