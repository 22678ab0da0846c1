// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rp2-ai/rp2-ai-helper/internal/config"
	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
	"github.com/rp2-ai/rp2-ai-helper/internal/ui/styles"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Line-oriented chat with history",
		Long: `Chat with the model one line at a time. Up and down browse earlier
questions. Ctrl+C while an answer streams cancels it; Ctrl+C or Ctrl+D at
the prompt exits.`,
		Args: cobra.NoArgs,
		RunE: a.runChat,
	}
}

// =============================================================================
// LINE INPUT WITH HISTORY
// =============================================================================

// lineReader is the part of *liner.State the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

func historyFile() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

func loadHistory(line *liner.State, path string) {
	if f, err := os.Open(path); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
}

func saveHistory(line *liner.State, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = line.WriteHistory(f)
	return err
}

// =============================================================================
// REPL
// =============================================================================

func (a *app) runChat(cmd *cobra.Command, args []string) error {
	if !isTerminal(os.Stdin) {
		return errors.New("chat needs a terminal; pipe questions to 'ask' instead")
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	histPath := historyFile()
	loadHistory(line, histPath)
	defer func() {
		if err := saveHistory(line, histPath); err != nil {
			a.logger.Debug("Could not save chat history", zap.Error(err))
		}
		line.Close()
	}()

	ext := a.newExtension()
	defer ext.Deactivate()

	events := make(chan panel.Message, 64)
	session, err := ext.OpenPanel(cmd.Context(), panel.PosterFunc(func(msg panel.Message) {
		events <- msg
	}))
	if err != nil {
		return err
	}
	defer session.Dispose()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  model %s\n", styles.RenderInfo(session.Title), a.config().Ollama.Model)
	fmt.Fprintln(out, "Type /exit to quit.")

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	return runREPL(cmd.Context(), repl{
		lines:      line,
		session:    session,
		events:     events,
		interrupts: interrupts,
		out:        out,
		errOut:     cmd.ErrOrStderr(),
	})
}

type repl struct {
	lines      lineReader
	session    *panel.Session
	events     <-chan panel.Message
	interrupts <-chan os.Signal
	out        io.Writer
	errOut     io.Writer
}

func runREPL(ctx context.Context, r repl) error {
	for {
		input, err := r.lines.Prompt("rp2> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		switch strings.ToLower(input) {
		case "":
			continue
		case "/exit", "/quit", "exit", "quit":
			return nil
		}
		r.lines.AppendHistory(input)

		if err := r.exchange(ctx, input); err != nil {
			return err
		}
	}
}

// exchange sends one question and prints messages until the final one.
func (r repl) exchange(ctx context.Context, input string) error {
	if err := r.session.Receive(ctx, panel.Chat(input)); err != nil {
		return err
	}

	printed := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-r.interrupts:
			r.session.Cancel()

		case msg := <-r.events:
			if msg.Done && panel.IsErrorText(msg.Text) {
				if printed != "" {
					fmt.Fprintln(r.out)
				}
				fmt.Fprintln(r.errOut, styles.RenderError(msg.Text))
				return nil
			}
			printed = writeDelta(r.out, printed, msg.Text)
			if msg.Done {
				fmt.Fprintln(r.out)
				return nil
			}
		}
	}
}
