// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stdio hosts one panel over newline-delimited JSON on a pair of
// streams, for editors that run rp2-ai-helper as a child process.
//
// Each input line is a panel.Message; each output line is one too.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rp2-ai/rp2-ai-helper/internal/extension"
	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
)

// MaxLineSize is the longest accepted input line.
const MaxLineSize = 1 << 20

// TextTooLarge is posted before giving up on an oversized line.
const TextTooLarge = "Message too large (max 1 MiB)."

// Host connects one panel to an input and an output stream.
type Host struct {
	ext    *extension.Extension
	in     io.Reader
	logger *zap.Logger

	mu  sync.Mutex
	enc *json.Encoder
}

// New creates a host reading from in and writing to out.
func New(ext *extension.Extension, in io.Reader, out io.Writer, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return &Host{ext: ext, in: in, logger: logger, enc: enc}
}

// Post writes one message line. Lines are never interleaved.
func (h *Host) Post(msg panel.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enc.Encode(msg); err != nil {
		h.logger.Error("Failed to write message", zap.Error(err))
	}
}

// Run opens a panel and feeds it input lines. At end of input it waits for
// the running exchange to finish, then disposes the panel. If ctx ends
// first the panel is disposed at once.
func (h *Host) Run(ctx context.Context) error {
	session, err := h.ext.OpenPanel(ctx, h)
	if err != nil {
		return fmt.Errorf("open panel: %w", err)
	}
	defer session.Dispose()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(h.in)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				return h.finish(session, <-readErr)
			}
			h.handleLine(ctx, session, line)
		}
	}
}

func (h *Host) handleLine(ctx context.Context, session *panel.Session, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var msg panel.Message
	if err := json.Unmarshal([]byte(line), &msg); err != nil || msg.Command == "" {
		h.logger.Warn("Invalid panel message", zap.Error(err), zap.Int("bytes", len(line)))
		h.Post(panel.Response(panel.TextInvalidMessage, false))
		return
	}
	if err := session.Receive(ctx, msg); err != nil {
		h.logger.Warn("Message after dispose", zap.Error(err))
	}
}

func (h *Host) finish(session *panel.Session, err error) error {
	if errors.Is(err, bufio.ErrTooLong) {
		h.Post(panel.Response(TextTooLarge, true))
		return fmt.Errorf("read input: %w", err)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	session.Wait()
	h.logger.Debug("Input closed")
	return nil
}
