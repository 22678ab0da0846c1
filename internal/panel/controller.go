// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/rp2-ai/rp2-ai-helper/internal/ollama"
)

// Generator streams a model response for a prompt. *ollama.Client
// implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string, onText func(text string)) error
}

// =============================================================================
// OVERLAP POLICY
// =============================================================================

// OverlapPolicy decides what a chat submission does while another exchange
// is still running.
type OverlapPolicy string

const (
	// OverlapReject answers the new submission with TextBusy and leaves the
	// running exchange alone.
	OverlapReject OverlapPolicy = "reject"
	// OverlapReplace cancels the running exchange silently and starts the
	// new one once it has stopped.
	OverlapReplace OverlapPolicy = "replace"
)

// ParseOverlapPolicy parses a policy name. The empty string means reject.
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch OverlapPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverlapReject:
		return OverlapReject, nil
	case OverlapReplace:
		return OverlapReplace, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q (want reject or replace)", s)
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Overlap OverlapPolicy
	Logger  *zap.Logger
}

// flight is one exchange that holds, or waits for, the controller's slot.
type flight struct {
	exchange *Exchange
	ctx      context.Context
	cancel   context.CancelFunc
	stop     func() bool

	// quiet exchanges post nothing more: they were replaced or the panel
	// was disposed.
	quiet atomic.Bool

	// aborted exchanges are winding down and no longer block a new chat.
	aborted atomic.Bool
}

func (f *flight) abort() {
	f.aborted.Store(true)
	f.cancel()
}

// busy reports whether f still owns the panel.
func (f *flight) busy() bool {
	return f != nil && !f.aborted.Load()
}

func (f *flight) release() {
	f.stop()
	f.cancel()
}

// Controller turns inbound panel messages into model exchanges and posts
// the results back. Handle never blocks on the model.
type Controller struct {
	gen     Generator
	poster  Poster
	overlap OverlapPolicy
	logger  *zap.Logger

	slot *semaphore.Weighted

	ctx  context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	active *flight
	closed bool

	postMu sync.Mutex
	wg     sync.WaitGroup
}

// NewController creates a controller that posts to poster.
func NewController(gen Generator, poster Poster, opts ControllerOptions) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	overlap := opts.Overlap
	if overlap == "" {
		overlap = OverlapReject
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Controller{
		gen:     gen,
		poster:  poster,
		overlap: overlap,
		logger:  logger,
		slot:    semaphore.NewWeighted(1),
		ctx:     ctx,
		stop:    stop,
	}
}

// Handle processes one inbound message. Cancelling ctx aborts an exchange
// started by this message.
func (c *Controller) Handle(ctx context.Context, msg Message) {
	switch msg.Command {
	case CommandChat:
		c.chat(ctx, msg.Text)
	case CommandCancel:
		if !c.Cancel() {
			c.logger.Debug("No active request to cancel")
		}
	default:
		c.logger.Warn("Ignoring unknown panel command", zap.String("command", string(msg.Command)))
	}
}

func (c *Controller) chat(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		c.post(Response(TextEmptyPrompt, true))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	// A slot held by an aborted or finishing exchange is waited for.
	acquired := c.slot.TryAcquire(1)
	if !acquired && c.overlap == OverlapReject && c.active.busy() {
		running := c.active
		c.mu.Unlock()
		c.logger.Info("Rejected overlapping request", zap.String("running", running.exchange.ID))
		// Not Done: the running exchange still owns the panel.
		c.post(Response(TextBusy, false))
		return
	}

	if !acquired && c.active.busy() {
		c.logger.Info("Replacing running exchange", zap.String("exchange", c.active.exchange.ID))
		c.active.quiet.Store(true)
		c.active.cancel()
	}

	f := c.newFlight(ctx, text)
	c.active = f
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(f, acquired)
}

func (c *Controller) newFlight(parent context.Context, prompt string) *flight {
	ctx, cancel := context.WithCancel(c.ctx)
	f := &flight{
		exchange: NewExchange(prompt),
		ctx:      ctx,
		cancel:   cancel,
		stop:     func() bool { return false },
	}
	if parent != nil {
		f.stop = context.AfterFunc(parent, f.abort)
	}
	return f
}

// run drives one exchange to its terminal message.
func (c *Controller) run(f *flight, acquired bool) {
	defer c.wg.Done()
	defer f.release()

	ex := f.exchange
	var err error
	if !acquired {
		err = c.slot.Acquire(f.ctx, 1)
		acquired = err == nil
	}

	if err == nil {
		c.logger.Info("Exchange started",
			zap.String("exchange", ex.ID),
			zap.Int("prompt_len", len(ex.Prompt)))

		err = c.gen.Generate(f.ctx, ex.Prompt, func(text string) {
			full := ex.Append(text)
			if f.quiet.Load() {
				return
			}
			c.post(Response(full, false))
		})
	}

	// The terminal message goes out before the slot is released so a
	// waiting exchange never posts ahead of it.
	c.clearActive(f)
	if f.quiet.Load() || c.isClosed() {
		c.logger.Debug("Exchange ended without posting", zap.String("exchange", ex.ID), zap.Error(err))
	} else {
		c.post(c.outcome(ex, err))
	}
	if acquired {
		c.slot.Release(1)
	}
}

// outcome builds the terminal message for an exchange.
func (c *Controller) outcome(ex *Exchange, err error) Message {
	fields := []zap.Field{
		zap.String("exchange", ex.ID),
		zap.Duration("elapsed", ex.Elapsed()),
		zap.Int("pieces", ex.Pieces()),
	}

	text := ex.Response()
	switch {
	case err == nil:
		c.logger.Info("Exchange finished", fields...)
		if text == "" {
			text = TextNoResponse
		}
	case errors.Is(err, context.Canceled):
		c.logger.Info("Exchange cancelled", fields...)
		if text == "" {
			text = TextCancelled
		}
	case ollama.IsStreamError(err):
		c.logger.Error("Error reading stream", append(fields, zap.Error(err))...)
		text = prefixStreamError + streamCause(err)
	default:
		c.logger.Error("Error calling model", append(fields, zap.Error(err))...)
		text = prefixCallError + err.Error()
	}
	return Response(text, true)
}

// streamCause returns the underlying read error text of a stream failure.
func streamCause(err error) string {
	var clientErr *ollama.ClientError
	if errors.As(err, &clientErr) && clientErr.Cause != nil {
		return clientErr.Cause.Error()
	}
	return err.Error()
}

func (c *Controller) clearActive(f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == f {
		c.active = nil
	}
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) post(msg Message) {
	c.postMu.Lock()
	defer c.postMu.Unlock()
	c.poster.Post(msg)
}

// Cancel aborts the running exchange. It reports whether there was one.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return false
	}
	c.logger.Info("Cancelling exchange", zap.String("exchange", c.active.exchange.ID))
	c.active.abort()
	return true
}

// InFlight reports whether an exchange is running or waiting to run.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Wait blocks until every started exchange has posted its last message.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels the running exchange without posting for it and waits
// for its goroutine. Later messages are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.active != nil {
		c.active.quiet.Store(true)
	}
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}
