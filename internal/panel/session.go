// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ViewType identifies the panel kind to hosts.
	ViewType = "rp2AiHelper"
	// DefaultTitle is shown when no title is configured.
	DefaultTitle = "RP2 AI Helper Panel"
)

// ErrDisposed is returned by Receive after the panel was disposed.
var ErrDisposed = errors.New("panel disposed")

// SessionOptions configures a Session.
type SessionOptions struct {
	Title      string
	Controller ControllerOptions
}

// Session is one open panel. It owns a Controller and drops outbound
// messages once disposed.
type Session struct {
	ID       string
	ViewType string
	Title    string
	Created  time.Time

	controller *Controller
	logger     *zap.Logger

	mu        sync.Mutex
	disposed  bool
	onDispose []func()
}

// NewSession opens a panel whose messages go to poster.
func NewSession(gen Generator, poster Poster, opts SessionOptions) *Session {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	logger := opts.Controller.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		ID:       uuid.NewString(),
		ViewType: ViewType,
		Title:    title,
		Created:  time.Now(),
	}
	s.logger = logger.With(zap.String("panel", s.ID))

	ctrlOpts := opts.Controller
	ctrlOpts.Logger = s.logger
	s.controller = NewController(gen, PosterFunc(func(msg Message) {
		if s.Disposed() {
			return
		}
		poster.Post(msg)
	}), ctrlOpts)

	s.logger.Debug("Panel opened", zap.String("title", title))
	return s
}

// Receive handles a message sent by the panel surface.
func (s *Session) Receive(ctx context.Context, msg Message) error {
	if s.Disposed() {
		return ErrDisposed
	}
	s.controller.Handle(ctx, msg)
	return nil
}

// OnDidDispose registers fn to run once when the panel is disposed.
// If the panel is already disposed fn runs immediately.
func (s *Session) OnDidDispose(fn func()) {
	s.mu.Lock()
	if !s.disposed {
		s.onDispose = append(s.onDispose, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// Dispose closes the panel: the running exchange is cancelled and waited
// for, then the dispose callbacks run. Safe to call more than once.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	callbacks := s.onDispose
	s.onDispose = nil
	s.mu.Unlock()

	s.controller.Close()
	for _, fn := range callbacks {
		fn()
	}
	s.logger.Debug("Panel disposed", zap.Duration("open_for", time.Since(s.Created)))
}

// Disposed reports whether Dispose has been called.
func (s *Session) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Wait blocks until the panel has no exchange left to finish.
func (s *Session) Wait() {
	s.controller.Wait()
}

// Busy reports whether an exchange is in flight.
func (s *Session) Busy() bool {
	return s.controller.InFlight()
}

// Cancel aborts the running exchange, if any.
func (s *Session) Cancel() bool {
	return s.controller.Cancel()
}
