// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package extension is the host boundary. Activate registers the commands
// the host can run; every surface opens its panel by executing
// CommandOpenPanel, and Deactivate disposes whatever is still open.
package extension

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
)

// CommandOpenPanel opens a chat panel.
const CommandOpenPanel = "rp2-ai-helper.openPanel"

var (
	// ErrUnknownCommand is returned for command IDs that are not registered.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNotActive is returned when a command runs before Activate.
	ErrNotActive = errors.New("extension not active")
)

// CommandFunc runs a registered command. The poster receives the messages
// of any panel the command opens.
type CommandFunc func(ctx context.Context, poster panel.Poster) (*panel.Session, error)

// GeneratorFactory returns the generator for a panel about to open. It is
// called per panel so configuration changes reach new panels.
type GeneratorFactory func() panel.Generator

// Options configures an Extension.
type Options struct {
	Generator GeneratorFactory
	Session   func() panel.SessionOptions
	Logger    *zap.Logger
}

// Extension tracks registered commands and the panels they opened.
type Extension struct {
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	active   bool
	commands map[string]CommandFunc
	sessions map[string]*panel.Session
}

// New creates an inactive extension.
func New(opts Options) *Extension {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extension{
		opts:     opts,
		logger:   logger,
		commands: make(map[string]CommandFunc),
		sessions: make(map[string]*panel.Session),
	}
}

// Activate registers the extension's commands. Calling it twice is a no-op.
func (e *Extension) Activate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return
	}
	e.active = true
	e.commands[CommandOpenPanel] = e.openPanel
	e.logger.Info("Extension activated", zap.String("command", CommandOpenPanel))
}

// Commands returns the registered command IDs, sorted.
func (e *Extension) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.commands))
	for id := range e.commands {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ExecuteCommand runs command id.
func (e *Extension) ExecuteCommand(ctx context.Context, id string, poster panel.Poster) (*panel.Session, error) {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return nil, ErrNotActive
	}
	cmd, ok := e.commands[id]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, id)
	}
	return cmd(ctx, poster)
}

// OpenPanel is shorthand for executing CommandOpenPanel.
func (e *Extension) OpenPanel(ctx context.Context, poster panel.Poster) (*panel.Session, error) {
	return e.ExecuteCommand(ctx, CommandOpenPanel, poster)
}

func (e *Extension) openPanel(ctx context.Context, poster panel.Poster) (*panel.Session, error) {
	if poster == nil {
		return nil, errors.New("open panel: nil poster")
	}
	if e.opts.Generator == nil {
		return nil, errors.New("open panel: no generator configured")
	}

	var sessOpts panel.SessionOptions
	if e.opts.Session != nil {
		sessOpts = e.opts.Session()
	}
	if sessOpts.Controller.Logger == nil {
		sessOpts.Controller.Logger = e.logger
	}

	s := panel.NewSession(e.opts.Generator(), poster, sessOpts)

	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		s.Dispose()
		return nil, ErrNotActive
	}
	e.sessions[s.ID] = s
	e.mu.Unlock()

	s.OnDidDispose(func() {
		e.mu.Lock()
		delete(e.sessions, s.ID)
		e.mu.Unlock()
	})

	e.logger.Info("Panel opened", zap.String("panel", s.ID), zap.String("title", s.Title))
	return s, nil
}

// Sessions returns the number of open panels.
func (e *Extension) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Deactivate disposes every open panel and unregisters all commands.
func (e *Extension) Deactivate() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.commands = make(map[string]CommandFunc)
	open := make([]*panel.Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		open = append(open, s)
	}
	e.mu.Unlock()

	for _, s := range open {
		s.Dispose()
	}
	e.logger.Info("Extension deactivated", zap.Int("panels_closed", len(open)))
}
