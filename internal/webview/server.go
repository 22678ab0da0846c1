// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package webview serves the chat panel to a browser. GET / renders the
// panel page, which talks to its controller over a websocket at /ws using
// the panel message protocol.
package webview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rp2-ai/rp2-ai-helper/internal/extension"
	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
)

// WSPath is where the panel page opens its websocket.
const WSPath = "/ws"

// Options configures the webview server.
type Options struct {
	Addr              string
	Title             string
	MessagesPerSecond float64
	Burst             int
	Logger            *zap.Logger
}

// Server hosts panel pages. Each websocket connection is one panel.
type Server struct {
	ext      *extension.Extension
	opts     Options
	logger   *zap.Logger
	router   chi.Router
	upgrader websocket.Upgrader
	server   *http.Server

	ctx  context.Context
	stop context.CancelFunc

	mu    sync.Mutex
	conns map[*conn]struct{}
	wg    sync.WaitGroup
}

// New creates a server that opens panels through ext.
func New(ext *extension.Extension, opts Options) *Server {
	if opts.Title == "" {
		opts.Title = panel.DefaultTitle
	}
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = 5
	}
	if opts.Burst < 1 {
		opts.Burst = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		ext:    ext,
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		ctx:   ctx,
		stop:  stop,
		conns: make(map[*conn]struct{}),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoveryMiddleware(s.logger))
	r.Use(securityHeadersMiddleware())

	r.Get("/", s.handlePanel)
	r.Get(WSPath, s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	s.router = r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	page, err := renderPanel(s.opts.Title, WSPath)
	if err != nil {
		s.logger.Error("Failed to render panel", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Panels int    `json:"panels"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Panels: s.ext.Sessions()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	limiter := rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.Burst)
	c := newConn(ws, limiter, s.logger)
	if !s.track(c) {
		c.close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer s.untrack(c)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	session, err := s.ext.OpenPanel(ctx, c)
	if err != nil {
		s.logger.Error("Failed to open panel", zap.Error(err))
		c.close(websocket.CloseInternalServerErr, "panel unavailable")
		return
	}
	s.logger.Info("WebSocket connected", zap.String("panel", session.ID), zap.String("remote", r.RemoteAddr))

	c.readLoop(ctx, session)

	cancel()
	session.Dispose()
	c.close(websocket.CloseNormalClosure, "")
	s.logger.Info("WebSocket disconnected", zap.String("panel", session.ID))
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves on opts.Addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Webview listening", zap.String("addr", s.opts.Addr))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.Shutdown(shutdownCtx)
		<-errCh
		return err
	}
}

// Shutdown stops accepting requests, closes every websocket, and waits
// for their panels to be disposed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Webview shutting down")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	s.mu.Lock()
	s.stop()
	live := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		live = append(live, c)
	}
	s.mu.Unlock()

	for _, c := range live {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
