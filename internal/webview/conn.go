// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package webview

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
)

const (
	maxMessageSize = 1 << 20
	writeWait      = 10 * time.Second
)

// TextSlowDown answers messages over the per-connection rate limit.
const TextSlowDown = "Too many messages. Please wait a moment."

// conn is one websocket client and the Poster of its panel.
type conn struct {
	ws      *websocket.Conn
	limiter *rate.Limiter
	logger  *zap.Logger

	writeMu sync.Mutex
	closed  bool
}

func newConn(ws *websocket.Conn, limiter *rate.Limiter, logger *zap.Logger) *conn {
	ws.SetReadLimit(maxMessageSize)
	return &conn{ws: ws, limiter: limiter, logger: logger}
}

// Post writes msg as a JSON text frame. Writes are serialised; failures
// are logged since the read loop notices a dead socket on its own.
func (c *conn) Post(msg panel.Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Debug("Websocket write failed", zap.Error(err))
	}
}

// readLoop feeds inbound frames to the session until the socket closes.
func (c *conn) readLoop(ctx context.Context, session *panel.Session) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Websocket closed", zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.Post(panel.Response(TextSlowDown, false))
			continue
		}

		var msg panel.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Command == "" {
			c.logger.Warn("Invalid panel message", zap.Int("bytes", len(data)), zap.Error(err))
			c.Post(panel.Response(panel.TextInvalidMessage, false))
			continue
		}

		if err := session.Receive(ctx, msg); errors.Is(err, panel.ErrDisposed) {
			return
		}
	}
}

// close sends a close frame and closes the socket. Safe to call twice.
func (c *conn) close(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	deadline := time.Now().Add(time.Second)
	c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.ws.Close()
}
