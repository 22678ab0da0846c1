// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Exchange is one submitted prompt and the response accumulated for it.
// The response is always the in-order concatenation of appended pieces.
type Exchange struct {
	ID      string
	Prompt  string
	Started time.Time

	mu       sync.Mutex
	response strings.Builder
	pieces   int
}

// NewExchange starts an exchange for prompt.
func NewExchange(prompt string) *Exchange {
	return &Exchange{
		ID:      uuid.NewString(),
		Prompt:  prompt,
		Started: time.Now(),
	}
}

// Append adds a piece of text and returns the accumulated response.
func (e *Exchange) Append(text string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.response.WriteString(text)
	e.pieces++
	return e.response.String()
}

// Response returns the accumulated response.
func (e *Exchange) Response() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.response.String()
}

// Pieces returns how many pieces were appended.
func (e *Exchange) Pieces() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pieces
}

// Elapsed returns the time since the exchange started.
func (e *Exchange) Elapsed() time.Duration {
	return time.Since(e.Started)
}
