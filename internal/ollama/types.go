// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// GenerateRequest is the request body for /api/generate endpoint.
// The server streams by default, so no stream flag is sent.
type GenerateRequest struct {
	Model     string `json:"model"`                // Model name (e.g., "llama3")
	Prompt    string `json:"prompt"`               // Raw user text
	MaxTokens int    `json:"max_tokens,omitempty"` // Generation cap
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GenerateChunk is one decoded line of the /api/generate stream.
type GenerateChunk struct {
	Model     string
	CreatedAt time.Time

	// Response is the partial text. HasResponse distinguishes a missing
	// field from an empty string.
	Response    string
	HasResponse bool

	Done       bool
	DoneReason string

	// Error is set when the server reports a failure inside the stream.
	Error string

	// Only populated on the final chunk
	EvalCount    int
	EvalDuration time.Duration
}

// TokensPerSecond calculates the generation speed from a final chunk.
func (c *GenerateChunk) TokensPerSecond() float64 {
	if c.EvalDuration <= 0 {
		return 0
	}
	return float64(c.EvalCount) / c.EvalDuration.Seconds()
}

// OllamaError represents an error body from the Ollama API.
type OllamaError struct {
	Error string `json:"error"`
}
