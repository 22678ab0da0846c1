// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Phase   Phase
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeStream
)

// Phase tells whether a failure happened before or after the response
// headers arrived.
type Phase int

const (
	PhaseRequest Phase = iota
	PhaseStream
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Defaults for the local generate endpoint.
const (
	DefaultBaseURL   = "http://127.0.0.1:11434"
	DefaultModel     = "llama3"
	DefaultMaxTokens = 512
	DefaultTimeout   = 5 * time.Second
)

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: explicit IPv4 address avoids IPv6 localhost resolution issues
	BaseURL string

	// Model sent with every generate request (default: "llama3")
	Model string

	// MaxTokens sent as max_tokens (default: 512)
	MaxTokens int

	// Timeout for the health check only. Generate streams have no deadline
	// and end through the caller's context.
	Timeout time.Duration

	// KeepThinking passes <think> regions through instead of removing them
	KeepThinking bool

	// ThinkingAcrossChunks also hides regions whose tags span chunks
	ThinkingAcrossChunks bool

	// Logger receives skipped-line and stream diagnostics
	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:   DefaultBaseURL,
		Model:     DefaultModel,
		MaxTokens: DefaultMaxTokens,
		Timeout:   DefaultTimeout,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama generate API.
//
// The Client is safe for concurrent use; its configuration is fixed at
// construction.
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	logger       *zap.Logger
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	// Fill in defaults for any zero values
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config: &cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		// SECURITY: TLS not required - Ollama runs locally over HTTP
		streamClient: &http.Client{},
		logger:       logger,
	}
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}

	return nil
}

// =============================================================================
// STREAMING GENERATE
// =============================================================================

// Generate posts prompt to /api/generate and calls onText with each piece
// of visible text as it arrives. It blocks until the stream ends, fails or
// ctx is cancelled.
//
// Failures before the body is read carry PhaseRequest; body read failures
// carry PhaseStream.
func (c *Client) Generate(ctx context.Context, prompt string, onText func(text string)) error {
	body, err := c.openStream(ctx, prompt)
	if err != nil {
		return err
	}
	defer drainAndClose(body)

	reader := NewStreamReader(body, c.streamOptions()...)
	if err := reader.Process(ctx, onText); err != nil {
		return &ClientError{
			Type:    ErrTypeStream,
			Phase:   PhaseStream,
			Message: "stream interrupted",
			Cause:   err,
		}
	}

	if reader.Skipped() > 0 {
		c.logger.Debug("Skipped malformed stream lines", zap.Int("count", reader.Skipped()))
	}
	return nil
}

// openStream sends the generate request and returns the response body once
// the headers arrive with a success status.
func (c *Client) openStream(ctx context.Context, prompt string) (io.ReadCloser, error) {
	body, err := json.Marshal(GenerateRequest{
		Model:     c.config.Model,
		Prompt:    prompt,
		MaxTokens: c.config.MaxTokens,
	})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	defer drainAndClose(resp.Body)

	var ollamaErr OllamaError
	if err := json.NewDecoder(resp.Body).Decode(&ollamaErr); err == nil && ollamaErr.Error != "" {
		errType := ErrTypeInvalidResponse
		if resp.StatusCode == http.StatusNotFound {
			errType = ErrTypeModelNotFound
		}
		return nil, &ClientError{Type: errType, Message: ollamaErr.Error}
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrModelNotFound
	}
	return nil, &ClientError{
		Type:    ErrTypeInvalidResponse,
		Message: "generate request failed: " + resp.Status,
	}
}

func (c *Client) streamOptions() []StreamOption {
	opts := []StreamOption{WithLogger(c.logger)}
	switch {
	case c.config.KeepThinking:
		opts = append(opts, WithoutThinkingStrip())
	case c.config.ThinkingAcrossChunks:
		opts = append(opts, WithThinkingAcrossChunks())
	}
	return opts
}

// transportError classifies a failed http.Client.Do call.
func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request aborted", Cause: err}
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not reachable", Cause: err}
}

// =============================================================================
// UTILITY METHODS
// =============================================================================

// GetConfig returns a copy of the client configuration.
func (c *Client) GetConfig() ClientConfig {
	return *c.config
}

// Model returns the model sent with each request.
func (c *Client) Model() string {
	return c.config.Model
}

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	return hasType(err, ErrTypeModelNotFound)
}

// IsNotRunning checks if an error indicates Ollama is not running.
func IsNotRunning(err error) bool {
	return hasType(err, ErrTypeNotRunning)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return hasType(err, ErrTypeTimeout)
}

// IsStreamError reports whether err happened while reading the body.
func IsStreamError(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Phase == PhaseStream
	}
	return false
}

func hasType(err error, t ErrorType) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == t
	}
	return false
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
