// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// This package implements a streaming client for the /api/generate
// endpoint of a local Ollama server. The response body is newline-delimited
// JSON; each line may carry a partial "response" text.
//
// # Key Types
//
//   - Client: HTTP client for the generate endpoint
//   - LineSplitter: reassembles lines split across network reads
//   - StreamReader: turns a response body into visible text pieces
//   - ThinkFilter: hides <think> regions whose tags span chunks
//   - ClientError: typed error with a request or stream Phase
//
// # Usage
//
//	client := ollama.NewClient()
//	err := client.Generate(ctx, "Why is the sky blue?", func(text string) {
//	    fmt.Print(text)
//	})
//	if ollama.IsStreamError(err) {
//	    // the body broke off after the headers arrived
//	}
//
// Thinking markup (<think>...</think>) is removed from each chunk before
// it reaches the callback.
package ollama
