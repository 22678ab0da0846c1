// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the rp2-ai-helper command tree.
//
// Every command that talks to the model goes through the same extension
// and panel protocol; they differ only in the surface that posts and
// receives panel messages:
//
//   - panel (default): full-screen terminal panel
//   - serve: browser panel over HTTP and websocket
//   - stdio: newline-delimited JSON on stdin and stdout, for editors
//   - ask: one question, answer on stdout
//   - chat: line-oriented REPL with history
//
// status, config and version do not open panels.
package cli
