// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// rp2-ai-helper.
//
// Configuration is read from TOML with sensible defaults, a .env file and
// RP2_* environment overrides, then validated as a whole.
//
// Configuration file location (in order of precedence):
//   - the --config flag
//   - ~/.rp2-ai-helper/config.toml
//   - Built-in defaults
//
// Example file:
//
//	[ollama]
//	url = "http://127.0.0.1:11434"
//	model = "llama3"
//	max_tokens = 512
//
//	[panel]
//	overlap = "reject"
//
//	[server]
//	addr = "127.0.0.1:8765"
//
//	[log]
//	level = "info"
package config
