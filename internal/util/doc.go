// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the panel surfaces: atomic
// file writes for the config file and width-aware truncation for log
// previews and terminal headers.
package util
