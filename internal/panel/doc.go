// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package panel implements the chat panel: its message protocol, the
// controller that turns a "chat" message into a streamed model exchange,
// and the Session that binds a controller to one open panel.
//
// A surface (terminal, webview, stdio) delivers inbound messages with
// Session.Receive and receives outbound messages through its Poster. The
// controller answers every submission with one or more "chatResponse"
// messages carrying the full accumulated text; the last one has Done set.
//
// At most one exchange runs per panel. What happens to a second submission
// is decided by the OverlapPolicy.
package panel
