// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the terminal rendition of the assistant panel.

It is a Bubble Tea program that speaks the same panel messages as the
webview page: the prompt box sends a chat message, Esc sends cancel, and
every chatResponse replaces the response area.

# Layout

  - Header with the panel title and the configured model
  - Response viewport, rendered as Markdown with Glamour once an exchange
    is done and as wrapped plain text while it streams
  - Multi-line prompt box (Enter sends, Alt+Enter inserts a newline)
  - Status bar with a spinner while a request is in flight

# Threading

Outbound panel messages arrive from the controller's goroutine and are
handed to the program with tea.Program.Send through a ProgramPoster.
Inbound messages are delivered from a tea.Cmd, never from Update itself,
because the controller may post synchronously while handling them.
*/
package chat
