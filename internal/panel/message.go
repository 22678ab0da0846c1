// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import "strings"

// Command names a panel message.
type Command string

const (
	// CommandChat submits a prompt (panel to controller).
	CommandChat Command = "chat"
	// CommandCancel aborts the running exchange (panel to controller).
	CommandCancel Command = "cancel"
	// CommandChatResponse carries response text (controller to panel).
	CommandChatResponse Command = "chatResponse"
)

// Fixed texts shown in the panel.
const (
	TextEmptyPrompt    = "Please type a question first."
	TextThinking       = "Thinking..."
	TextNoResponse     = "No response from model."
	TextBusy           = "Another request is already in progress."
	TextCancelled      = "Request cancelled."
	TextInvalidMessage = "Invalid message."

	prefixCallError   = "Error calling model: "
	prefixStreamError = "Error reading stream: "
)

// Message is the single shape exchanged between a panel and its controller.
type Message struct {
	Command Command `json:"command"`
	Text    string  `json:"text"`

	// Done marks the last message of an exchange. Only set on outbound
	// messages.
	Done bool `json:"done,omitempty"`
}

// Chat builds an inbound chat message.
func Chat(text string) Message {
	return Message{Command: CommandChat, Text: text}
}

// Response builds an outbound chatResponse message.
func Response(text string, done bool) Message {
	return Message{Command: CommandChatResponse, Text: text, Done: done}
}

// Poster delivers outbound messages to a panel surface.
// Post may be called from any goroutine but never concurrently for the
// same controller.
type Poster interface {
	Post(msg Message)
}

// PosterFunc adapts a function to the Poster interface.
type PosterFunc func(msg Message)

// Post calls f(msg).
func (f PosterFunc) Post(msg Message) {
	f(msg)
}

// IsErrorText reports whether text is the final message of a failed
// exchange.
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, prefixCallError) || strings.HasPrefix(text, prefixStreamError)
}
