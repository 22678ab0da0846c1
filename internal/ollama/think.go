// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"regexp"
	"strings"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// thinkRegion matches a thinking block, shortest first, across newlines.
var thinkRegion = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes every complete <think>...</think> region from s.
// An unmatched opening tag is left in place.
func StripThinking(s string) string {
	if !strings.Contains(s, thinkOpen) {
		return s
	}
	return thinkRegion.ReplaceAllString(s, "")
}

// =============================================================================
// CROSS-CHUNK FILTER
// =============================================================================

// ThinkFilter hides thinking regions whose tags arrive in separate chunks.
// Models usually stream "<think>" as its own token, which StripThinking
// cannot see. Not safe for concurrent use.
type ThinkFilter struct {
	inside  bool
	pending string
}

// Apply consumes the next chunk and returns the visible part of it.
// Text that could be the start of a tag is held back until the next call.
func (f *ThinkFilter) Apply(chunk string) string {
	buf := f.pending + chunk
	f.pending = ""

	var out strings.Builder
	for buf != "" {
		if !f.inside {
			idx := strings.Index(buf, thinkOpen)
			if idx < 0 {
				keep := partialSuffix(buf, thinkOpen)
				out.WriteString(buf[:len(buf)-keep])
				f.pending = buf[len(buf)-keep:]
				break
			}
			out.WriteString(buf[:idx])
			buf = buf[idx+len(thinkOpen):]
			f.inside = true
			continue
		}

		idx := strings.Index(buf, thinkClose)
		if idx < 0 {
			keep := partialSuffix(buf, thinkClose)
			f.pending = buf[len(buf)-keep:]
			break
		}
		buf = buf[idx+len(thinkClose):]
		f.inside = false
	}
	return out.String()
}

// Flush returns held-back text at end of stream. Anything inside an
// unterminated thinking region is dropped.
func (f *ThinkFilter) Flush() string {
	pending := f.pending
	f.pending = ""
	if f.inside {
		return ""
	}
	return pending
}

// Inside reports whether the filter is currently within a thinking region.
func (f *ThinkFilter) Inside() bool {
	return f.inside
}

// partialSuffix returns the length of the longest proper prefix of tag
// that s ends with.
func partialSuffix(s, tag string) int {
	for n := min(len(tag)-1, len(s)); n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
