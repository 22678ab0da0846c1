// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rp2-ai/rp2-ai-helper/internal/util"
)

// ErrMalformedChunk is returned by DecodeChunk for lines that are not JSON.
var ErrMalformedChunk = errors.New("malformed JSON chunk")

// defaultBlockSize is how many bytes a StreamReader asks for per read.
const defaultBlockSize = 4096

// =============================================================================
// LINE SPLITTER
// =============================================================================

// LineSplitter reassembles newline-delimited lines from arbitrary blocks.
// A line split across network reads is held until its newline arrives.
type LineSplitter struct {
	buf []byte
}

// Write appends a block and returns every line it completed, without the
// trailing newline. The text after the last newline stays buffered.
func (s *LineSplitter) Write(block []byte) []string {
	s.buf = append(s.buf, block...)

	idx := bytes.LastIndexByte(s.buf, '\n')
	if idx < 0 {
		return nil
	}

	lines := strings.Split(string(s.buf[:idx]), "\n")
	rest := len(s.buf) - idx - 1
	copy(s.buf, s.buf[idx+1:])
	s.buf = s.buf[:rest]
	return lines
}

// Flush returns and clears the buffered, unterminated tail.
func (s *LineSplitter) Flush() string {
	tail := string(s.buf)
	s.buf = s.buf[:0]
	return tail
}

// Buffered returns the number of bytes waiting for a newline.
func (s *LineSplitter) Buffered() int {
	return len(s.buf)
}

// =============================================================================
// CHUNK DECODING
// =============================================================================

// DecodeChunk decodes a single trimmed stream line.
// Valid JSON that is not an object yields an empty chunk.
func DecodeChunk(line string) (GenerateChunk, error) {
	if !gjson.Valid(line) {
		return GenerateChunk{}, ErrMalformedChunk
	}

	parsed := gjson.Parse(line)
	if !parsed.IsObject() {
		return GenerateChunk{}, nil
	}

	chunk := GenerateChunk{
		Model:      parsed.Get("model").String(),
		Done:       parsed.Get("done").Bool(),
		DoneReason: parsed.Get("done_reason").String(),
		Error:      parsed.Get("error").String(),
	}

	if created := parsed.Get("created_at"); created.Exists() {
		chunk.CreatedAt = created.Time()
	}

	if resp := lastField(parsed, "response"); resp.Type == gjson.String {
		chunk.Response = strings.ToValidUTF8(resp.String(), "\uFFFD")
		chunk.HasResponse = true
	}

	if chunk.Done {
		chunk.EvalCount = int(parsed.Get("eval_count").Int())
		chunk.EvalDuration = time.Duration(parsed.Get("eval_duration").Int())
	}

	return chunk, nil
}

// lastField returns the last member named key. gjson.Get stops at the
// first one, which disagrees with most JSON decoders on duplicate keys.
func lastField(obj gjson.Result, key string) gjson.Result {
	var found gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
		}
		return true
	})
	return found
}

// =============================================================================
// STREAM READER
// =============================================================================

// StreamOption configures a StreamReader.
type StreamOption func(*StreamReader)

// WithLogger sets the logger used for skipped lines.
func WithLogger(logger *zap.Logger) StreamOption {
	return func(s *StreamReader) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithThinkingAcrossChunks hides thinking regions split over several chunks.
func WithThinkingAcrossChunks() StreamOption {
	return func(s *StreamReader) {
		s.filter = &ThinkFilter{}
	}
}

// WithoutThinkingStrip passes thinking markup through untouched.
func WithoutThinkingStrip() StreamOption {
	return func(s *StreamReader) {
		s.strip = false
		s.filter = nil
	}
}

// WithBlockSize sets the read size per block.
func WithBlockSize(n int) StreamOption {
	return func(s *StreamReader) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// StreamReader turns a generate response body into visible text.
type StreamReader struct {
	reader    io.Reader
	splitter  LineSplitter
	logger    *zap.Logger
	strip     bool
	filter    *ThinkFilter
	blockSize int

	model   string
	final   *GenerateChunk
	skipped int
	emitted int
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader, opts ...StreamOption) *StreamReader {
	s := &StreamReader{
		reader:    r,
		logger:    zap.NewNop(),
		strip:     true,
		blockSize: defaultBlockSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process reads the stream block by block and calls onText for every
// non-empty piece of visible text, in order.
// Returns nil at end of stream and the read error otherwise.
func (s *StreamReader) Process(ctx context.Context, onText func(text string)) error {
	block := make([]byte, s.blockSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.reader.Read(block)
		if n > 0 {
			for _, line := range s.splitter.Write(block[:n]) {
				s.handleLine(line, onText)
			}
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if tail := s.splitter.Flush(); tail != "" {
				s.handleLine(tail, onText)
			}
			if s.filter != nil {
				s.emit(s.filter.Flush(), onText)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
}

// handleLine applies the per-line rule: trim, skip empty, decode, strip.
func (s *StreamReader) handleLine(line string, onText func(text string)) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	chunk, err := DecodeChunk(trimmed)
	if err != nil {
		s.skipped++
		s.logger.Warn("Error parsing JSON chunk",
			zap.Error(err),
			zap.String("line", util.Preview(trimmed, 120)))
		return
	}

	if chunk.Model != "" {
		s.model = chunk.Model
	}
	if chunk.Error != "" {
		s.logger.Warn("Model reported an error in stream", zap.String("error", chunk.Error))
	}
	if chunk.Done {
		final := chunk
		s.final = &final
		s.logger.Debug("Stream finished",
			zap.String("model", s.model),
			zap.String("done_reason", chunk.DoneReason),
			zap.Int("eval_count", chunk.EvalCount),
			zap.Float64("tokens_per_second", chunk.TokensPerSecond()))
	}

	if !chunk.HasResponse || chunk.Response == "" {
		return
	}

	text := chunk.Response
	switch {
	case s.filter != nil:
		text = s.filter.Apply(text)
	case s.strip:
		text = StripThinking(text)
	}
	s.emit(text, onText)
}

func (s *StreamReader) emit(text string, onText func(text string)) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.emitted++
	onText(text)
}

// Model returns the model name reported by the stream.
func (s *StreamReader) Model() string {
	return s.model
}

// Final returns the done chunk, or nil if the stream never finished.
func (s *StreamReader) Final() *GenerateChunk {
	return s.final
}

// Skipped returns the number of malformed lines that were dropped.
func (s *StreamReader) Skipped() int {
	return s.skipped
}

// Emitted returns the number of text pieces delivered to the callback.
func (s *StreamReader) Emitted() int {
	return s.emitted
}
