// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rp2-ai/rp2-ai-helper/internal/ollama"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

type generateFunc func(ctx context.Context, prompt string, onText func(string)) error

type fakeGenerator struct {
	fn    generateFunc
	calls atomic.Int32
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, onText func(string)) error {
	g.calls.Add(1)
	return g.fn(ctx, prompt, onText)
}

func emitting(pieces ...string) *fakeGenerator {
	return &fakeGenerator{fn: func(ctx context.Context, prompt string, onText func(string)) error {
		for _, p := range pieces {
			onText(p)
		}
		return nil
	}}
}

type recorder struct {
	mu   sync.Mutex
	msgs []Message
	ch   chan Message
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Message, 64)}
}

func (r *recorder) Post(msg Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	r.ch <- msg
}

func (r *recorder) next(t *testing.T) Message {
	t.Helper()
	select {
	case msg := <-r.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for panel message")
		return Message{}
	}
}

// untilDone collects messages up to and including the first Done one.
func (r *recorder) untilDone(t *testing.T) []Message {
	t.Helper()
	var got []Message
	for {
		msg := r.next(t)
		got = append(got, msg)
		if msg.Done {
			return got
		}
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestController_StreamsAccumulatedText(t *testing.T) {
	rec := newRecorder()
	c := NewController(emitting("Hel", "lo", ", world"), rec, ControllerOptions{})
	defer c.Close()

	c.Handle(context.Background(), Chat("hi"))

	got := rec.untilDone(t)
	want := []Message{
		Response("Hel", false),
		Response("Hello", false),
		Response("Hello, world", false),
		Response("Hello, world", true),
	}
	assert.Equal(t, want, got)
	for _, msg := range got {
		assert.Equal(t, CommandChatResponse, msg.Command)
	}
}

func TestController_EmptyPrompt(t *testing.T) {
	rec := newRecorder()
	gen := emitting("unused")
	c := NewController(gen, rec, ControllerOptions{})
	defer c.Close()

	c.Handle(context.Background(), Chat("   \n\t"))

	assert.Equal(t, Response(TextEmptyPrompt, true), rec.next(t))
	assert.Zero(t, gen.calls.Load())
	assert.False(t, c.InFlight())
}

func TestController_NoResponse(t *testing.T) {
	rec := newRecorder()
	c := NewController(emitting(), rec, ControllerOptions{})
	defer c.Close()

	c.Handle(context.Background(), Chat("hi"))

	assert.Equal(t, []Message{Response(TextNoResponse, true)}, rec.untilDone(t))
}

func TestController_RequestError(t *testing.T) {
	rec := newRecorder()
	gen := &fakeGenerator{fn: func(ctx context.Context, prompt string, onText func(string)) error {
		return &ollama.ClientError{
			Type:    ollama.ErrTypeNotRunning,
			Message: "Ollama is not reachable",
			Cause:   errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"),
		}
	}}
	c := NewController(gen, rec, ControllerOptions{})
	defer c.Close()

	c.Handle(context.Background(), Chat("hi"))

	got := rec.untilDone(t)
	require.Len(t, got, 1)
	assert.Equal(t, "Error calling model: Ollama is not reachable: dial tcp 127.0.0.1:11434: connect: connection refused", got[0].Text)
}

func TestController_StreamErrorThenRecovers(t *testing.T) {
	rec := newRecorder()
	var calls atomic.Int32
	gen := &fakeGenerator{fn: func(ctx context.Context, prompt string, onText func(string)) error {
		if calls.Add(1) == 1 {
			onText("part")
			return &ollama.ClientError{
				Type:    ollama.ErrTypeStream,
				Phase:   ollama.PhaseStream,
				Message: "stream interrupted",
				Cause:   io.ErrUnexpectedEOF,
			}
		}
		onText("fine")
		return nil
	}}
	c := NewController(gen, rec, ControllerOptions{})
	defer c.Close()

	c.Handle(context.Background(), Chat("first"))
	got := rec.untilDone(t)
	assert.Equal(t, []Message{
		Response("part", false),
		Response("Error reading stream: unexpected EOF", true),
	}, got)

	c.Handle(context.Background(), Chat("second"))
	assert.Equal(t, Response("fine", true), rec.untilDone(t)[1])
}

func TestController_UnknownCommandIgnored(t *testing.T) {
	rec := newRecorder()
	c := NewController(emitting("x"), rec, ControllerOptions{})
	defer c.Close()

	c.Handle(context.Background(), Message{Command: "openFile", Text: "x"})
	c.Handle(context.Background(), Message{Command: CommandCancel})

	assert.Zero(t, rec.count())
}

// =============================================================================
// OVERLAP TESTS
// =============================================================================

func TestController_RejectOverlap(t *testing.T) {
	rec := newRecorder()
	started := make(chan struct{})
	release := make(chan struct{})
	gen := &fakeGenerator{fn: func(ctx context.Context, prompt string, onText func(string)) error {
		close(started)
		<-release
		onText("first answer")
		return nil
	}}
	c := NewController(gen, rec, ControllerOptions{Overlap: OverlapReject})
	defer c.Close()

	c.Handle(context.Background(), Chat("one"))
	<-started
	require.True(t, c.InFlight())

	c.Handle(context.Background(), Chat("two"))
	assert.Equal(t, Response(TextBusy, false), rec.next(t))

	close(release)
	assert.Equal(t, []Message{
		Response("first answer", false),
		Response("first answer", true),
	}, rec.untilDone(t))
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestController_ReplaceOverlap(t *testing.T) {
	rec := newRecorder()
	started := make(chan struct{})
	gen := &fakeGenerator{fn: func(ctx context.Context, prompt string, onText func(string)) error {
		if prompt == "one" {
			onText("stale")
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}
		onText("fresh")
		return nil
	}}
	c := NewController(gen, rec, ControllerOptions{Overlap: OverlapReplace})
	defer c.Close()

	c.Handle(context.Background(), Chat("one"))
	<-started
	assert.Equal(t, Response("stale", false), rec.next(t))

	c.Handle(context.Background(), Chat("two"))

	got := rec.untilDone(t)
	assert.Equal(t, []Message{
		Response("fresh", false),
		Response("fresh", true),
	}, got)
	assert.Equal(t, int32(2), gen.calls.Load())
}

// =============================================================================
// CANCELLATION TESTS
// =============================================================================

func TestController_ChatRightAfterCancelWaits(t *testing.T) {
	rec := newRecorder()
	started := make(chan struct{})
	windDown := make(chan struct{})
	gen := &fakeGenerator{fn: func(ctx context.Context, prompt string, onText func(string)) error {
		if prompt == "one" {
			close(started)
			<-ctx.Done()
			<-windDown
			return ctx.Err()
		}
		onText("second answer")
		return nil
	}}
	c := NewController(gen, rec, ControllerOptions{Overlap: OverlapReject})
	defer c.Close()

	c.Handle(context.Background(), Chat("one"))
	<-started
	c.Handle(context.Background(), Message{Command: CommandCancel})
	c.Handle(context.Background(), Chat("two"))
	close(windDown)

	assert.Equal(t, []Message{Response(TextCancelled, true)}, rec.untilDone(t))
	assert.Equal(t, []Message{
		Response("second answer", false),
		Response("second answer", true),
	}, rec.untilDone(t))
	assert.Equal(t, int32(2), gen.calls.Load())
}

func blockingAfter(pieces ...string) (*fakeGenerator, chan struct{}) {
	started := make(chan struct{})
	return &fakeGenerator{fn: func(ctx context.Context, prompt string, onText func(string)) error {
		for _, p := range pieces {
			onText(p)
		}
		close(started)
		<-ctx.Done()
		return &ollama.ClientError{Type: ollama.ErrTypeStream, Phase: ollama.PhaseStream, Message: "stream interrupted", Cause: ctx.Err()}
	}}, started
}

func TestController_CancelKeepsPartialText(t *testing.T) {
	rec := newRecorder()
	gen, started := blockingAfter("partial")
	c := NewController(gen, rec, ControllerOptions{})
	defer c.Close()

	c.Handle(context.Background(), Chat("hi"))
	<-started
	c.Handle(context.Background(), Message{Command: CommandCancel})

	assert.Equal(t, []Message{
		Response("partial", false),
		Response("partial", true),
	}, rec.untilDone(t))
}

func TestController_CancelBeforeText(t *testing.T) {
	rec := newRecorder()
	gen, started := blockingAfter()
	c := NewController(gen, rec, ControllerOptions{})
	defer c.Close()

	c.Handle(context.Background(), Chat("hi"))
	<-started
	require.True(t, c.Cancel())

	assert.Equal(t, []Message{Response(TextCancelled, true)}, rec.untilDone(t))
	c.Wait()
	assert.False(t, c.Cancel())
}

func TestController_HandleContextCancels(t *testing.T) {
	rec := newRecorder()
	gen, started := blockingAfter()
	c := NewController(gen, rec, ControllerOptions{})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c.Handle(ctx, Chat("hi"))
	<-started
	cancel()

	assert.Equal(t, []Message{Response(TextCancelled, true)}, rec.untilDone(t))
}

func TestController_CloseIsSilent(t *testing.T) {
	rec := newRecorder()
	gen, started := blockingAfter()
	c := NewController(gen, rec, ControllerOptions{})

	c.Handle(context.Background(), Chat("hi"))
	<-started
	c.Close()
	c.Close()

	assert.Zero(t, rec.count())
	c.Handle(context.Background(), Chat("after close"))
	c.Wait()
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestParseOverlapPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OverlapPolicy
		wantErr bool
	}{
		{"", OverlapReject, false},
		{"reject", OverlapReject, false},
		{" Replace ", OverlapReplace, false},
		{"queue", "", true},
	}

	for _, tt := range tests {
		got, err := ParseOverlapPolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
