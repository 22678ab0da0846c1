// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Defaults(t *testing.T) {
	s := NewSession(emitting(), newRecorder(), SessionOptions{})
	defer s.Dispose()

	assert.Equal(t, "rp2AiHelper", s.ViewType)
	assert.Equal(t, "RP2 AI Helper Panel", s.Title)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.Disposed())
}

func TestSession_ReceiveRoutesToController(t *testing.T) {
	rec := newRecorder()
	s := NewSession(emitting("answer"), rec, SessionOptions{Title: "Helper"})
	defer s.Dispose()

	require.NoError(t, s.Receive(context.Background(), Chat("question")))
	got := rec.untilDone(t)
	assert.Equal(t, Response("answer", true), got[len(got)-1])
	assert.Equal(t, "Helper", s.Title)
}

func TestSession_DisposeCancelsAndRunsCallbacks(t *testing.T) {
	rec := newRecorder()
	gen, started := blockingAfter("partial")
	s := NewSession(gen, rec, SessionOptions{})

	var calls int
	s.OnDidDispose(func() { calls++ })

	require.NoError(t, s.Receive(context.Background(), Chat("hi")))
	<-started
	require.True(t, s.Busy())
	assert.Equal(t, Response("partial", false), rec.next(t))

	s.Dispose()
	s.Dispose()

	assert.Equal(t, 1, calls)
	assert.True(t, s.Disposed())
	assert.False(t, s.Busy())
	assert.Equal(t, 1, rec.count())
	assert.ErrorIs(t, s.Receive(context.Background(), Chat("again")), ErrDisposed)

	late := false
	s.OnDidDispose(func() { late = true })
	assert.True(t, late)
}

func TestSession_WaitForInFlight(t *testing.T) {
	rec := newRecorder()
	s := NewSession(emitting("a", "b"), rec, SessionOptions{})
	defer s.Dispose()

	require.NoError(t, s.Receive(context.Background(), Chat("hi")))
	s.Wait()

	assert.Equal(t, 3, rec.count())
	assert.False(t, s.Busy())
}

func TestExchange_AppendIsOrdered(t *testing.T) {
	ex := NewExchange("prompt")
	assert.NotEmpty(t, ex.ID)

	var want strings.Builder
	for _, piece := range []string{"one ", "two ", "three"} {
		want.WriteString(piece)
		assert.Equal(t, want.String(), ex.Append(piece))
	}
	assert.Equal(t, "one two three", ex.Response())
	assert.Equal(t, 3, ex.Pieces())
}

func TestExchange_ConcurrentAppend(t *testing.T) {
	ex := NewExchange("prompt")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ex.Append("x")
		}()
	}
	wg.Wait()

	assert.Equal(t, strings.Repeat("x", 50), ex.Response())
}

func TestIsErrorText(t *testing.T) {
	assert.True(t, IsErrorText("Error calling model: connection refused"))
	assert.True(t, IsErrorText("Error reading stream: unexpected EOF"))
	assert.False(t, IsErrorText(TextNoResponse))
	assert.False(t, IsErrorText("The error is in line 3."))
}
