// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubGenerator struct {
	text string
}

func (g stubGenerator) Generate(ctx context.Context, prompt string, onText func(string)) error {
	if g.text == "" {
		<-ctx.Done()
		return ctx.Err()
	}
	onText(g.text)
	return nil
}

func newExtension(text string) *Extension {
	return New(Options{
		Generator: func() panel.Generator { return stubGenerator{text: text} },
		Session: func() panel.SessionOptions {
			return panel.SessionOptions{Title: "Test Panel"}
		},
	})
}

func TestExtension_ActivateRegistersOpenPanel(t *testing.T) {
	ext := newExtension("hi")
	assert.Empty(t, ext.Commands())

	ext.Activate()
	ext.Activate()
	assert.Equal(t, []string{"rp2-ai-helper.openPanel"}, ext.Commands())
}

func TestExtension_ExecuteBeforeActivate(t *testing.T) {
	ext := newExtension("hi")
	_, err := ext.OpenPanel(context.Background(), panel.PosterFunc(func(panel.Message) {}))
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestExtension_UnknownCommand(t *testing.T) {
	ext := newExtension("hi")
	ext.Activate()
	defer ext.Deactivate()

	_, err := ext.ExecuteCommand(context.Background(), "rp2-ai-helper.nope", panel.PosterFunc(func(panel.Message) {}))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestExtension_OpenPanelChat(t *testing.T) {
	ext := newExtension("pong")
	ext.Activate()
	defer ext.Deactivate()

	msgs := make(chan panel.Message, 8)
	s, err := ext.ExecuteCommand(context.Background(), CommandOpenPanel, panel.PosterFunc(func(m panel.Message) {
		msgs <- m
	}))
	require.NoError(t, err)
	assert.Equal(t, "Test Panel", s.Title)
	assert.Equal(t, 1, ext.Sessions())

	require.NoError(t, s.Receive(context.Background(), panel.Chat("ping")))
	for {
		select {
		case m := <-msgs:
			if m.Done {
				assert.Equal(t, "pong", m.Text)
				s.Dispose()
				assert.Equal(t, 0, ext.Sessions())
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no response")
		}
	}
}

func TestExtension_DeactivateDisposesPanels(t *testing.T) {
	ext := newExtension("")
	ext.Activate()

	var sessions []*panel.Session
	for i := 0; i < 3; i++ {
		s, err := ext.OpenPanel(context.Background(), panel.PosterFunc(func(panel.Message) {}))
		require.NoError(t, err)
		require.NoError(t, s.Receive(context.Background(), panel.Chat("block")))
		sessions = append(sessions, s)
	}
	assert.Equal(t, 3, ext.Sessions())

	ext.Deactivate()

	assert.Equal(t, 0, ext.Sessions())
	assert.Empty(t, ext.Commands())
	for _, s := range sessions {
		assert.True(t, s.Disposed())
	}
}
