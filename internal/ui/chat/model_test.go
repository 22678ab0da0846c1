// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
	"github.com/rp2-ai/rp2-ai-helper/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type recordingReceiver struct {
	mu   sync.Mutex
	msgs []panel.Message
	err  error
}

func (r *recordingReceiver) Receive(ctx context.Context, msg panel.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingReceiver) received() []panel.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]panel.Message(nil), r.msgs...)
}

func newTestModel(rec Receiver) Model {
	return New(rec, Options{
		Title: "Test Panel",
		Model: "llama3",
		Theme: styles.NewThemeWithProfile(termenv.Ascii, true),
	})
}

// execCmd runs cmd and any batched commands, returning the messages
// they produce.
func execCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, execCmd(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok, "Update returned %T", next)
	return out, cmd
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestModel_SubmitSendsChat(t *testing.T) {
	rec := &recordingReceiver{}
	m := newTestModel(rec)
	m.input.SetValue("What is a PIO?")

	m, cmd := update(t, m, enter)
	execCmd(cmd)

	assert.Equal(t, []panel.Message{panel.Chat("What is a PIO?")}, rec.received())
	assert.True(t, m.Busy())
	assert.Equal(t, panel.TextThinking, m.Response())
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "What is a PIO?")
}

func TestModel_EmptyPromptGoesToController(t *testing.T) {
	rec := &recordingReceiver{}
	m := newTestModel(rec)
	m.input.SetValue("   ")

	m, cmd := update(t, m, enter)
	execCmd(cmd)

	assert.Equal(t, []panel.Message{panel.Chat("   ")}, rec.received())
	assert.False(t, m.Busy())

	m, _ = update(t, m, ResponseMsg{Message: panel.Response(panel.TextEmptyPrompt, true)})
	assert.Equal(t, panel.TextEmptyPrompt, m.Response())
	assert.Contains(t, m.View(), panel.TextEmptyPrompt)
}

// =============================================================================
// RESPONSE TESTS
// =============================================================================

func TestModel_StreamingResponses(t *testing.T) {
	m := newTestModel(&recordingReceiver{})
	m.input.SetValue("blink")
	m, _ = update(t, m, enter)

	m, _ = update(t, m, ResponseMsg{Message: panel.Response("Use gpio_put", false)})
	assert.Equal(t, "Use gpio_put", m.Response())
	assert.True(t, m.Busy())

	m, _ = update(t, m, ResponseMsg{Message: panel.Response("Use gpio_put to toggle the LED.", true)})
	assert.False(t, m.Busy())
	assert.Contains(t, m.View(), "toggle the LED")
}

func TestModel_BusyNoticeKeepsResponse(t *testing.T) {
	m := newTestModel(&recordingReceiver{})
	m.input.SetValue("first")
	m, _ = update(t, m, enter)
	m, _ = update(t, m, ResponseMsg{Message: panel.Response("partial", false)})

	m, _ = update(t, m, ResponseMsg{Message: panel.Response(panel.TextBusy, false)})
	assert.Equal(t, "partial", m.Response())
	assert.Equal(t, panel.TextBusy, m.Notice())
	assert.True(t, m.Busy())
}

func TestModel_IgnoresInboundCommands(t *testing.T) {
	m := newTestModel(&recordingReceiver{})
	m, _ = update(t, m, ResponseMsg{Message: panel.Chat("echo")})
	assert.Empty(t, m.Response())
}

// =============================================================================
// KEY TESTS
// =============================================================================

func TestModel_CancelOnlyWhenBusy(t *testing.T) {
	rec := &recordingReceiver{}
	m := newTestModel(rec)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)

	m.input.SetValue("long question")
	m, cmd = update(t, m, enter)
	execCmd(cmd)

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	execCmd(cmd)

	got := rec.received()
	require.Len(t, got, 2)
	assert.Equal(t, panel.CommandCancel, got[1].Command)
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(&recordingReceiver{})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_AltEnterInsertsNewline(t *testing.T) {
	rec := &recordingReceiver{}
	m := newTestModel(rec)
	m.input.SetValue("line one")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	assert.Equal(t, "line one\n", m.input.Value())
	assert.Empty(t, rec.received())
}

func TestModel_DeliveryError(t *testing.T) {
	rec := &recordingReceiver{err: panel.ErrDisposed}
	m := newTestModel(rec)
	m.input.SetValue("hello")

	m, cmd := update(t, m, enter)
	var delivered tea.Msg
	for _, msg := range execCmd(cmd) {
		if _, ok := msg.(deliveryErrMsg); ok {
			delivered = msg
		}
	}
	require.NotNil(t, delivered)

	m, _ = update(t, m, delivered)
	assert.False(t, m.Busy())
	assert.Equal(t, panel.ErrDisposed.Error(), m.Notice())
}

// =============================================================================
// LAYOUT TESTS
// =============================================================================

func TestModel_ResizeAndView(t *testing.T) {
	m := newTestModel(&recordingReceiver{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	assert.Contains(t, view, "Test Panel")
	assert.Contains(t, view, "llama3")
	assert.Contains(t, view, "ready")
	assert.Equal(t, 100, m.viewport.Width)
	assert.GreaterOrEqual(t, m.viewport.Height, 3)
}

func TestProgramPoster_DropsBeforeAttach(t *testing.T) {
	var p ProgramPoster
	assert.NotPanics(t, func() { p.Post(panel.Response("lost", true)) })
}
