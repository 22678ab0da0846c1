// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
	"github.com/rp2-ai/rp2-ai-helper/internal/ui/styles"
)

// Receiver accepts inbound panel messages. *panel.Session implements it.
type Receiver interface {
	Receive(ctx context.Context, msg panel.Message) error
}

// Options configures a Model.
type Options struct {
	Title string
	Model string
	Theme *styles.Theme
}

// =============================================================================
// PANEL MODEL
// =============================================================================

// Model is the Bubble Tea model of one terminal panel.
type Model struct {
	receiver Receiver
	theme    *styles.Theme
	keys     KeyMap
	help     help.Model

	title     string
	modelName string

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	markdown *markdownRenderer

	prompt   string
	response string
	notice   string
	busy     bool
	done     bool
	started  time.Time

	width  int
	height int
}

// New creates a panel model that sends its messages to receiver.
func New(receiver Receiver, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	title := opts.Title
	if title == "" {
		title = panel.DefaultTitle
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about your code..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = DefaultKeyMap().Newline
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Thinking

	m := Model{
		receiver:  receiver,
		theme:     theme,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		title:     title,
		modelName: opts.Model,
		input:     ta,
		viewport:  viewport.New(80, 10),
		spinner:   sp,
	}
	m.resize(80, 24)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ResponseMsg:
		m.handleResponse(msg.Message)
		return m, nil

	case deliveryErrMsg:
		m.notice = msg.err.Error()
		m.busy = false
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if !m.busy {
			return m, nil
		}
		return m, m.send(panel.Message{Command: panel.CommandCancel})

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize(m.width, m.height)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the prompt box as a chat message. A busy panel still sends,
// so the controller's overlap policy decides what happens.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	m.notice = ""

	if strings.TrimSpace(text) == "" {
		return m, m.send(panel.Chat(text))
	}

	m.input.Reset()
	wasBusy := m.busy
	m.prompt = text
	m.response = panel.TextThinking
	m.busy = true
	m.done = false
	m.started = time.Now()
	m.refresh()

	if wasBusy {
		return m, m.send(panel.Chat(text))
	}
	return m, tea.Batch(m.spinner.Tick, m.send(panel.Chat(text)))
}

func (m *Model) handleResponse(msg panel.Message) {
	if msg.Command != panel.CommandChatResponse {
		return
	}
	if msg.Text == panel.TextBusy && !msg.Done {
		m.notice = msg.Text
		return
	}
	m.response = msg.Text
	m.done = msg.Done
	if msg.Done {
		m.busy = false
	}
	m.refresh()
}

// send delivers msg from a command so the controller is never entered
// from inside Update.
func (m Model) send(msg panel.Message) tea.Cmd {
	receiver := m.receiver
	return func() tea.Msg {
		if err := receiver.Receive(context.Background(), msg); err != nil {
			return deliveryErrMsg{err: err}
		}
		return nil
	}
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width = width
	m.height = height

	m.input.SetWidth(width - 2)

	helpHeight := 1
	if m.help.ShowAll {
		helpHeight = len(m.keys.FullHelp()) + 1
	}
	// header + prompt echo + input box (borders) + status + help
	chrome := 1 + 1 + m.input.Height() + 2 + 1 + helpHeight
	m.viewport.Width = width
	m.viewport.Height = max(height-chrome, 3)
	m.help.Width = width

	if m.markdown == nil || m.markdown.width != width-2 {
		m.markdown = newMarkdownRenderer(m.theme, width-2)
	}
	m.refresh()
}

func (m *Model) refresh() {
	var content string
	switch {
	case m.response == "":
		content = ""
	case m.done:
		content = m.markdown.render(m.response)
	case m.response == panel.TextThinking:
		content = m.theme.Thinking.Render(m.response)
	default:
		content = m.theme.Response.Render(wrap(m.response, m.width-2))
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Response returns the text currently shown in the response area.
func (m Model) Response() string {
	return m.response
}

// Busy reports whether an exchange is shown as in flight.
func (m Model) Busy() bool {
	return m.busy
}

// Notice returns the transient status line text.
func (m Model) Notice() string {
	return m.notice
}
