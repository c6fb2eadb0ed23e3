// Package chatui is the terminal chat front end: a text input, a scrolling
// transcript with markdown rendering, a spinner while a reply is pending and
// a typed-out reveal of each reply.
package chatui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/mhpenta/converse"
)

// Conversation is the session driven by the UI. *converse.Session implements it.
type Conversation interface {
	ID() string
	Send(ctx context.Context, text string) (*converse.InferenceResponse, error)
	AttachImage(img converse.ImageBlock) error
	DetachImage()
	Clear()
}

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle    = lipgloss.NewStyle().Faint(true).Italic(true)
	helpStyle      = lipgloss.NewStyle().Faint(true)
)

const helpText = "enter send • /image <path> attach • /detach • /clear • ctrl+c quit"

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryError
	entryNotice
)

type entry struct {
	kind entryKind
	text string
}

type replyMsg struct {
	text string
	err  error
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	conv        Conversation
	loadImage   func(path string) (converse.ImageBlock, error)
	logger      *slog.Logger
	styleName   string
	renderer    *glamour.TermRenderer
	input       textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	entries     []entry
	reveal      *Reveal
	waiting     bool
	ready       bool
	attachedImg string
}

// Option configures a Model.
type Option func(*Model)

// WithMarkdownStyle selects a glamour style ("dark", "light", "notty").
func WithMarkdownStyle(style string) Option {
	return func(m *Model) {
		m.styleName = style
	}
}

// WithImageLoader replaces how /image reads files.
func WithImageLoader(load func(path string) (converse.ImageBlock, error)) Option {
	return func(m *Model) {
		m.loadImage = load
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// New creates the chat model for conv.
func New(conv Conversation, opts ...Option) Model {
	input := textinput.New()
	input.Placeholder = "What is up?"
	input.Prompt = "> "
	input.CharLimit = 8000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		conv:      conv,
		loadImage: converse.ImageFromFile,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		styleName: "dark",
		input:     input,
		viewport:  viewport.New(80, 20),
		spinner:   sp,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.renderer = newRenderer(m.styleName, 80)
	return m
}

// AttachedImage records an image attached before the program started, so the
// transcript shows it.
func (m *Model) AttachedImage(path string) {
	m.attachedImg = path
	m.entries = append(m.entries, entry{kind: entryNotice, text: "Attached " + path})
}

func newRenderer(style string, width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		// Fallback to plain text
		return nil
	}
	return r
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input, replies and animation ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		const chrome = 4
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chrome, 1)
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 10)
		m.renderer = newRenderer(m.styleName, max(msg.Width-4, 20))
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.logger.Error("send failed", "session_id", m.conv.ID(), "error", msg.err)
			m.entries = append(m.entries, entry{kind: entryError, text: msg.err.Error()})
			m.refresh()
			return m, nil
		}
		m.entries = append(m.entries, entry{kind: entryAssistant, text: msg.text})
		reveal := NewReveal(msg.text)
		if !reveal.Step() {
			m.refresh()
			return m, nil
		}
		m.reveal = reveal
		m.refresh()
		return m, revealTick()

	case revealTickMsg:
		if m.reveal == nil {
			return m, nil
		}
		more := m.reveal.Step()
		if !more {
			m.reveal = nil
		}
		m.refresh()
		if more {
			return m, revealTick()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
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

// submit handles the enter key. Input is ignored while a reply is pending
// or still being revealed.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.waiting || m.reveal != nil {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}

	m.entries = append(m.entries, entry{kind: entryUser, text: text})
	m.waiting = true
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, send(m.conv, text))
}

func (m Model) command(text string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/clear":
		m.conv.Clear()
		m.entries = []entry{{kind: entryNotice, text: "Context cleared"}}
	case "/image":
		if arg == "" {
			m.entries = append(m.entries, entry{kind: entryError, text: "usage: /image <path>"})
			break
		}
		img, err := m.loadImage(arg)
		if err == nil {
			err = m.conv.AttachImage(img)
		}
		if err != nil {
			m.entries = append(m.entries, entry{kind: entryError, text: err.Error()})
			break
		}
		// Attaching starts a fresh conversation about the image.
		m.attachedImg = arg
		m.entries = []entry{{kind: entryNotice, text: "Attached " + arg + ", context cleared"}}
	case "/detach":
		m.conv.DetachImage()
		m.attachedImg = ""
		m.entries = append(m.entries, entry{kind: entryNotice, text: "Image detached"})
	default:
		m.entries = append(m.entries, entry{kind: entryError, text: fmt.Sprintf("unknown command %s", name)})
	}
	m.refresh()
	return m, nil
}

func send(conv Conversation, text string) tea.Cmd {
	return func() tea.Msg {
		resp, err := conv.Send(context.Background(), text)
		if err != nil {
			return replyMsg{err: err}
		}
		return replyMsg{text: resp.Text}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	var b strings.Builder
	for i, e := range m.entries {
		switch e.kind {
		case entryUser:
			b.WriteString(userStyle.Render("You") + "\n" + e.text + "\n\n")
		case entryAssistant:
			b.WriteString(assistantStyle.Render("Assistant") + "\n")
			if m.reveal != nil && i == len(m.entries)-1 {
				b.WriteString(m.reveal.Frame() + "\n\n")
			} else {
				b.WriteString(m.markdown(e.text) + "\n")
			}
		case entryError:
			b.WriteString(errorStyle.Render("Error: "+e.text) + "\n\n")
		case entryNotice:
			b.WriteString(statusStyle.Render(e.text) + "\n\n")
		}
	}
	return b.String()
}

func (m Model) markdown(text string) string {
	if m.renderer == nil {
		return text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

// View renders the screen.
func (m Model) View() string {
	var status string
	switch {
	case m.waiting:
		status = m.spinner.View() + " Thinking..."
	case m.attachedImg != "":
		line := "image: " + m.attachedImg
		if m.viewport.Width > 0 {
			line = runewidth.Truncate(line, m.viewport.Width, "…")
		}
		status = statusStyle.Render(line)
	}
	return m.viewport.View() + "\n" +
		status + "\n" +
		m.input.View() + "\n" +
		helpStyle.Render(helpText)
}
