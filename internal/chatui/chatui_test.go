package chatui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mhpenta/converse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConversation struct {
	reply    string
	err      error
	sent     []string
	cleared  int
	attached []converse.ImageBlock
	detached int
}

func (f *fakeConversation) ID() string { return "test-session" }

func (f *fakeConversation) Send(ctx context.Context, text string) (*converse.InferenceResponse, error) {
	f.sent = append(f.sent, text)
	if f.err != nil {
		return nil, f.err
	}
	return &converse.InferenceResponse{Text: f.reply}, nil
}

func (f *fakeConversation) AttachImage(img converse.ImageBlock) error {
	if err := converse.ValidateImageBlock(img); err != nil {
		return err
	}
	f.attached = append(f.attached, img)
	return nil
}

func (f *fakeConversation) DetachImage() { f.detached++ }
func (f *fakeConversation) Clear()       { f.cleared++ }

func newTestModel(conv Conversation, opts ...Option) Model {
	opts = append([]Option{WithMarkdownStyle("notty")}, opts...)
	return New(conv, opts...)
}

func typeAndEnter(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestReveal(t *testing.T) {
	r := NewReveal("Paris is\n the  capital.")

	assert.False(t, r.Done())
	assert.True(t, r.Step())
	assert.Equal(t, "Paris "+Cursor, r.Frame())
	assert.True(t, r.Step())
	assert.Equal(t, "Paris is "+Cursor, r.Frame())
	assert.True(t, r.Step())
	assert.False(t, r.Step())

	// The finished frame is the reply as received, whitespace included.
	assert.True(t, r.Done())
	assert.Equal(t, "Paris is\n the  capital.", r.Frame())
}

func TestReveal_Empty(t *testing.T) {
	r := NewReveal("   ")
	assert.True(t, r.Done())
	assert.False(t, r.Step())
	assert.Equal(t, "   ", r.Frame())
}

func TestModel_SendAndReveal(t *testing.T) {
	conv := &fakeConversation{reply: "Four is the answer"}
	m := newTestModel(conv)

	m, cmd := typeAndEnter(t, m, "  What is 2+2?  ")
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Thinking...")

	// Enter is ignored while waiting.
	m2, cmd2 := typeAndEnter(t, m, "again")
	assert.Nil(t, cmd2)
	assert.Len(t, m2.entries, 1)

	msg := send(conv, "What is 2+2?")()
	assert.Equal(t, []string{"What is 2+2?"}, conv.sent)

	next, cmd := m.Update(msg)
	m = next.(Model)
	assert.False(t, m.waiting)
	require.NotNil(t, m.reveal)
	require.NotNil(t, cmd)
	assert.Contains(t, m.transcript(), "Four "+Cursor)

	ticks := 0
	for cmd != nil {
		next, cmd = m.Update(revealTickMsg{})
		m = next.(Model)
		ticks++
		require.Less(t, ticks, 10)
	}
	assert.Equal(t, 3, ticks)
	assert.Nil(t, m.reveal)
	assert.NotContains(t, m.transcript(), Cursor)
	assert.Contains(t, m.View(), "answer")
}

func TestModel_ReplyError(t *testing.T) {
	conv := &fakeConversation{err: converse.NewRemoteFailure("Too many tokens", 400, nil)}
	m := newTestModel(conv)

	m, _ = typeAndEnter(t, m, "hello")
	next, cmd := m.Update(send(conv, "hello")())
	m = next.(Model)

	assert.Nil(t, cmd)
	assert.False(t, m.waiting)
	assert.Contains(t, m.transcript(), "Too many tokens")
}

func TestModel_Commands(t *testing.T) {
	png := converse.NewImageBlock([]byte("png-bytes"), "image/png")
	loader := func(path string) (converse.ImageBlock, error) {
		if path == "missing.png" {
			return converse.ImageBlock{}, errors.New("no such file")
		}
		return png, nil
	}

	tests := []struct {
		name   string
		input  string
		check  func(t *testing.T, conv *fakeConversation, m Model)
		isQuit bool
	}{
		{
			name:  "clear",
			input: "/clear",
			check: func(t *testing.T, conv *fakeConversation, m Model) {
				assert.Equal(t, 1, conv.cleared)
				assert.Contains(t, m.transcript(), "Context cleared")
			},
		},
		{
			name:  "image attaches and resets transcript",
			input: "/image chart.png",
			check: func(t *testing.T, conv *fakeConversation, m Model) {
				require.Len(t, conv.attached, 1)
				assert.Equal(t, "chart.png", m.attachedImg)
				assert.Contains(t, m.View(), "image: chart.png")
			},
		},
		{
			name:  "image load failure",
			input: "/image missing.png",
			check: func(t *testing.T, conv *fakeConversation, m Model) {
				assert.Empty(t, conv.attached)
				assert.Contains(t, m.transcript(), "no such file")
			},
		},
		{
			name:  "image without path",
			input: "/image",
			check: func(t *testing.T, conv *fakeConversation, m Model) {
				assert.Contains(t, m.transcript(), "usage: /image <path>")
			},
		},
		{
			name:  "detach",
			input: "/detach",
			check: func(t *testing.T, conv *fakeConversation, m Model) {
				assert.Equal(t, 1, conv.detached)
			},
		},
		{
			name:  "unknown",
			input: "/dance",
			check: func(t *testing.T, conv *fakeConversation, m Model) {
				assert.Contains(t, m.transcript(), "unknown command /dance")
			},
		},
		{name: "quit", input: "/quit", isQuit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &fakeConversation{}
			m := newTestModel(conv, WithImageLoader(loader))

			m, cmd := typeAndEnter(t, m, tt.input)
			assert.Empty(t, conv.sent)
			if tt.isQuit {
				require.NotNil(t, cmd)
				assert.IsType(t, tea.QuitMsg{}, cmd())
				return
			}
			assert.Nil(t, cmd)
			tt.check(t, conv, m)
		})
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := newTestModel(&fakeConversation{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)

	assert.True(t, m.ready)
	assert.Equal(t, 100, m.viewport.Width)
	assert.Equal(t, 26, m.viewport.Height)
}
