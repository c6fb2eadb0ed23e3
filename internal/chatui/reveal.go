package chatui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	// RevealInterval is the delay between revealed chunks.
	RevealInterval = 50 * time.Millisecond

	// Cursor trails the partially revealed reply.
	Cursor = "▌"
)

// Reveal types out a reply that has already arrived in full, one
// whitespace-separated chunk per tick. It is purely cosmetic.
type Reveal struct {
	full   string
	chunks []string
	shown  int
}

// NewReveal prepares text for display.
func NewReveal(text string) *Reveal {
	return &Reveal{full: text, chunks: strings.Fields(text)}
}

// Step shows one more chunk and reports whether any remain hidden.
func (r *Reveal) Step() bool {
	if r.shown < len(r.chunks) {
		r.shown++
	}
	return !r.Done()
}

// Done reports whether the whole reply is visible.
func (r *Reveal) Done() bool {
	return r.shown >= len(r.chunks)
}

// Frame is the text to display now: the revealed chunks and the cursor, or
// the untouched reply once done.
func (r *Reveal) Frame() string {
	if r.Done() {
		return r.full
	}
	return strings.Join(r.chunks[:r.shown], " ") + " " + Cursor
}

type revealTickMsg struct{}

func revealTick() tea.Cmd {
	return tea.Tick(RevealInterval, func(time.Time) tea.Msg {
		return revealTickMsg{}
	})
}
