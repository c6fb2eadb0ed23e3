package converse

// History is an ordered, append-only sequence of turns. It is single-writer:
// one Session owns it and nothing else mutates it.
type History struct {
	turns []Turn
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Append validates turn and stores a copy of it. Malformed turns are rejected
// and leave the history unchanged.
func (h *History) Append(turn Turn) error {
	if err := ValidateTurn(turn); err != nil {
		return err
	}
	h.turns = append(h.turns, turn.clone())
	return nil
}

// Snapshot returns a copy of the full ordered sequence.
func (h *History) Snapshot() []Turn {
	return cloneTurns(h.turns)
}

// Clear empties the history.
func (h *History) Clear() {
	h.turns = nil
}

func (h *History) IsEmpty() bool {
	return len(h.turns) == 0
}

func (h *History) Len() int {
	return len(h.turns)
}
