package converse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendAndSnapshot(t *testing.T) {
	h := NewHistory()
	assert.True(t, h.IsEmpty())

	require.NoError(t, h.Append(NewUserTurn(Text("What is 2+2?"))))
	require.NoError(t, h.Append(NewAssistantTurn("4")))

	assert.False(t, h.IsEmpty())
	assert.Equal(t, 2, h.Len())

	snap := h.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, RoleUser, snap[0].Role)
	assert.Equal(t, "What is 2+2?", snap[0].Text())
	assert.Equal(t, RoleAssistant, snap[1].Role)
	assert.Equal(t, "4", snap[1].Text())
}

func TestHistory_SnapshotIsACopy(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Append(NewUserTurn(Text("hello"))))

	snap := h.Snapshot()
	snap[0].Content[0] = Text("tampered")
	snap = append(snap, NewAssistantTurn("extra"))

	again := h.Snapshot()
	require.Len(t, again, 1)
	assert.Equal(t, "hello", again[0].Text())
	assert.Len(t, snap, 2)
}

func TestHistory_AppendCopiesTurn(t *testing.T) {
	h := NewHistory()
	turn := NewUserTurn(Text("hello"))
	require.NoError(t, h.Append(turn))

	turn.Content[0] = Text("tampered")
	assert.Equal(t, "hello", h.Snapshot()[0].Text())
}

func TestHistory_RejectsMalformedTurn(t *testing.T) {
	h := NewHistory()

	err := h.Append(Turn{Role: RoleUser})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, h.IsEmpty())
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Append(NewUserTurn(Text("hello"))))
	require.NoError(t, h.Append(NewAssistantTurn("hi")))

	h.Clear()

	assert.True(t, h.IsEmpty())
	assert.Empty(t, h.Snapshot())
}
