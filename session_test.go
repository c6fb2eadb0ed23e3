package converse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConverser answers from a fixed list and records what it was sent.
type scriptedConverser struct {
	mu        sync.Mutex
	replies   []string
	err       error
	histories [][]Turn
	turns     []Turn
	configs   []*InvocationConfig
	onCall    func()
}

func (s *scriptedConverser) Converse(ctx context.Context, history []Turn, newTurn Turn, cfg *InvocationConfig) (*InferenceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.onCall != nil {
		s.onCall()
	}
	s.histories = append(s.histories, history)
	s.turns = append(s.turns, newTurn)
	s.configs = append(s.configs, cfg)
	if s.err != nil {
		return nil, s.err
	}
	i := len(s.turns) - 1
	reply := fmt.Sprintf("reply %d", i)
	if i < len(s.replies) {
		reply = s.replies[i]
	}
	return &InferenceResponse{Text: reply}, nil
}

func newTestSession(t *testing.T, conv Converser, opts ...SessionOption) *Session {
	t.Helper()
	opts = append([]SessionOption{WithSessionLogger(quietLogger())}, opts...)
	s, err := NewSession(conv, opts...)
	require.NoError(t, err)
	return s
}

func TestSession_TwoPlusTwo(t *testing.T) {
	conv := &scriptedConverser{replies: []string{"4"}}
	s := newTestSession(t, conv)

	resp, err := s.Send(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", resp.Text)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "What is 2+2?", history[0].Text())
	assert.Equal(t, RoleAssistant, history[1].Role)
	assert.Equal(t, "4", history[1].Text())
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_HistoryGrowsByTwoPerSend(t *testing.T) {
	conv := &scriptedConverser{}
	s := newTestSession(t, conv)

	for i := 1; i <= 4; i++ {
		_, err := s.Send(context.Background(), fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		assert.Len(t, s.History(), 2*i)
	}

	// Each call saw the history accumulated so far.
	for i, h := range conv.histories {
		assert.Len(t, h, 2*i)
	}
}

func TestSession_FailureLeavesHistoryUnchanged(t *testing.T) {
	conv := &scriptedConverser{replies: []string{"4"}}
	s := newTestSession(t, conv)

	_, err := s.Send(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	before := s.History()

	conv.err = NewRemoteFailure("ThrottlingException: Too many requests", 429, nil)
	_, err = s.Send(context.Background(), "And 3+3?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteFailure))

	assert.Equal(t, before, s.History())
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_EmptyReplyIsMalformed(t *testing.T) {
	conv := &scriptedConverser{replies: []string{""}}
	s := newTestSession(t, conv)

	_, err := s.Send(context.Background(), "hello")
	assert.True(t, errors.Is(err, ErrMalformedResponse))
	assert.Empty(t, s.History())
}

func TestSession_EmptyInputRejected(t *testing.T) {
	conv := &scriptedConverser{}
	s := newTestSession(t, conv)

	_, err := s.Send(context.Background(), "")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Empty(t, conv.turns)
}

func TestSession_AttachFirstTurnOnly(t *testing.T) {
	conv := &scriptedConverser{}
	s := newTestSession(t, conv)

	img := NewImageBlock([]byte("png-bytes"), "image/png")
	require.NoError(t, s.AttachImage(img))
	assert.True(t, s.HasImage())

	_, err := s.Send(context.Background(), "Describe this image")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "What color is it?")
	require.NoError(t, err)

	first := conv.turns[0]
	require.Len(t, first.Content, 2)
	assert.Equal(t, img, first.Content[0], "image precedes text")
	assert.Equal(t, Text("Describe this image"), first.Content[1])

	assert.False(t, conv.turns[1].HasImages())
	// The image still reaches the model through history.
	assert.True(t, conv.histories[1][0].HasImages())
}

func TestSession_AttachEveryTurn(t *testing.T) {
	conv := &scriptedConverser{}
	s := newTestSession(t, conv, WithAttachPolicy(AttachEveryTurn))

	require.NoError(t, s.AttachImage(NewImageBlock([]byte("png-bytes"), "image/png")))
	_, err := s.Send(context.Background(), "one")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "two")
	require.NoError(t, err)

	for _, turn := range conv.turns {
		require.True(t, turn.HasImages())
		assert.Equal(t, BlockImage, turn.Content[0].BlockType())
	}
}

func TestSession_AttachImageClearsHistory(t *testing.T) {
	conv := &scriptedConverser{}
	s := newTestSession(t, conv)

	_, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, s.History(), 2)

	require.NoError(t, s.AttachImage(NewImageBlock([]byte("png-bytes"), "image/png")))
	assert.Empty(t, s.History())

	err = s.AttachImage(NewImageBlock([]byte("bmp"), "image/bmp"))
	assert.True(t, errors.Is(err, ErrInvalidMIMEType))

	s.DetachImage()
	assert.False(t, s.HasImage())
}

func TestSession_Clear(t *testing.T) {
	conv := &scriptedConverser{}
	s := newTestSession(t, conv)

	_, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)

	s.Clear()
	assert.Empty(t, s.History())
}

func TestSession_SystemTemplate(t *testing.T) {
	conv := &scriptedConverser{replies: []string{"4", "6"}}
	s := newTestSession(t, conv,
		WithSessionConfig(&InvocationConfig{Model: "m", MaxOutputTokens: 100}),
		WithSystemTemplate("Turns so far: {{.TurnCount}}\n{{.History}}"),
	)

	_, err := s.Send(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "And 3+3?")
	require.NoError(t, err)

	assert.Equal(t, "Turns so far: 0\n", conv.configs[0].SystemInstruction)
	assert.Equal(t, "Turns so far: 2\nuser: What is 2+2?\nassistant: 4\n", conv.configs[1].SystemInstruction)
}

func TestSession_BadTemplate(t *testing.T) {
	_, err := NewSession(&scriptedConverser{}, WithSystemTemplate("{{.History"))
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestSession_StateDuringCall(t *testing.T) {
	conv := &scriptedConverser{}
	s := newTestSession(t, conv)

	var observed SessionState
	conv.onCall = func() { observed = s.State() }

	_, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingReply, observed)
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_IDs(t *testing.T) {
	a := newTestSession(t, &scriptedConverser{})
	b := newTestSession(t, &scriptedConverser{})
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())

	c := newTestSession(t, &scriptedConverser{}, WithSessionID("fixed"))
	assert.Equal(t, "fixed", c.ID())
}
