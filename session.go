package converse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"text/template"

	"github.com/google/uuid"
)

// SessionState is the caller-side conversation state.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateAwaitingReply
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting_reply"
	default:
		return "unknown"
	}
}

// AttachPolicy controls which turns carry the attached image.
type AttachPolicy int

const (
	// AttachFirstTurnOnly sends the image only with the first turn of a
	// conversation. Later turns rely on history to carry it.
	AttachFirstTurnOnly AttachPolicy = iota

	// AttachEveryTurn sends the image with every user turn.
	AttachEveryTurn
)

// Session owns one conversation history and drives a Converser. The
// history is extended only after a successful call, so a failed send
// leaves it unchanged. Send calls on one session are serialized.
type Session struct {
	id        string
	converser Converser
	cfg       *InvocationConfig
	policy    AttachPolicy
	system    *template.Template
	logger    *slog.Logger

	state atomic.Int32

	mu      sync.Mutex
	history *History
	image   *ImageBlock
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	cfg            *InvocationConfig
	policy         AttachPolicy
	systemTemplate string
	logger         *slog.Logger
	id             string
}

// WithSessionConfig sets the invocation config used for every send.
func WithSessionConfig(cfg *InvocationConfig) SessionOption {
	return func(o *sessionOptions) {
		o.cfg = cfg
	}
}

// WithAttachPolicy sets the image attach policy.
func WithAttachPolicy(policy AttachPolicy) SessionOption {
	return func(o *sessionOptions) {
		o.policy = policy
	}
}

// WithSystemTemplate sets a text/template rendered before every send into
// the system instruction. The template sees .History (a "role: text" line
// per turn), .TurnCount and .SessionID.
func WithSystemTemplate(text string) SessionOption {
	return func(o *sessionOptions) {
		o.systemTemplate = text
	}
}

// WithSessionLogger sets the session's logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(o *sessionOptions) {
		o.id = id
	}
}

// NewSession creates an idle session with empty history.
func NewSession(converser Converser, opts ...SessionOption) (*Session, error) {
	o := &sessionOptions{
		policy: AttachFirstTurnOnly,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.cfg
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Session{
		id:        o.id,
		converser: converser,
		cfg:       cfg,
		policy:    o.policy,
		history:   NewHistory(),
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.logger = o.logger.With("session_id", s.id)

	if o.systemTemplate != "" {
		tmpl, err := template.New("system").Parse(o.systemTemplate)
		if err != nil {
			return nil, fmt.Errorf("%w: system template: %v", ErrInvalidInput, err)
		}
		s.system = tmpl
	}

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Send builds a user turn from text plus any attached image, per the attach
// policy, and sends it. Images precede the text in the turn.
func (s *Session) Send(ctx context.Context, text string) (*InferenceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blocks []ContentBlock
	if s.image != nil && (s.policy == AttachEveryTurn || s.history.IsEmpty()) {
		blocks = append(blocks, *s.image)
	}
	if text != "" {
		blocks = append(blocks, Text(text))
	}

	return s.send(ctx, NewUserTurn(blocks...))
}

// SendTurn sends a prebuilt user turn. The attached image is not added.
func (s *Session) SendTurn(ctx context.Context, turn Turn) (*InferenceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.send(ctx, turn)
}

func (s *Session) send(ctx context.Context, turn Turn) (*InferenceResponse, error) {
	if err := ValidateTurn(turn); err != nil {
		return nil, err
	}

	s.state.Store(int32(StateAwaitingReply))
	defer s.state.Store(int32(StateIdle))

	cfg, err := s.configForCall()
	if err != nil {
		return nil, err
	}

	history := s.history.Snapshot()
	resp, err := s.converser.Converse(ctx, history, turn, cfg)
	if err != nil {
		s.logger.Warn("send failed",
			"history_turns", len(history),
			"error", err.Error(),
		)
		return nil, err
	}

	reply := NewAssistantTurn(resp.Text)
	if err := ValidateTurn(reply); err != nil {
		return nil, NewMalformedResponse("reply text is empty", err)
	}

	if err := s.history.Append(turn); err != nil {
		return nil, err
	}
	if err := s.history.Append(reply); err != nil {
		return nil, err
	}

	s.logger.Debug("send complete", "history_turns", s.history.Len())
	return resp, nil
}

type systemTemplateData struct {
	History   string
	TurnCount int
	SessionID string
}

// configForCall returns the session config with the system template applied.
func (s *Session) configForCall() (*InvocationConfig, error) {
	if s.system == nil {
		return s.cfg, nil
	}

	var b strings.Builder
	err := s.system.Execute(&b, systemTemplateData{
		History:   s.historySummary(),
		TurnCount: s.history.Len(),
		SessionID: s.id,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: rendering system template: %v", ErrInvalidInput, err)
	}

	cfg := *s.cfg
	cfg.SystemInstruction = b.String()
	return &cfg, nil
}

func (s *Session) historySummary() string {
	var b strings.Builder
	for _, t := range s.history.turns {
		b.WriteString(t.Role.String())
		b.WriteString(": ")
		b.WriteString(t.Text())
		if n := len(t.Images()); n > 0 {
			fmt.Fprintf(&b, " [%d image(s)]", n)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// AttachImage attaches an image to the session and clears the history,
// since prior context no longer applies to the new image.
func (s *Session) AttachImage(img ImageBlock) error {
	if err := ValidateImageBlock(img); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.image = &img
	s.history.Clear()
	s.logger.Debug("image attached", "media_type", img.MediaType())
	return nil
}

// DetachImage removes the attached image. History is kept.
func (s *Session) DetachImage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.image = nil
}

// HasImage reports whether an image is attached.
func (s *Session) HasImage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.image != nil
}

// Clear empties the history. The attached image stays attached.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Clear()
}

// History returns a snapshot of the conversation.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history.Snapshot()
}
