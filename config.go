package converse

import (
	"fmt"
	"time"
)

// Model represents a public model name routed by the Manager, or a provider
// model id when a Client is used directly.
type Model string

// String returns the model identifier.
func (m Model) String() string {
	return string(m)
}

// Protocol selects the request/response shape used on the wire.
type Protocol string

const (
	// ProtocolMessages is the structured multi-turn messages protocol.
	ProtocolMessages Protocol = "messages"

	// ProtocolTextCompletion is the legacy delimiter-based completion protocol.
	ProtocolTextCompletion Protocol = "text-completion"

	ProtocolCohereGenerate Protocol = "cohere-generate"
	ProtocolAI21Complete   Protocol = "ai21-complete"
)

func (p Protocol) String() string {
	return string(p)
}

const (
	ModelClaude3Sonnet Model = "anthropic.claude-3-sonnet-20240229-v1:0"
	ModelClaude3Haiku  Model = "anthropic.claude-3-haiku-20240307-v1:0"
	ModelClaudeV2      Model = "anthropic.claude-v2"
	ModelCohereCommand Model = "cohere.command-text-v14"
	ModelAI21J2Mid     Model = "ai21.j2-mid"

	ModelDefault = ModelClaude3Sonnet

	DefaultMaxOutputTokens = 4096
)

// InvocationConfig holds the sampling and routing options for one call.
type InvocationConfig struct {
	// Model to invoke (if empty, the manager's default is used)
	Model Model

	// Protocol used to encode the request (empty means ProtocolMessages)
	Protocol Protocol

	// MaxOutputTokens caps the reply length. Must be positive.
	MaxOutputTokens int

	// Temperature controls randomness (0.0-1.0)
	Temperature *float32

	TopK *int
	TopP *float32

	StopSequences []string

	// SystemInstruction is sent as the system prompt when the protocol has one.
	SystemInstruction string

	// Timeout bounds the remote call. Zero means no extra deadline.
	Timeout time.Duration

	// Metadata to attach to requests (for logging/tracking)
	Metadata map[string]string

	// WaitOnRateLimit, if true, causes the Manager to wait when rate limited.
	// If false, a RateLimitError is returned immediately.
	WaitOnRateLimit bool

	// MaxWaitDuration is the maximum time to wait when WaitOnRateLimit is true.
	// Zero means no limit.
	MaxWaitDuration time.Duration
}

// WithModel returns a copy of the config with the specified model.
func (c *InvocationConfig) WithModel(model Model) *InvocationConfig {
	if c == nil {
		cfg := DefaultConfig()
		cfg.Model = model
		return cfg
	}
	cX := *c
	cX.Model = model
	return &cX
}

// WithProtocol returns a copy of the config with the specified protocol.
func (c *InvocationConfig) WithProtocol(protocol Protocol) *InvocationConfig {
	if c == nil {
		c = DefaultConfig()
	}
	cX := *c
	cX.Protocol = protocol
	return &cX
}

// protocol returns the configured protocol or the default.
func (c *InvocationConfig) protocol() Protocol {
	if c.Protocol == "" {
		return ProtocolMessages
	}
	return c.Protocol
}

// Validate checks the sampling parameters.
func (c *InvocationConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidInput)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidInput)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("%w: max output tokens must be positive, got %d", ErrInvalidInput, c.MaxOutputTokens)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 1) {
		return fmt.Errorf("%w: temperature %v out of range [0,1]", ErrInvalidInput, *c.Temperature)
	}
	if c.TopP != nil && (*c.TopP < 0 || *c.TopP > 1) {
		return fmt.Errorf("%w: top_p %v out of range [0,1]", ErrInvalidInput, *c.TopP)
	}
	if c.TopK != nil && *c.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative", ErrInvalidInput)
	}
	if _, err := CodecFor(c.protocol()); err != nil {
		return err
	}
	return nil
}

// DefaultConfig returns an InvocationConfig with sensible defaults.
func DefaultConfig() *InvocationConfig {
	return &InvocationConfig{
		Model:           ModelDefault,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}

// DefaultConfigWithModel returns a default config with the specified model.
func DefaultConfigWithModel(model Model) *InvocationConfig {
	config := DefaultConfig()
	config.Model = model
	return config
}

// Float32 returns a pointer to v, for the optional sampling fields.
func Float32(v float32) *float32 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
