package converse

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Client is a stateless Converser that encodes requests with the codec
// selected by the config's protocol and sends them through an Invoker.
// It is safe for concurrent use when the Invoker is.
type Client struct {
	invoker Invoker
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client's logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client over the given transport.
func NewClient(invoker Invoker, opts ...ClientOption) *Client {
	c := &Client{
		invoker: invoker,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Converse sends history followed by newTurn and returns the normalized reply.
// history is never modified.
func (c *Client) Converse(ctx context.Context, history []Turn, newTurn Turn, cfg *InvocationConfig) (*InferenceResponse, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateTurns(history); err != nil {
		return nil, err
	}
	if err := ValidateTurn(newTurn); err != nil {
		return nil, err
	}

	codec, err := CodecFor(cfg.protocol())
	if err != nil {
		return nil, err
	}

	req := BuildRequest(history, newTurn, cfg)
	body, err := codec.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	c.logger.Debug("invoking model",
		"model", req.Model,
		"protocol", req.Protocol,
		"turns", len(req.Turns),
		"request_bytes", len(body))

	raw, err := c.invoker.Invoke(ctx, req.Model, body)
	if err != nil {
		err = classifyInvokeError(ctx, err)
		c.logger.Debug("model invocation failed",
			"model", req.Model,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, err
	}

	resp, err := codec.DecodeResponse(raw)
	if err != nil {
		return nil, err
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}

	c.logger.Debug("model invocation complete",
		"model", req.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_bytes", len(raw))

	return resp, nil
}

// classifyInvokeError maps transport errors onto the error taxonomy.
func classifyInvokeError(ctx context.Context, err error) error {
	if errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewTimeout(err)
	}
	if IsRateLimitError(err) {
		return err
	}
	if _, ok := AsInferenceError(err); ok {
		return err
	}
	return NewRemoteFailure(err.Error(), 0, err)
}
