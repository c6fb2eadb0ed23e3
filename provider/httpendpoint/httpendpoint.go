// Package httpendpoint provides an Invoker and Backend for model endpoints
// reached over plain HTTP, such as a Bedrock-compatible gateway or a local
// proxy exposing POST {base}/model/{id}/invoke.
package httpendpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mhpenta/converse"
)

// MaxResponseSize caps how much of a response body is read.
const MaxResponseSize = 32 << 20

// DefaultRetryAfter is reported on 429 responses without a Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// ErrResponseTooLarge is returned when a body exceeds MaxResponseSize.
var ErrResponseTooLarge = errors.New("response exceeded maximum size")

// Invoker implements converse.Invoker over HTTP.
type Invoker struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures an Invoker or Backend.
type Option func(*Invoker)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Invoker) {
		i.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Invoker) {
		i.logger = logger
	}
}

// NewInvoker creates an Invoker for cfg.BaseURL, authenticating with
// cfg.APIKey as a bearer token when set.
func NewInvoker(cfg *converse.ProviderConfig, opts ...Option) (*Invoker, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: http endpoint requires a base URL", converse.ErrProviderNotConfigured)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", converse.ErrProviderNotConfigured, err)
	}

	i := &Invoker{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Invoker) endpoint(modelID string) string {
	return i.baseURL + "/model/" + url.PathEscape(modelID) + "/invoke"
}

// Invoke posts body to the model's invoke URL.
func (i *Invoker) Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint(modelID), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if i.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+i.apiKey)
	}

	start := time.Now()
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readResponse(resp)
	if err != nil {
		return nil, converse.NewRemoteFailure(err.Error(), resp.StatusCode, err)
	}

	i.logger.Debug("http endpoint response",
		"model", modelID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(modelID, resp, raw)
	}
	return raw, nil
}

func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, MaxResponseSize)
	}
	return body, nil
}

type errorBody struct {
	Message string `json:"message"`
}

// errorFromResponse keeps the service's own message verbatim when the body
// carries one, falling back to the raw body.
func errorFromResponse(modelID string, resp *http.Response, body []byte) error {
	message := strings.TrimSpace(string(body))
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		message = eb.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	remote := converse.NewRemoteFailure(message, resp.StatusCode, nil)
	if resp.StatusCode == http.StatusTooManyRequests {
		return &converse.RateLimitError{
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			LimitType:  "requests",
			Model:      modelID,
			Err:        remote,
		}
	}
	return remote
}

func retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return DefaultRetryAfter
}

// Backend serves a fixed model list through an HTTP endpoint.
type Backend struct {
	*converse.Client
	invoker *Invoker
	images  *converse.ImageClient
	models  []converse.ModelInfo
}

var (
	_ converse.Invoker        = (*Invoker)(nil)
	_ converse.Backend        = (*Backend)(nil)
	_ converse.ImageGenerator = (*Backend)(nil)
)

// New creates a Backend advertising models. Each model's Provider is set
// to converse.ProviderHTTPEndpoint so the Manager routes it here.
func New(cfg *converse.ProviderConfig, models []converse.ModelInfo, opts ...Option) (*Backend, error) {
	invoker, err := NewInvoker(cfg, opts...)
	if err != nil {
		return nil, err
	}

	owned := make([]converse.ModelInfo, len(models))
	for idx, info := range models {
		info.Provider = converse.ProviderHTTPEndpoint
		owned[idx] = info
	}

	return &Backend{
		Client:  converse.NewClient(invoker, converse.WithClientLogger(invoker.logger)),
		invoker: invoker,
		images:  converse.NewImageClient(invoker, converse.WithClientLogger(invoker.logger)),
		models:  owned,
	}, nil
}

// Generate creates images through the endpoint.
func (b *Backend) Generate(ctx context.Context, prompt string, cfg *converse.ImageConfig) (*converse.ImageResult, error) {
	return b.images.Generate(ctx, prompt, cfg)
}

// Models returns the configured models.
func (b *Backend) Models() []converse.ModelInfo {
	return b.models
}

// Close releases idle connections.
func (b *Backend) Close() error {
	b.invoker.httpClient.CloseIdleConnections()
	return nil
}
