package converse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mhpenta/converse/ratelimiter"
)

var (
	// ErrModelNotRegistered is returned when a model has no registered provider.
	ErrModelNotRegistered = fmt.Errorf("%w: model not registered", ErrInvalidInput)

	// ErrProviderNotConfigured is returned when a provider lacks required config.
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// Provider represents a model provider/backend.
type Provider string

const (
	ProviderBedrock      Provider = "bedrock"
	ProviderHTTPEndpoint Provider = "http-endpoint"
	ProviderGeminiAPI    Provider = "gemini"
)

// ProviderConfig configures a specific provider.
type ProviderConfig struct {
	// Provider type
	Provider Provider

	// APIKey for authentication
	APIKey string

	// BaseURL for custom endpoints (optional)
	BaseURL string

	// Region for regional cloud endpoints (optional)
	Region string
}

// ModelMapping maps a public model name to its provider, the provider's
// model id, and the wire protocols used to reach it.
type ModelMapping struct {
	Provider        Provider
	ActualModelName string
	Protocol        Protocol
	ImageProtocol   ImageProtocol
}

// Manager implements Converser and ImageGenerator, routing requests to the
// backend that serves the model named in the config.
type Manager struct {
	// Model to provider mapping
	modelMappings map[Model]ModelMapping

	// Backend instances
	backends map[Provider]Backend

	// Default models used when config.Model is empty
	defaultModel      Model
	defaultImageModel Model

	// Rate limiting (per model)
	rateLimiters ratelimiter.RateLimiterRegistry

	// Model info (per model)
	modelInfo map[Model]*ModelInfo

	// Logger for structured logging (optional)
	logger *slog.Logger

	// Storage for persisting generated images (optional)
	storage Storage

	tokenEstimator TokenEstimator

	mu sync.RWMutex
}

// Ensure Manager implements the interfaces.
var (
	_ Converser      = (*Manager)(nil)
	_ ImageGenerator = (*Manager)(nil)
)

// New creates an empty Manager. Use Register or NewManager to add backends.
func New() *Manager {
	return &Manager{
		logger:         slog.Default(),
		modelMappings:  make(map[Model]ModelMapping),
		backends:       make(map[Provider]Backend),
		rateLimiters:   ratelimiter.NewRateLimiterRegistry(),
		modelInfo:      make(map[Model]*ModelInfo),
		tokenEstimator: NewSimpleTokenEstimator(),
	}
}

// Register adds a backend and registers every model it serves. The first
// chat model and the first image model become defaults when none are set.
func (m *Manager) Register(backend Backend) *Manager {
	models := backend.Models()
	for i := range models {
		info := &models[i]

		m.mu.Lock()
		m.backends[info.Provider] = backend
		if m.defaultModel == "" && info.Protocol != "" {
			m.defaultModel = Model(info.Name)
		}
		if m.defaultImageModel == "" && info.ImageProtocol != "" {
			m.defaultImageModel = Model(info.Name)
		}
		m.mu.Unlock()

		m.RegisterModel(Model(info.Name),
			ModelMapping{
				Provider:        info.Provider,
				ActualModelName: info.APIModelName,
				Protocol:        info.Protocol,
				ImageProtocol:   info.ImageProtocol,
			},
			info)
	}
	return m
}

// RegisterModel registers a model with full info (including rate limits).
// Uses the default in-memory rate limiter, or none when info carries no limits.
// Use SetRateLimiter to override with a custom implementation.
func (m *Manager) RegisterModel(model Model, mapping ModelMapping, info *ModelInfo) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.modelMappings[model] = mapping
	m.modelInfo[model] = info

	if info != nil && (info.RateLimits.TokensPerMinute > 0 || info.RateLimits.RequestsPerMinute > 0) {
		m.rateLimiters.Set(string(model), ratelimiter.New(
			info.RateLimits.TokensPerMinute,
			info.RateLimits.RequestsPerMinute,
		))
	} else {
		// Re-registering without limits drops any earlier limiter.
		m.rateLimiters.Delete(string(model))
	}

	return m
}

// SetRateLimiter sets a custom rate limiter for a model.
func (m *Manager) SetRateLimiter(model Model, limiter ratelimiter.Limiter) *Manager {
	m.rateLimiters.Set(string(model), limiter)
	return m
}

// SetDefaultModel sets the default chat model used when config.Model is empty.
func (m *Manager) SetDefaultModel(model Model) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.defaultModel = model
	return m
}

// SetLogger sets a structured logger for the manager.
func (m *Manager) SetLogger(logger *slog.Logger) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger = logger
	return m
}

// SetStorage sets a storage backend for persisting generated images.
func (m *Manager) SetStorage(storage Storage) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.storage = storage
	return m
}

// Storage returns the configured storage backend, or nil if not set.
func (m *Manager) Storage() Storage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.storage
}

// SaveResult saves all images from an ImageResult to the configured storage.
// If no storage is configured, returns ErrStorageNotConfigured.
func (m *Manager) SaveResult(ctx context.Context, result *ImageResult, basePath string) ([]StorageResult, error) {
	return SaveToStorage(ctx, m.Storage(), result, basePath)
}

// DefaultModel returns the chat model used when config.Model is empty.
func (m *Manager) DefaultModel() Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultModel
}

// Converse routes the call to the backend serving cfg.Model.
func (m *Manager) Converse(ctx context.Context, history []Turn, newTurn Turn, cfg *InvocationConfig) (*InferenceResponse, error) {
	if cfg == nil {
		cfg = DefaultConfig()
		cfg.Model = ""
	}

	model := m.resolveModel(cfg.Model, false)
	logger := m.getLogger()
	start := time.Now()

	logger.Debug("starting conversation call",
		"model", string(model),
		"history_turns", len(history),
		"images", len(newTurn.Images()),
	)

	conv, actualConfig, info, err := m.getConverserForConfig(model, cfg)
	if err != nil {
		logger.Error("failed to get converser",
			"model", string(model),
			"error", err.Error(),
		)
		return nil, err
	}

	if info != nil && !info.Capabilities.SupportsImageInput && turnsHaveImages(history, newTurn) {
		return nil, fmt.Errorf("%w: %s", ErrImagesUnsupported, model)
	}

	estimated := EstimateTurnTokens(m.tokenEstimator, history...) + EstimateTurnTokens(m.tokenEstimator, newTurn)
	if err := m.checkRateLimit(ctx, model, cfg.WaitOnRateLimit, cfg.MaxWaitDuration, estimated); err != nil {
		logger.Warn("rate limit hit",
			"model", string(model),
			"error", err.Error(),
		)
		return nil, err
	}

	resp, err := conv.Converse(ctx, history, newTurn, actualConfig)
	duration := time.Since(start)

	if err != nil {
		logger.Error("conversation call failed",
			"model", string(model),
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return nil, err
	}

	logAttrs := []any{
		"model", string(model),
		"duration_ms", duration.Milliseconds(),
		"reply_length", len(resp.Text),
		"stop_reason", resp.StopReason,
	}
	if resp.Usage != nil {
		logAttrs = append(logAttrs,
			"prompt_tokens", resp.Usage.PromptTokens,
			"response_tokens", resp.Usage.CandidatesTokens,
			"total_tokens", resp.Usage.TotalTokens,
		)
	}
	for k, v := range cfg.Metadata {
		logAttrs = append(logAttrs, "meta_"+k, v)
	}
	logger.Info("conversation call completed", logAttrs...)

	return resp, nil
}

// Generate routes an image generation request to the backend serving cfg.Model.
func (m *Manager) Generate(ctx context.Context, prompt string, cfg *ImageConfig) (*ImageResult, error) {
	if cfg == nil {
		cfg = DefaultImageConfig()
		cfg.Model = ""
	}

	model := m.resolveModel(cfg.Model, true)
	logger := m.getLogger()
	start := time.Now()

	logger.Debug("starting image generation",
		"model", string(model),
		"prompt_length", len(prompt),
	)

	gen, actualConfig, err := m.getGeneratorForConfig(model, cfg)
	if err != nil {
		logger.Error("failed to get generator",
			"model", string(model),
			"error", err.Error(),
		)
		return nil, err
	}

	if err := m.checkRateLimit(ctx, model, cfg.WaitOnRateLimit, cfg.MaxWaitDuration, m.tokenEstimator.EstimateTokens(prompt)); err != nil {
		logger.Warn("rate limit hit",
			"model", string(model),
			"error", err.Error(),
		)
		return nil, err
	}

	result, err := gen.Generate(ctx, prompt, actualConfig)
	duration := time.Since(start)

	if err != nil {
		logger.Error("generation failed",
			"model", string(model),
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return nil, err
	}

	logger.Info("generation completed",
		"model", string(model),
		"duration_ms", duration.Milliseconds(),
		"image_count", len(result.Images),
	)

	return result, nil
}

// Models returns all registered model definitions.
func (m *Manager) Models() []ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	models := make([]ModelInfo, 0, len(m.modelInfo))
	for _, info := range m.modelInfo {
		if info != nil {
			models = append(models, *info)
		}
	}
	return models
}

// Close releases all backend resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for provider, backend := range m.backends {
		if err := backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", provider, err))
		}
	}
	m.backends = make(map[Provider]Backend)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ListModels returns all registered models.
func (m *Manager) ListModels() []Model {
	m.mu.RLock()
	defer m.mu.RUnlock()

	models := make([]Model, 0, len(m.modelMappings))
	for model := range m.modelMappings {
		models = append(models, model)
	}
	return models
}

// GetModelProvider returns the provider for a model.
func (m *Manager) GetModelProvider(model Model) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mapping, ok := m.modelMappings[model]
	if !ok {
		return "", false
	}
	return mapping.Provider, true
}

// GetModelInfo returns model information for a specific model.
func (m *Manager) GetModelInfo(model Model) (*ModelInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.modelInfo[model]
	return info, ok
}

func (m *Manager) getLogger() *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger
}

// checkRateLimit checks rate limits for a model and optionally waits.
func (m *Manager) checkRateLimit(ctx context.Context, model Model, wait bool, maxWait time.Duration, tokens int) error {
	const (
		tokenBuffer = 100
	)

	limiter, err := m.rateLimiters.Get(string(model))
	if err != nil {
		// No limiter registered for this model.
		return nil
	}

	estimatedTokens := tokens + tokenBuffer

	if wait {
		if err := limiter.WaitAndConsume(ctx, estimatedTokens, maxWait); err != nil {
			return &RateLimitError{
				RetryAfter: limiter.TimeUntilAvailable(estimatedTokens),
				LimitType:  "tokens",
				Model:      string(model),
				Err:        err,
			}
		}
		return nil
	}

	if !limiter.TryConsume(estimatedTokens) {
		return &RateLimitError{
			RetryAfter: limiter.TimeUntilAvailable(estimatedTokens),
			LimitType:  "tokens",
			Model:      string(model),
		}
	}

	return nil
}

// resolveModel determines the actual model to use.
func (m *Manager) resolveModel(model Model, image bool) Model {
	if model != "" {
		return model
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if image {
		return m.defaultImageModel
	}
	return m.defaultModel
}

func (m *Manager) lookup(model Model) (ModelMapping, *ModelInfo, Backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mapping, ok := m.modelMappings[model]
	if !ok {
		return ModelMapping{}, nil, nil, fmt.Errorf("%w: %s", ErrModelNotRegistered, model)
	}

	backend, ok := m.backends[mapping.Provider]
	if !ok {
		return ModelMapping{}, nil, nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, mapping.Provider)
	}
	return mapping, m.modelInfo[model], backend, nil
}

// getConverserForConfig returns the backend's converser and a config copy
// carrying the provider's model id and protocol.
func (m *Manager) getConverserForConfig(model Model, cfg *InvocationConfig) (Converser, *InvocationConfig, *ModelInfo, error) {
	mapping, info, backend, err := m.lookup(model)
	if err != nil {
		return nil, nil, nil, err
	}

	conv, ok := backend.(Converser)
	if !ok || mapping.Protocol == "" {
		return nil, nil, nil, fmt.Errorf("%w: %s does not support conversation", ErrInvalidInput, model)
	}

	configCopy := *cfg
	configCopy.Model = Model(mapping.ActualModelName)
	if configCopy.Protocol == "" {
		configCopy.Protocol = mapping.Protocol
	}
	if configCopy.MaxOutputTokens == 0 {
		configCopy.MaxOutputTokens = DefaultMaxOutputTokens
		if info != nil && info.MaxOutputTokens > 0 {
			configCopy.MaxOutputTokens = info.MaxOutputTokens
		}
	}

	return conv, &configCopy, info, nil
}

// getGeneratorForConfig returns the backend's image generator and an adjusted config.
func (m *Manager) getGeneratorForConfig(model Model, cfg *ImageConfig) (ImageGenerator, *ImageConfig, error) {
	mapping, _, backend, err := m.lookup(model)
	if err != nil {
		return nil, nil, err
	}

	gen, ok := backend.(ImageGenerator)
	if !ok || mapping.ImageProtocol == "" {
		return nil, nil, fmt.Errorf("%w: %s does not support image generation", ErrInvalidInput, model)
	}

	configCopy := *cfg
	configCopy.Model = Model(mapping.ActualModelName)
	configCopy.Protocol = mapping.ImageProtocol

	return gen, &configCopy, nil
}

func turnsHaveImages(history []Turn, newTurn Turn) bool {
	if newTurn.HasImages() {
		return true
	}
	for _, t := range history {
		if t.HasImages() {
			return true
		}
	}
	return false
}
