// Package gemini provides a Converser and ImageGenerator using Google's Gemini API.
//
// This provider uses the Gemini API backend via the official Go SDK:
// https://github.com/googleapis/go-genai
//
// Unlike the Bedrock and HTTP backends, Gemini is reached through the SDK's
// native content types rather than a converse Codec.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mhpenta/converse"
	"google.golang.org/genai"
)

// Model name constants - the actual API model names.
const (
	// APIModelFlash is the multimodal chat model.
	APIModelFlash = "gemini-2.5-flash"

	// APIModelNanoBanana1 is the actual API name for Gemini 2.5 Flash Image
	APIModelNanoBanana1 = "gemini-2.5-flash-image"
)

// GeminiProvider implements Converser and ImageGenerator over genai.
type GeminiProvider struct {
	client         *genai.Client
	safetySettings []*genai.SafetySetting
	logger         *slog.Logger
	mu             sync.RWMutex
}

// Ensure GeminiProvider implements the interfaces.
var (
	_ converse.Backend        = (*GeminiProvider)(nil)
	_ converse.Converser      = (*GeminiProvider)(nil)
	_ converse.ImageGenerator = (*GeminiProvider)(nil)
)

// New creates a new GeminiProvider from a ProviderConfig.
func New(ctx context.Context, config *converse.ProviderConfig) (*GeminiProvider, error) {
	if config == nil {
		config = &converse.ProviderConfig{}
	}

	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	}

	if config.APIKey != "" {
		clientCfg.APIKey = config.APIKey
	}
	// If APIKey is empty, the SDK will try GOOGLE_API_KEY or GEMINI_API_KEY env vars

	if config.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		logger: slog.Default(),
	}, nil
}

// NewWithAPIKey creates a provider with an API key for Gemini API.
func NewWithAPIKey(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	return New(ctx, &converse.ProviderConfig{
		Provider: converse.ProviderGeminiAPI,
		APIKey:   apiKey,
	})
}

// SetLogger sets the provider's logger.
func (g *GeminiProvider) SetLogger(logger *slog.Logger) *GeminiProvider {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logger = logger
	return g
}

// SetSafetySettings configures safety settings applied to every request.
func (g *GeminiProvider) SetSafetySettings(settings []*genai.SafetySetting) *GeminiProvider {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.safetySettings = settings
	return g
}

// Converse sends history followed by newTurn and returns the first
// candidate's text. history is never modified.
func (g *GeminiProvider) Converse(ctx context.Context, history []converse.Turn, newTurn converse.Turn, cfg *converse.InvocationConfig) (*converse.InferenceResponse, error) {
	if cfg == nil {
		cfg = converse.DefaultConfigWithModel(APIModelFlash)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := converse.ValidateTurns(history); err != nil {
		return nil, err
	}
	if err := converse.ValidateTurn(newTurn); err != nil {
		return nil, err
	}

	modelName := g.resolveModel(cfg.Model, APIModelFlash)

	turns := make([]converse.Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, newTurn)

	system, contents, err := toContents(cfg.SystemInstruction, turns)
	if err != nil {
		return nil, err
	}
	genConfig := g.buildConverseConfig(cfg, system)

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, modelName, contents, genConfig)
	if err != nil {
		return nil, classifyError(ctx, err, modelName)
	}

	resp, err := parseConverseResult(result)
	if err != nil {
		return nil, err
	}
	if resp.Model == "" {
		resp.Model = modelName
	}

	g.log().Debug("gemini conversation complete",
		"model", modelName,
		"turns", len(contents),
		"duration_ms", time.Since(start).Milliseconds())

	return resp, nil
}

// Generate creates images from a text prompt.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string, config *converse.ImageConfig) (*converse.ImageResult, error) {
	if err := converse.ValidatePrompt(prompt); err != nil {
		return nil, err
	}

	if config == nil {
		config = &converse.ImageConfig{Model: APIModelNanoBanana1, Protocol: converse.ImageProtocolGemini}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	modelName := g.resolveModel(config.Model, APIModelNanoBanana1)

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	result, err := g.client.Models.GenerateContent(ctx, modelName, contents, g.buildImageConfig(config))
	if err != nil {
		return nil, classifyError(ctx, err, modelName)
	}

	return parseImageResult(result)
}

// Models returns the model definitions supported by this provider.
// The first model (Flash) is the default chat model.
func (g *GeminiProvider) Models() []converse.ModelInfo {
	return []converse.ModelInfo{
		FlashInfo,
		NanoBanana1Info,
	}
}

// Close releases any resources held by the provider.
func (g *GeminiProvider) Close() error {
	// The genai.Client doesn't require explicit closing in the current SDK
	return nil
}

func (g *GeminiProvider) log() *slog.Logger {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.logger
}

// resolveModel determines which API model name to use.
func (g *GeminiProvider) resolveModel(model converse.Model, fallback string) string {
	if model != "" {
		return string(model)
	}
	return fallback
}

// buildConverseConfig converts an InvocationConfig to Gemini's GenerateContentConfig.
func (g *GeminiProvider) buildConverseConfig(cfg *converse.InvocationConfig, system string) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		StopSequences: cfg.StopSequences,
	}

	if cfg.MaxOutputTokens > 0 {
		genConfig.MaxOutputTokens = int32(cfg.MaxOutputTokens)
	}
	if cfg.TopK != nil {
		genConfig.TopK = genai.Ptr(float32(*cfg.TopK))
	}
	if system != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	g.mu.RLock()
	genConfig.SafetySettings = g.safetySettings
	g.mu.RUnlock()

	return genConfig
}

// buildImageConfig requests image output alongside text.
func (g *GeminiProvider) buildImageConfig(config *converse.ImageConfig) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		// Enable image output
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	if config.Seed != 0 {
		genConfig.Seed = genai.Ptr(int32(config.Seed))
	}
	if config.NumberOfImages > 1 {
		genConfig.CandidateCount = int32(config.NumberOfImages)
	}

	g.mu.RLock()
	genConfig.SafetySettings = g.safetySettings
	g.mu.RUnlock()

	return genConfig
}

// toContents converts turns to genai contents. System turns and the
// configured instruction are hoisted into the returned system text, and the
// assistant role becomes Gemini's "model" role.
func toContents(instruction string, turns []converse.Turn) (string, []*genai.Content, error) {
	var system []string
	if strings.TrimSpace(instruction) != "" {
		system = append(system, instruction)
	}

	contents := make([]*genai.Content, 0, len(turns))
	for i, turn := range turns {
		if turn.Role == converse.RoleSystem {
			if text := turn.Text(); strings.TrimSpace(text) != "" {
				system = append(system, text)
			}
			continue
		}

		role := genai.RoleUser
		if turn.Role == converse.RoleAssistant {
			role = genai.RoleModel
		}

		parts := make([]*genai.Part, 0, len(turn.Content))
		for _, block := range turn.Content {
			switch b := block.(type) {
			case converse.TextBlock:
				if strings.TrimSpace(b.Text) == "" {
					continue
				}
				parts = append(parts, genai.NewPartFromText(b.Text))
			case converse.ImageBlock:
				data, err := b.Bytes()
				if err != nil {
					return "", nil, fmt.Errorf("turn %d: %w", i, err)
				}
				parts = append(parts, genai.NewPartFromBytes(data, b.MediaType()))
			default:
				return "", nil, fmt.Errorf("turn %d: %w", i, converse.ErrUnsupportedBlock)
			}
		}
		if len(parts) == 0 {
			return "", nil, fmt.Errorf("turn %d: %w", i, converse.ErrEmptyTurn)
		}

		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	return strings.Join(system, "\n\n"), contents, nil
}

// parseConverseResult takes the first candidate's non-thought text.
func parseConverseResult(result *genai.GenerateContentResponse) (*converse.InferenceResponse, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, converse.NewMalformedResponse("no candidates in response", nil)
	}

	candidate := result.Candidates[0]
	if candidate.Content == nil {
		return nil, converse.NewMalformedResponse("candidate has no content", nil)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return nil, converse.NewMalformedResponse("candidate has no text part", nil)
	}

	resp := &converse.InferenceResponse{
		Text:       text.String(),
		StopReason: string(candidate.FinishReason),
		Model:      result.ModelVersion,
	}
	if raw, err := json.Marshal(result); err == nil {
		resp.Raw = raw
	}
	if result.UsageMetadata != nil {
		resp.Usage = &converse.UsageMetadata{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CandidatesTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}
	return resp, nil
}

// parseImageResult converts Gemini response to an ImageResult.
func parseImageResult(result *genai.GenerateContentResponse) (*converse.ImageResult, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, converse.NewMalformedResponse("empty response from model", nil)
	}

	genResult := &converse.ImageResult{
		Images: make([]converse.GeneratedImage, 0),
	}

	imageIndex := 0
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}

			if part.Text != "" {
				genResult.Text += part.Text
			}

			if part.InlineData != nil && part.InlineData.Data != nil {
				genResult.Images = append(genResult.Images, converse.GeneratedImage{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
					Index:    imageIndex,
				})
				imageIndex++
			}
		}
	}

	if len(genResult.Images) == 0 {
		return nil, converse.NewMalformedResponse("response contained no images", nil)
	}

	if result.UsageMetadata != nil {
		genResult.UsageMetadata = &converse.UsageMetadata{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CandidatesTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
			ImageCount:       len(genResult.Images),
		}
	}

	return genResult, nil
}

// classifyError maps SDK errors onto the converse error taxonomy.
func classifyError(ctx context.Context, err error, model string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return converse.NewTimeout(err)
	}
	if rlErr := checkRateLimitError(err, model); rlErr != nil {
		return rlErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return converse.NewRemoteFailure(apiErr.Message, apiErr.Code, err)
	}
	return converse.NewRemoteFailure(err.Error(), 0, err)
}

// checkRateLimitError wraps Gemini rate limit errors in a RateLimitError.
// It returns nil for any other error.
func checkRateLimitError(err error, model string) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}

	if apiErr.Code != 429 && apiErr.Status != "RESOURCE_EXHAUSTED" {
		return nil
	}

	return &converse.RateLimitError{
		RetryAfter: 60 * time.Second, // Default; API doesn't reliably provide Retry-After
		LimitType:  "requests",
		Model:      model,
		Err:        err,
	}
}
