package converse

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ImageProtocol selects the request/response shape for image generation.
type ImageProtocol string

const (
	ImageProtocolStabilitySDXL ImageProtocol = "stability-sdxl"
	ImageProtocolTitanImage    ImageProtocol = "titan-image"

	// ImageProtocolGemini is served natively by provider/gemini.
	ImageProtocolGemini ImageProtocol = "gemini-image"
)

func (p ImageProtocol) String() string {
	return string(p)
}

const (
	ModelStableDiffusionXL Model = "stability.stable-diffusion-xl"
	ModelTitanImage        Model = "amazon.titan-image-generator-v1"

	ModelDefaultImage = ModelStableDiffusionXL
)

// StylePresetNone disables the Stability style preset.
const StylePresetNone = "None"

// StylePresets lists the Stability SDXL style presets.
var StylePresets = []string{
	"3d-model",
	"analog-film",
	"anime",
	"cinematic",
	"comic-book",
	"digital-art",
	"enhance",
	"fantasy-art",
	"isometric",
	"line-art",
	"low-poly",
	"modeling-compound",
	"neon-punk",
	"origami",
	"photographic",
	"pixel-art",
	"tile-texture",
}

// ImageConfig holds configuration options for image generation.
type ImageConfig struct {
	// Model to use for generation (if empty, uses manager's default)
	Model Model

	// Protocol used to encode the request (empty means stability-sdxl)
	Protocol ImageProtocol

	// NumberOfImages to generate (titan only; SDXL returns one)
	NumberOfImages int

	// CFGScale controls how closely the image follows the prompt
	CFGScale float64

	Seed  int
	Steps int

	// StylePreset is an SDXL style; empty or "None" means no preset
	StylePreset string

	Width   int
	Height  int
	Quality string

	// NegativePrompt describes what should not appear
	NegativePrompt string

	// Timeout bounds the remote call. Zero means no extra deadline.
	Timeout time.Duration

	// Metadata to attach to requests (for logging/tracking)
	Metadata map[string]string

	// WaitOnRateLimit, if true, causes the Manager to wait when rate limited.
	WaitOnRateLimit bool

	// MaxWaitDuration is the maximum time to wait when WaitOnRateLimit is true.
	MaxWaitDuration time.Duration
}

// DefaultImageConfig returns SDXL settings: one 512x512 image, cfg 10, 50 steps.
func DefaultImageConfig() *ImageConfig {
	return &ImageConfig{
		Model:          ModelDefaultImage,
		Protocol:       ImageProtocolStabilitySDXL,
		NumberOfImages: 1,
		CFGScale:       10,
		Seed:           0,
		Steps:          50,
		StylePreset:    StylePresetNone,
		Width:          512,
		Height:         512,
		Quality:        "standard",
	}
}

// WithModel returns a copy of the config with the specified model.
func (c *ImageConfig) WithModel(model Model) *ImageConfig {
	if c == nil {
		cfg := DefaultImageConfig()
		cfg.Model = model
		return cfg
	}
	cX := *c
	cX.Model = model
	return &cX
}

func (c *ImageConfig) protocol() ImageProtocol {
	if c.Protocol == "" {
		return ImageProtocolStabilitySDXL
	}
	return c.Protocol
}

// Validate checks the generation parameters.
func (c *ImageConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidInput)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidInput)
	}
	if c.NumberOfImages < 0 || c.Steps < 0 || c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("%w: image dimensions and counts must not be negative", ErrInvalidInput)
	}
	return ValidateStylePreset(c.StylePreset)
}

// GeneratedImage represents a single generated image result.
type GeneratedImage struct {
	// Data contains the raw image bytes
	Data []byte

	// MIMEType of the generated image
	MIMEType string

	// Index is the position in a multi-image result (0-indexed)
	Index int

	// Seed reported by the provider, when available
	Seed int
}

// Block returns the image as a content block, ready to send in a turn.
func (g GeneratedImage) Block() ImageBlock {
	return NewImageBlock(g.Data, g.MIMEType)
}

// ImageResult holds the complete result of an image generation request.
type ImageResult struct {
	// Images contains all generated images
	Images []GeneratedImage

	// Text contains any text response from the model
	Text string

	// UsageMetadata contains token/billing information
	UsageMetadata *UsageMetadata
}

// ImageClient generates images through an Invoker using the codec selected
// by the config's protocol.
type ImageClient struct {
	invoker Invoker
	logger  *slog.Logger
}

// NewImageClient creates an ImageClient over the given transport.
func NewImageClient(invoker Invoker, opts ...ClientOption) *ImageClient {
	c := NewClient(invoker, opts...)
	return &ImageClient{invoker: c.invoker, logger: c.logger}
}

// Generate creates images from a text prompt.
func (c *ImageClient) Generate(ctx context.Context, prompt string, cfg *ImageConfig) (*ImageResult, error) {
	if cfg == nil {
		cfg = DefaultImageConfig()
	}
	if err := ValidatePrompt(prompt); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := ImageCodecFor(cfg.protocol())
	if err != nil {
		return nil, err
	}
	body, err := codec.EncodeRequest(prompt, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.invoker.Invoke(ctx, cfg.Model.String(), body)
	if err != nil {
		return nil, classifyInvokeError(ctx, err)
	}

	result, err := codec.DecodeResponse(raw)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("image generation complete",
		"model", cfg.Model.String(),
		"duration_ms", time.Since(start).Milliseconds(),
		"image_count", len(result.Images))

	return result, nil
}
