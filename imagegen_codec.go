package converse

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ImageCodec translates between an image request and one provider protocol.
type ImageCodec interface {
	Protocol() ImageProtocol
	EncodeRequest(prompt string, cfg *ImageConfig) ([]byte, error)
	DecodeResponse(body []byte) (*ImageResult, error)
}

var imageCodecs = map[ImageProtocol]ImageCodec{
	ImageProtocolStabilitySDXL: StabilityCodec{},
	ImageProtocolTitanImage:    TitanImageCodec{},
}

// ImageCodecFor returns the codec for an image protocol.
func ImageCodecFor(p ImageProtocol) (ImageCodec, error) {
	if p == "" {
		p = ImageProtocolStabilitySDXL
	}
	c, ok := imageCodecs[p]
	if !ok {
		return nil, fmt.Errorf("%w: unknown image protocol %q", ErrInvalidInput, p)
	}
	return c, nil
}

// StabilityCodec implements the Stability SDXL text-to-image protocol.
type StabilityCodec struct{}

func (StabilityCodec) Protocol() ImageProtocol { return ImageProtocolStabilitySDXL }

type stabilityPrompt struct {
	Text   string   `json:"text"`
	Weight *float64 `json:"weight,omitempty"`
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	CFGScale    float64           `json:"cfg_scale"`
	Seed        int               `json:"seed"`
	Steps       int               `json:"steps"`
	StylePreset string            `json:"style_preset,omitempty"`
}

type stabilityResponse struct {
	Result    string `json:"result"`
	Artifacts []struct {
		Base64       string `json:"base64"`
		Seed         int    `json:"seed"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

func (StabilityCodec) EncodeRequest(prompt string, cfg *ImageConfig) ([]byte, error) {
	prompts := []stabilityPrompt{{Text: prompt}}
	if cfg.NegativePrompt != "" {
		weight := -1.0
		prompts = append(prompts, stabilityPrompt{Text: cfg.NegativePrompt, Weight: &weight})
	}

	style := cfg.StylePreset
	if style == StylePresetNone {
		style = ""
	}

	return json.Marshal(stabilityRequest{
		TextPrompts: prompts,
		CFGScale:    cfg.CFGScale,
		Seed:        cfg.Seed,
		Steps:       cfg.Steps,
		StylePreset: style,
	})
}

func (StabilityCodec) DecodeResponse(body []byte) (*ImageResult, error) {
	var resp stabilityResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Artifacts) == 0 {
		return nil, NewMalformedResponse("response has no artifacts", nil)
	}

	result := &ImageResult{Images: make([]GeneratedImage, 0, len(resp.Artifacts))}
	for i, a := range resp.Artifacts {
		data, err := base64.StdEncoding.DecodeString(a.Base64)
		if err != nil {
			return nil, NewMalformedResponse(fmt.Sprintf("artifact %d is not valid base64", i), err)
		}
		result.Images = append(result.Images, GeneratedImage{
			Data:     data,
			MIMEType: "image/png",
			Index:    i,
			Seed:     a.Seed,
		})
	}
	result.UsageMetadata = &UsageMetadata{ImageCount: len(result.Images)}
	return result, nil
}

// TitanImageCodec implements the Titan image generator TEXT_IMAGE task.
type TitanImageCodec struct{}

func (TitanImageCodec) Protocol() ImageProtocol { return ImageProtocolTitanImage }

type titanRequest struct {
	TaskType              string           `json:"taskType"`
	TextToImageParams     titanTextParams  `json:"textToImageParams"`
	ImageGenerationConfig titanImageConfig `json:"imageGenerationConfig"`
}

type titanTextParams struct {
	Text         string `json:"text"`
	NegativeText string `json:"negativeText,omitempty"`
}

type titanImageConfig struct {
	NumberOfImages int     `json:"numberOfImages"`
	Quality        string  `json:"quality"`
	CFGScale       float64 `json:"cfgScale"`
	Height         int     `json:"height"`
	Width          int     `json:"width"`
	Seed           int     `json:"seed"`
}

type titanResponse struct {
	Images []string `json:"images"`
	Error  *string  `json:"error"`
}

func (TitanImageCodec) EncodeRequest(prompt string, cfg *ImageConfig) ([]byte, error) {
	n := cfg.NumberOfImages
	if n == 0 {
		n = 1
	}
	quality := cfg.Quality
	if quality == "" {
		quality = "standard"
	}
	return json.Marshal(titanRequest{
		TaskType: "TEXT_IMAGE",
		TextToImageParams: titanTextParams{
			Text:         prompt,
			NegativeText: cfg.NegativePrompt,
		},
		ImageGenerationConfig: titanImageConfig{
			NumberOfImages: n,
			Quality:        quality,
			CFGScale:       cfg.CFGScale,
			Height:         cfg.Height,
			Width:          cfg.Width,
			Seed:           cfg.Seed,
		},
	})
}

func (TitanImageCodec) DecodeResponse(body []byte) (*ImageResult, error) {
	var resp titanResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil && *resp.Error != "" {
		return nil, NewRemoteFailure(*resp.Error, 0, nil)
	}
	if len(resp.Images) == 0 {
		return nil, NewMalformedResponse("response has no images", nil)
	}

	result := &ImageResult{Images: make([]GeneratedImage, 0, len(resp.Images))}
	for i, b64 := range resp.Images {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, NewMalformedResponse(fmt.Sprintf("image %d is not valid base64", i), err)
		}
		result.Images = append(result.Images, GeneratedImage{
			Data:     data,
			MIMEType: "image/png",
			Index:    i,
		})
	}
	result.UsageMetadata = &UsageMetadata{ImageCount: len(result.Images)}
	return result, nil
}
