package gemini

import "github.com/mhpenta/converse"

// FlashInfo is the model info for Gemini 2.5 Flash, the default chat model.
//
// Flash accepts interleaved text and images in user turns and a separate
// system instruction.
var FlashInfo = converse.ModelInfo{
	Name:         "gemini-flash",
	Provider:     converse.ProviderGeminiAPI,
	APIModelName: APIModelFlash,
	Protocol:     converse.ProtocolMessages,

	Capabilities: converse.ModelCapabilities{
		SupportsConversation: true,
		SupportsImageInput:   true,
		SupportsSystemPrompt: true,
		MaxInputImages:       3000,
	},

	ContextLength:   1048576, // 1M tokens
	MaxOutputTokens: 65536,

	RateLimits: converse.RateLimits{
		TokensPerMinute:   1000000,
		RequestsPerMinute: 1000,
	},

	Pricing: converse.Pricing{
		InputTokensPerMillion:  0.30,
		OutputTokensPerMillion: 2.50,
	},
}

// NanoBanana1Info is the model info for Gemini 2.5 Flash Image (nano-banana).
// It generates images natively and can also hold a conversation.
var NanoBanana1Info = converse.ModelInfo{
	Name:          "nano-banana-1",
	Provider:      converse.ProviderGeminiAPI,
	APIModelName:  APIModelNanoBanana1,
	Protocol:      converse.ProtocolMessages,
	ImageProtocol: converse.ImageProtocolGemini,

	Capabilities: converse.ModelCapabilities{
		SupportsConversation: true,
		SupportsImageInput:   true,
		SupportsTextToImage:  true,
		MaxInputImages:       14, // Practical limit
		MaxOutputImages:      4,
	},

	ContextLength: 32768,

	RateLimits: converse.RateLimits{
		TokensPerMinute:   4000000,
		RequestsPerMinute: 500, // ~500 RPM for Tier 1
	},

	// Image output is priced at ~$30/million tokens ($0.039 per 1024x1024 image).
	Pricing: converse.Pricing{
		InputTokensPerMillion:  0.30,
		OutputTokensPerMillion: 2.50,
		ImageGenerationCost:    0.039,
	},
}
