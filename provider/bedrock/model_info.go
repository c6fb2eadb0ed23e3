package bedrock

import "github.com/mhpenta/converse"

// Bedrock model names are the model ids themselves, so callers can pass
// converse.ModelClaude3Sonnet and friends straight to the Manager.

// Claude3SonnetInfo is the default multimodal chat model.
var Claude3SonnetInfo = converse.ModelInfo{
	Name:         string(converse.ModelClaude3Sonnet),
	Provider:     converse.ProviderBedrock,
	APIModelName: string(converse.ModelClaude3Sonnet),
	Protocol:     converse.ProtocolMessages,

	Capabilities: converse.ModelCapabilities{
		SupportsConversation: true,
		SupportsImageInput:   true,
		SupportsSystemPrompt: true,
		MaxInputImages:       20,
	},

	ContextLength:   200000,
	MaxOutputTokens: 4096,

	RateLimits: converse.RateLimits{
		TokensPerMinute:   400000,
		RequestsPerMinute: 500,
	},

	Pricing: converse.Pricing{
		InputTokensPerMillion:  3.00,
		OutputTokensPerMillion: 15.00,
	},
}

var Claude3HaikuInfo = converse.ModelInfo{
	Name:         string(converse.ModelClaude3Haiku),
	Provider:     converse.ProviderBedrock,
	APIModelName: string(converse.ModelClaude3Haiku),
	Protocol:     converse.ProtocolMessages,

	Capabilities: converse.ModelCapabilities{
		SupportsConversation: true,
		SupportsImageInput:   true,
		SupportsSystemPrompt: true,
		MaxInputImages:       20,
	},

	ContextLength:   200000,
	MaxOutputTokens: 4096,

	RateLimits: converse.RateLimits{
		TokensPerMinute:   2000000,
		RequestsPerMinute: 1000,
	},

	Pricing: converse.Pricing{
		InputTokensPerMillion:  0.25,
		OutputTokensPerMillion: 1.25,
	},
}

// ClaudeV2Info uses the legacy Human/Assistant completion prompt.
var ClaudeV2Info = converse.ModelInfo{
	Name:         string(converse.ModelClaudeV2),
	Provider:     converse.ProviderBedrock,
	APIModelName: string(converse.ModelClaudeV2),
	Protocol:     converse.ProtocolTextCompletion,

	Capabilities: converse.ModelCapabilities{
		SupportsConversation: true,
		SupportsSystemPrompt: true,
	},

	ContextLength:   100000,
	MaxOutputTokens: 4096,

	RateLimits: converse.RateLimits{
		TokensPerMinute:   200000,
		RequestsPerMinute: 100,
	},

	Pricing: converse.Pricing{
		InputTokensPerMillion:  8.00,
		OutputTokensPerMillion: 24.00,
	},
}

var CohereCommandInfo = converse.ModelInfo{
	Name:         string(converse.ModelCohereCommand),
	Provider:     converse.ProviderBedrock,
	APIModelName: string(converse.ModelCohereCommand),
	Protocol:     converse.ProtocolCohereGenerate,

	Capabilities: converse.ModelCapabilities{
		SupportsConversation: true,
	},

	ContextLength:   4000,
	MaxOutputTokens: 4000,

	RateLimits: converse.RateLimits{
		TokensPerMinute:   300000,
		RequestsPerMinute: 400,
	},

	Pricing: converse.Pricing{
		InputTokensPerMillion:  1.50,
		OutputTokensPerMillion: 2.00,
	},
}

var AI21J2MidInfo = converse.ModelInfo{
	Name:         string(converse.ModelAI21J2Mid),
	Provider:     converse.ProviderBedrock,
	APIModelName: string(converse.ModelAI21J2Mid),
	Protocol:     converse.ProtocolAI21Complete,

	Capabilities: converse.ModelCapabilities{
		SupportsConversation: true,
	},

	ContextLength:   8191,
	MaxOutputTokens: 8191,

	RateLimits: converse.RateLimits{
		TokensPerMinute:   300000,
		RequestsPerMinute: 400,
	},

	Pricing: converse.Pricing{
		InputTokensPerMillion:  12.50,
		OutputTokensPerMillion: 12.50,
	},
}

// StableDiffusionXLInfo is the default image model.
var StableDiffusionXLInfo = converse.ModelInfo{
	Name:          string(converse.ModelStableDiffusionXL),
	Provider:      converse.ProviderBedrock,
	APIModelName:  string(converse.ModelStableDiffusionXL),
	ImageProtocol: converse.ImageProtocolStabilitySDXL,

	Capabilities: converse.ModelCapabilities{
		SupportsTextToImage: true,
		MaxOutputImages:     1,
	},

	RateLimits: converse.RateLimits{
		RequestsPerMinute: 60,
	},

	Pricing: converse.Pricing{
		ImageGenerationCost: 0.04,
	},
}

var TitanImageInfo = converse.ModelInfo{
	Name:          string(converse.ModelTitanImage),
	Provider:      converse.ProviderBedrock,
	APIModelName:  string(converse.ModelTitanImage),
	ImageProtocol: converse.ImageProtocolTitanImage,

	Capabilities: converse.ModelCapabilities{
		SupportsTextToImage: true,
		MaxOutputImages:     5,
	},

	RateLimits: converse.RateLimits{
		RequestsPerMinute: 60,
	},

	Pricing: converse.Pricing{
		ImageGenerationCost: 0.01,
	},
}

// DefaultModels lists every model the Bedrock backend advertises.
func DefaultModels() []converse.ModelInfo {
	return []converse.ModelInfo{
		Claude3SonnetInfo,
		Claude3HaikuInfo,
		ClaudeV2Info,
		CohereCommandInfo,
		AI21J2MidInfo,
		StableDiffusionXLInfo,
		TitanImageInfo,
	}
}
