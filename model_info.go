package converse

// ModelCapabilities describes what features a model supports.
type ModelCapabilities struct {
	// Conversation modes
	SupportsConversation bool // Multi-turn chat through Converse
	SupportsImageInput   bool // Image blocks in user turns
	SupportsSystemPrompt bool

	// Generation modes
	SupportsTextToImage bool

	// Limits
	MaxInputImages  int // Max image blocks per turn
	MaxOutputImages int // Max images generated per request
}

// RateLimits defines rate limiting parameters for a model.
type RateLimits struct {
	TokensPerMinute   int
	RequestsPerMinute int
}

// Pricing defines cost information for a model.
type Pricing struct {
	InputTokensPerMillion  float64
	OutputTokensPerMillion float64
	ImageGenerationCost    float64 // Per image (if applicable)
}

// ModelInfo contains complete metadata for a model.
type ModelInfo struct {
	// Identity
	Name         string   // Public model name (e.g., "claude-3-sonnet")
	Provider     Provider // Which provider serves this model
	APIModelName string   // Actual API name (e.g., "anthropic.claude-3-sonnet-20240229-v1:0")

	// Protocol used for Converse calls (empty for image-only models)
	Protocol Protocol

	// ImageProtocol used for Generate calls (empty for chat-only models)
	ImageProtocol ImageProtocol

	// Capabilities
	Capabilities ModelCapabilities

	// Constraints
	ContextLength   int
	MaxOutputTokens int

	// Rate Limits
	RateLimits RateLimits

	// Pricing
	Pricing Pricing
}
