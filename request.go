package converse

import "encoding/json"

// InferenceRequest is built fresh for every call and discarded afterwards.
type InferenceRequest struct {
	Model             string
	Protocol          Protocol
	MaxOutputTokens   int
	Temperature       *float32
	TopK              *int
	TopP              *float32
	StopSequences     []string
	SystemInstruction string

	// Turns is history followed by the new turn. It never aliases the
	// caller's history backing array.
	Turns []Turn
}

// InferenceResponse is the normalized reply.
type InferenceResponse struct {
	// Text is the model's reply text
	Text string

	// Raw is the unparsed response body, for diagnostics
	Raw json.RawMessage

	StopReason string
	Model      string

	// Usage contains token information when the provider reports it
	Usage *UsageMetadata
}

// UsageMetadata contains usage information for billing and monitoring.
type UsageMetadata struct {
	PromptTokens     int
	CandidatesTokens int
	TotalTokens      int
	ImageCount       int
}

// BuildRequest assembles a request from history and the new turn.
func BuildRequest(history []Turn, newTurn Turn, cfg *InvocationConfig) *InferenceRequest {
	turns := make([]Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, newTurn)

	var stops []string
	if len(cfg.StopSequences) > 0 {
		stops = append([]string(nil), cfg.StopSequences...)
	}

	return &InferenceRequest{
		Model:             cfg.Model.String(),
		Protocol:          cfg.protocol(),
		MaxOutputTokens:   cfg.MaxOutputTokens,
		Temperature:       cfg.Temperature,
		TopK:              cfg.TopK,
		TopP:              cfg.TopP,
		StopSequences:     stops,
		SystemInstruction: cfg.SystemInstruction,
		Turns:             turns,
	}
}
