package converse

import "context"

// Converser performs one stateless conversational inference call.
// It never mutates history; the caller owns it and appends the exchange.
type Converser interface {
	Converse(ctx context.Context, history []Turn, newTurn Turn, cfg *InvocationConfig) (*InferenceResponse, error)
}

// Invoker sends a serialized request body to a model endpoint and returns
// the raw response body. Implementations map transport and service errors
// to *InferenceError or *RateLimitError.
type Invoker interface {
	Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error)
}

// ImageGenerator creates images from a text prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, cfg *ImageConfig) (*ImageResult, error)
}

// Backend is a provider registered with the Manager.
//
// The first model returned by Models() is considered the default model.
// A backend must implement Converser, ImageGenerator, or both.
type Backend interface {
	// Models returns the model definitions supported by this provider.
	Models() []ModelInfo

	// Close releases any resources held by the backend.
	Close() error
}
