package converse

import (
	"context"
)

// MockBackend is a mock Backend that also implements Converser and ImageGenerator.
type MockBackend struct {
	ConverseFunc func(ctx context.Context, history []Turn, newTurn Turn, cfg *InvocationConfig) (*InferenceResponse, error)
	GenerateFunc func(ctx context.Context, prompt string, cfg *ImageConfig) (*ImageResult, error)
	ModelsFunc   func() []ModelInfo
	CloseFunc    func() error
}

func (m *MockBackend) Converse(ctx context.Context, history []Turn, newTurn Turn, cfg *InvocationConfig) (*InferenceResponse, error) {
	if m.ConverseFunc != nil {
		return m.ConverseFunc(ctx, history, newTurn, cfg)
	}
	return &InferenceResponse{Text: "ok"}, nil
}

func (m *MockBackend) Generate(ctx context.Context, prompt string, cfg *ImageConfig) (*ImageResult, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, cfg)
	}
	return &ImageResult{}, nil
}

func (m *MockBackend) Models() []ModelInfo {
	if m.ModelsFunc != nil {
		return m.ModelsFunc()
	}
	return []ModelInfo{}
}

func (m *MockBackend) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockInvoker is a mock Invoker that records the last request.
type MockInvoker struct {
	InvokeFunc func(ctx context.Context, modelID string, body []byte) ([]byte, error)

	Calls     int
	LastModel string
	LastBody  []byte
}

func (m *MockInvoker) Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	m.Calls++
	m.LastModel = modelID
	m.LastBody = body
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, modelID, body)
	}
	return []byte(`{"content":[{"type":"text","text":"ok"}]}`), nil
}

// replyWith returns an invoker that always answers with a messages reply.
func replyWith(text string) *MockInvoker {
	return &MockInvoker{
		InvokeFunc: func(ctx context.Context, modelID string, body []byte) ([]byte, error) {
			return []byte(`{"content":[{"type":"text","text":"` + text + `"}],"stop_reason":"end_turn"}`), nil
		},
	}
}
