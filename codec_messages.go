package converse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnthropicVersion is the Bedrock messages API version tag.
const AnthropicVersion = "bedrock-2023-05-31"

// MessagesCodec implements the structured multi-turn messages protocol.
type MessagesCodec struct{}

func (MessagesCodec) Protocol() Protocol { return ProtocolMessages }

// Field order is the wire order.
type messagesRequest struct {
	AnthropicVersion string            `json:"anthropic_version"`
	MaxTokens        int               `json:"max_tokens"`
	System           string            `json:"system,omitempty"`
	Messages         []messagesMessage `json:"messages"`
	Temperature      *float32          `json:"temperature,omitempty"`
	TopK             *int              `json:"top_k,omitempty"`
	TopP             *float32          `json:"top_p,omitempty"`
	StopSequences    []string          `json:"stop_sequences,omitempty"`
}

type messagesMessage struct {
	Role    string         `json:"role"`
	Content []messagesPart `json:"content"`
}

type messagesPart struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *messagesSource `json:"source,omitempty"`
}

type messagesSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	ID         string            `json:"id"`
	Model      string            `json:"model"`
	Content    []messagesContent `json:"content"`
	StopReason string            `json:"stop_reason"`
	Usage      *messagesUsage    `json:"usage"`
}

type messagesContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (c MessagesCodec) EncodeRequest(req *InferenceRequest) ([]byte, error) {
	system, turns := splitSystem(req.SystemInstruction, req.Turns)
	if len(turns) == 0 {
		return nil, fmt.Errorf("%w: no user or assistant turns", ErrInvalidInput)
	}

	messages := make([]messagesMessage, 0, len(turns))
	for i, t := range turns {
		parts := make([]messagesPart, 0, len(t.Content))
		for _, block := range t.Content {
			switch b := block.(type) {
			case TextBlock:
				// Bedrock rejects whitespace-only text blocks.
				if strings.TrimSpace(b.Text) == "" {
					continue
				}
				parts = append(parts, messagesPart{Type: "text", Text: b.Text})
			case ImageBlock:
				parts = append(parts, messagesPart{
					Type: "image",
					Source: &messagesSource{
						Type:      "base64",
						MediaType: b.MediaType(),
						Data:      b.Data(),
					},
				})
			default:
				return nil, fmt.Errorf("turn %d: %w: %T", i, ErrUnsupportedBlock, block)
			}
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("turn %d: %w", i, ErrEmptyTurn)
		}
		messages = append(messages, messagesMessage{Role: t.Role.String(), Content: parts})
	}

	return json.Marshal(messagesRequest{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        req.MaxOutputTokens,
		System:           system,
		Messages:         messages,
		Temperature:      req.Temperature,
		TopK:             req.TopK,
		TopP:             req.TopP,
		StopSequences:    req.StopSequences,
	})
}

func (c MessagesCodec) DecodeResponse(body []byte) (*InferenceResponse, error) {
	var resp messagesResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 {
		return nil, NewMalformedResponse("response has no content", nil)
	}

	idx := -1
	for i, part := range resp.Content {
		if part.Type == "text" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, NewMalformedResponse("response content has no text block", nil)
	}

	out := &InferenceResponse{
		Text:       resp.Content[idx].Text,
		Raw:        json.RawMessage(body),
		StopReason: resp.StopReason,
		Model:      resp.Model,
	}
	if resp.Usage != nil {
		out.Usage = &UsageMetadata{
			PromptTokens:     resp.Usage.InputTokens,
			CandidatesTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}
	return out, nil
}
