package converse

import (
	"encoding/json"
	"strings"
)

const (
	humanPrefix     = "\n\nHuman: "
	assistantPrefix = "\n\nAssistant: "
	assistantCue    = "\n\nAssistant:"
)

// TextCompletionCodec implements the legacy delimiter-based completion
// protocol: turns are rendered into a single Human/Assistant prompt.
type TextCompletionCodec struct{}

func (TextCompletionCodec) Protocol() Protocol { return ProtocolTextCompletion }

type textCompletionRequest struct {
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       *float32 `json:"temperature,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	TopP              *float32 `json:"top_p,omitempty"`
	StopSequences     []string `json:"stop_sequences"`
}

type textCompletionResponse struct {
	Completion *string `json:"completion"`
	StopReason string  `json:"stop_reason"`
}

// CompletionPrompt renders turns in the Human/Assistant delimiter format,
// ending with the assistant cue.
func CompletionPrompt(system string, turns []Turn) string {
	var b strings.Builder
	b.WriteString(system)
	for _, t := range turns {
		if t.Role == RoleAssistant {
			b.WriteString(assistantPrefix)
		} else {
			b.WriteString(humanPrefix)
		}
		b.WriteString(t.Text())
	}
	b.WriteString(assistantCue)
	return b.String()
}

func (c TextCompletionCodec) EncodeRequest(req *InferenceRequest) ([]byte, error) {
	if err := requireTextOnly(c.Protocol(), req.Turns); err != nil {
		return nil, err
	}
	system, turns := splitSystem(req.SystemInstruction, req.Turns)

	stops := req.StopSequences
	if stops == nil {
		stops = []string{}
	}

	return json.Marshal(textCompletionRequest{
		Prompt:            CompletionPrompt(system, turns),
		MaxTokensToSample: req.MaxOutputTokens,
		Temperature:       req.Temperature,
		TopK:              req.TopK,
		TopP:              req.TopP,
		StopSequences:     stops,
	})
}

func (c TextCompletionCodec) DecodeResponse(body []byte) (*InferenceResponse, error) {
	var resp textCompletionResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}
	if resp.Completion == nil {
		return nil, NewMalformedResponse("response has no completion", nil)
	}
	return &InferenceResponse{
		Text:       strings.TrimSpace(*resp.Completion),
		Raw:        json.RawMessage(body),
		StopReason: resp.StopReason,
	}, nil
}

// CohereCodec implements the Cohere generate protocol.
type CohereCodec struct{}

func (CohereCodec) Protocol() Protocol { return ProtocolCohereGenerate }

type cohereRequest struct {
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens"`
	Temperature   *float32 `json:"temperature,omitempty"`
	P             *float32 `json:"p,omitempty"`
	K             *int     `json:"k,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

type cohereResponse struct {
	Generations []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"generations"`
}

func (c CohereCodec) EncodeRequest(req *InferenceRequest) ([]byte, error) {
	if err := requireTextOnly(c.Protocol(), req.Turns); err != nil {
		return nil, err
	}
	system, turns := splitSystem(req.SystemInstruction, req.Turns)
	return json.Marshal(cohereRequest{
		Prompt:        flattenPrompt(system, turns),
		MaxTokens:     req.MaxOutputTokens,
		Temperature:   req.Temperature,
		P:             req.TopP,
		K:             req.TopK,
		StopSequences: req.StopSequences,
	})
}

func (c CohereCodec) DecodeResponse(body []byte) (*InferenceResponse, error) {
	var resp cohereResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Generations) == 0 {
		return nil, NewMalformedResponse("response has no generations", nil)
	}
	return &InferenceResponse{
		Text:       strings.TrimSpace(resp.Generations[0].Text),
		Raw:        json.RawMessage(body),
		StopReason: resp.Generations[0].FinishReason,
	}, nil
}

// AI21Codec implements the AI21 Jurassic complete protocol.
type AI21Codec struct{}

func (AI21Codec) Protocol() Protocol { return ProtocolAI21Complete }

type ai21Request struct {
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"maxTokens"`
	Temperature   *float32 `json:"temperature,omitempty"`
	TopP          *float32 `json:"topP,omitempty"`
	StopSequences []string `json:"stopSequences"`
}

type ai21Response struct {
	Completions []struct {
		Data struct {
			Text string `json:"text"`
		} `json:"data"`
		FinishReason struct {
			Reason string `json:"reason"`
		} `json:"finishReason"`
	} `json:"completions"`
}

func (c AI21Codec) EncodeRequest(req *InferenceRequest) ([]byte, error) {
	if err := requireTextOnly(c.Protocol(), req.Turns); err != nil {
		return nil, err
	}
	system, turns := splitSystem(req.SystemInstruction, req.Turns)

	stops := req.StopSequences
	if stops == nil {
		stops = []string{}
	}

	return json.Marshal(ai21Request{
		Prompt:        flattenPrompt(system, turns),
		MaxTokens:     req.MaxOutputTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: stops,
	})
}

func (c AI21Codec) DecodeResponse(body []byte) (*InferenceResponse, error) {
	var resp ai21Response
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Completions) == 0 {
		return nil, NewMalformedResponse("response has no completions", nil)
	}
	return &InferenceResponse{
		Text:       strings.TrimSpace(resp.Completions[0].Data.Text),
		Raw:        json.RawMessage(body),
		StopReason: resp.Completions[0].FinishReason.Reason,
	}, nil
}
