package converse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Codec translates between the normalized request/response and one
// provider wire protocol.
type Codec interface {
	Protocol() Protocol
	EncodeRequest(req *InferenceRequest) ([]byte, error)
	DecodeResponse(body []byte) (*InferenceResponse, error)
}

var codecs = map[Protocol]Codec{
	ProtocolMessages:       MessagesCodec{},
	ProtocolTextCompletion: TextCompletionCodec{},
	ProtocolCohereGenerate: CohereCodec{},
	ProtocolAI21Complete:   AI21Codec{},
}

// CodecFor returns the codec for a protocol. An empty protocol selects
// ProtocolMessages.
func CodecFor(p Protocol) (Codec, error) {
	if p == "" {
		p = ProtocolMessages
	}
	c, ok := codecs[p]
	if !ok {
		return nil, fmt.Errorf("%w: unknown protocol %q", ErrInvalidInput, p)
	}
	return c, nil
}

// Protocols returns the registered protocol names.
func Protocols() []Protocol {
	return []Protocol{
		ProtocolMessages,
		ProtocolTextCompletion,
		ProtocolCohereGenerate,
		ProtocolAI21Complete,
	}
}

// decodeJSON unmarshals a response body, classifying syntax errors as
// malformed responses.
func decodeJSON(body []byte, v any) error {
	if len(body) == 0 {
		return NewMalformedResponse("empty response body", nil)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return NewMalformedResponse("response is not valid JSON", err)
	}
	return nil
}

// splitSystem separates system turns from the conversation. The configured
// instruction comes first, followed by system turns in order.
func splitSystem(instruction string, turns []Turn) (string, []Turn) {
	var system []string
	if instruction != "" {
		system = append(system, instruction)
	}
	rest := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleSystem {
			if text := t.Text(); text != "" {
				system = append(system, text)
			}
			continue
		}
		rest = append(rest, t)
	}
	return strings.Join(system, "\n\n"), rest
}

// requireTextOnly rejects image blocks for protocols that cannot carry them.
func requireTextOnly(p Protocol, turns []Turn) error {
	for i, t := range turns {
		if t.HasImages() {
			return fmt.Errorf("turn %d: %w: protocol %s cannot carry images", i, ErrUnsupportedBlock, p)
		}
	}
	return nil
}

// flattenPrompt renders a conversation as a single prompt for protocols
// without native turns. A lone turn is sent as its bare text.
func flattenPrompt(system string, turns []Turn) string {
	var b strings.Builder
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	if len(turns) == 0 {
		return b.String()
	}

	last := turns[len(turns)-1]
	if len(turns) == 1 {
		b.WriteString(last.Text())
		return b.String()
	}

	b.WriteString("Conversation so far:\n")
	for _, t := range turns[:len(turns)-1] {
		b.WriteString(t.Role.String())
		b.WriteString(": ")
		b.WriteString(t.Text())
		b.WriteString("\n")
	}
	b.WriteString("\nNew user message:\n")
	b.WriteString(last.Text())
	return b.String()
}
