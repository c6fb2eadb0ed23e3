package converse

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the role identifier.
func (r Role) String() string {
	return string(r)
}

// BlockType identifies the variant of a ContentBlock.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
)

// ContentBlock is a typed unit of message content.
// The package provides two variants: TextBlock and ImageBlock.
type ContentBlock interface {
	BlockType() BlockType
}

// TextBlock is a plain UTF-8 text content block.
type TextBlock struct {
	Text string
}

func (TextBlock) BlockType() BlockType { return BlockText }

// Text returns a TextBlock holding s.
func Text(s string) TextBlock {
	return TextBlock{Text: s}
}

// ImageBlock is an image content block. The payload is encoded to base64
// exactly once, when the block is constructed, and the encoded string is
// reused for every request that carries the block.
type ImageBlock struct {
	mediaType string
	data      string
}

func (ImageBlock) BlockType() BlockType { return BlockImage }

// NewImageBlock encodes raw image bytes into an ImageBlock.
func NewImageBlock(data []byte, mediaType string) ImageBlock {
	return ImageBlock{
		mediaType: mediaType,
		data:      base64.StdEncoding.EncodeToString(data),
	}
}

// ImageFromBase64 wraps an already encoded payload without re-encoding it.
func ImageFromBase64(b64 string, mediaType string) (ImageBlock, error) {
	if _, err := base64.StdEncoding.DecodeString(b64); err != nil {
		return ImageBlock{}, fmt.Errorf("%w: invalid base64: %v", ErrInvalidInput, err)
	}
	return ImageBlock{mediaType: mediaType, data: b64}, nil
}

// ImageFromFile reads an image from disk, taking the media type from the
// file extension.
func ImageFromFile(path string) (ImageBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageBlock{}, fmt.Errorf("read image: %w", err)
	}
	img := NewImageBlock(data, GetMIMEType(path))
	if err := ValidateImageBlock(img); err != nil {
		return ImageBlock{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// MediaType returns the image MIME type, e.g. "image/png".
func (b ImageBlock) MediaType() string {
	return b.mediaType
}

// Data returns the base64 transport encoding of the image.
func (b ImageBlock) Data() string {
	return b.data
}

// Bytes decodes the image payload.
func (b ImageBlock) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(b.data)
}

// Turn is one message in a conversation.
type Turn struct {
	Role    Role
	Content []ContentBlock
}

// NewTurn creates a turn with the given role and blocks.
func NewTurn(role Role, blocks ...ContentBlock) Turn {
	content := make([]ContentBlock, len(blocks))
	copy(content, blocks)
	return Turn{Role: role, Content: content}
}

// NewUserTurn creates a user turn.
func NewUserTurn(blocks ...ContentBlock) Turn {
	return NewTurn(RoleUser, blocks...)
}

// NewAssistantTurn creates an assistant turn holding a single text block.
func NewAssistantTurn(text string) Turn {
	return NewTurn(RoleAssistant, Text(text))
}

// NewSystemTurn creates a system turn holding a single text block.
func NewSystemTurn(text string) Turn {
	return NewTurn(RoleSystem, Text(text))
}

// Text concatenates the turn's text blocks, separated by newlines.
func (t Turn) Text() string {
	var parts []string
	for _, block := range t.Content {
		if tb, ok := block.(TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Images returns the turn's image blocks in order.
func (t Turn) Images() []ImageBlock {
	var images []ImageBlock
	for _, block := range t.Content {
		if ib, ok := block.(ImageBlock); ok {
			images = append(images, ib)
		}
	}
	return images
}

// HasImages reports whether the turn carries at least one image block.
func (t Turn) HasImages() bool {
	for _, block := range t.Content {
		if _, ok := block.(ImageBlock); ok {
			return true
		}
	}
	return false
}

// clone returns a copy of t that does not share its content slice.
func (t Turn) clone() Turn {
	content := make([]ContentBlock, len(t.Content))
	copy(content, t.Content)
	return Turn{Role: t.Role, Content: content}
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t.clone()
	}
	return out
}
