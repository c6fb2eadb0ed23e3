package converse

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Validation errors. All of them match ErrInvalidInput.
var (
	ErrEmptyPrompt       = fmt.Errorf("%w: prompt cannot be empty", ErrInvalidInput)
	ErrEmptyImageData    = fmt.Errorf("%w: image data cannot be empty", ErrInvalidInput)
	ErrInvalidMIMEType   = fmt.Errorf("%w: invalid or unsupported MIME type", ErrInvalidInput)
	ErrImageTooLarge     = fmt.Errorf("%w: image data exceeds maximum size", ErrInvalidInput)
	ErrTooManyImages     = fmt.Errorf("%w: too many images in turn", ErrInvalidInput)
	ErrInvalidRole       = fmt.Errorf("%w: invalid role", ErrInvalidInput)
	ErrEmptyTurn         = fmt.Errorf("%w: turn has no content", ErrInvalidInput)
	ErrUnsupportedBlock  = fmt.Errorf("%w: unsupported content block", ErrInvalidInput)
	ErrInvalidStyle      = fmt.Errorf("%w: unknown style preset", ErrInvalidInput)
	ErrImagesUnsupported = fmt.Errorf("%w: model does not accept image input", ErrInvalidInput)
)

// Image size limits
const (
	// MaxImageSize is the maximum allowed decoded image size in bytes (20MB)
	MaxImageSize = 20 * 1024 * 1024

	// MaxImagesPerTurn is the maximum number of image blocks in one turn
	MaxImagesPerTurn = 20
)

// ValidMIMETypes contains the supported image MIME types
var ValidMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ValidatePrompt validates a text prompt.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// ValidateImageBlock validates an image content block.
func ValidateImageBlock(img ImageBlock) error {
	if img.data == "" {
		return ErrEmptyImageData
	}

	if img.mediaType == "" {
		return fmt.Errorf("%w: MIME type is required", ErrInvalidMIMEType)
	}

	if !ValidMIMETypes[img.mediaType] {
		return fmt.Errorf("%w: %s", ErrInvalidMIMEType, img.mediaType)
	}

	if size := base64.StdEncoding.DecodedLen(len(img.data)); size > MaxImageSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, size, MaxImageSize)
	}

	return nil
}

// ValidateTurn checks that a turn is well formed: a known role, at least one
// block for user and assistant turns, and only supported blocks. A user turn
// must carry non-blank text or at least one image.
func ValidateTurn(turn Turn) error {
	switch turn.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	case "":
		return fmt.Errorf("%w: role is required", ErrInvalidRole)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, turn.Role)
	}

	if len(turn.Content) == 0 {
		return ErrEmptyTurn
	}

	images := 0
	hasText := false
	for i, block := range turn.Content {
		switch b := block.(type) {
		case TextBlock:
			if strings.TrimSpace(b.Text) != "" {
				hasText = true
			}
		case ImageBlock:
			if turn.Role != RoleUser {
				return fmt.Errorf("block %d: %w: images are only allowed in user turns", i, ErrUnsupportedBlock)
			}
			if err := ValidateImageBlock(b); err != nil {
				return fmt.Errorf("block %d: %w", i, err)
			}
			images++
		case nil:
			return fmt.Errorf("block %d: %w: nil block", i, ErrUnsupportedBlock)
		default:
			return fmt.Errorf("block %d: %w: %T", i, ErrUnsupportedBlock, block)
		}
	}

	if images > MaxImagesPerTurn {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyImages, images, MaxImagesPerTurn)
	}

	if !hasText && images == 0 {
		return ErrEmptyPrompt
	}

	return nil
}

// ValidateTurns validates a slice of turns.
func ValidateTurns(turns []Turn) error {
	for i, turn := range turns {
		if err := ValidateTurn(turn); err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}
	}
	return nil
}

// ValidateStylePreset checks a Stability style preset name. Empty and "None"
// are accepted and mean no preset.
func ValidateStylePreset(preset string) error {
	if preset == "" || preset == StylePresetNone {
		return nil
	}
	for _, p := range StylePresets {
		if p == preset {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidStyle, preset)
}

// IsInvalidInput reports whether err was classified as invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
