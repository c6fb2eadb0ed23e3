package converse

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageBlock_EncodesOnce(t *testing.T) {
	img := NewImageBlock([]byte("fake-png"), "image/png")

	assert.Equal(t, "ZmFrZS1wbmc=", img.Data())
	assert.Equal(t, "image/png", img.MediaType())
	assert.Equal(t, BlockImage, img.BlockType())

	raw, err := img.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-png"), raw)
}

func TestImageFromBase64(t *testing.T) {
	img, err := ImageFromBase64("cG5nLWJ5dGVz", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "cG5nLWJ5dGVz", img.Data())

	_, err = ImageFromBase64("not base64!", "image/png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestTurn_TextAndImages(t *testing.T) {
	img := NewImageBlock([]byte("png-bytes"), "image/png")
	turn := NewUserTurn(img, Text("first"), Text("second"))

	assert.Equal(t, RoleUser, turn.Role)
	assert.Equal(t, "first\nsecond", turn.Text())
	assert.True(t, turn.HasImages())
	require.Len(t, turn.Images(), 1)
	assert.Equal(t, img, turn.Images()[0])

	// Order is preserved: image first, then text.
	assert.Equal(t, BlockImage, turn.Content[0].BlockType())
	assert.Equal(t, BlockText, turn.Content[1].BlockType())
}

func TestNewTurn_CopiesBlocks(t *testing.T) {
	blocks := []ContentBlock{Text("a"), Text("b")}
	turn := NewUserTurn(blocks...)

	blocks[0] = Text("changed")
	assert.Equal(t, "a\nb", turn.Text())
}

func TestTurn_CloneIsIndependent(t *testing.T) {
	turn := NewUserTurn(Text("original"))
	c := turn.clone()
	c.Content[0] = Text("mutated")

	assert.Equal(t, "original", turn.Text())
	assert.Equal(t, "mutated", c.Text())
}

func TestImageFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chart.JPG")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o600))

	img, err := ImageFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MediaType())
	raw, err := img.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), raw)

	_, err = ImageFromFile(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = ImageFromFile(empty)
	assert.True(t, errors.Is(err, ErrEmptyImageData))
}
