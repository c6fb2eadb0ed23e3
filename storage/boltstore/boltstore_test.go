package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mhpenta/converse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "images.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openTemp(t)

	url, err := s.SaveFile(context.Background(), []byte("png-bytes"), "captions/lighthouse.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "bolt://images.bolt/captions/lighthouse.png", url)

	data, contentType, err := s.Load("captions/lighthouse.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", contentType)

	_, _, err = s.Load("missing.png")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_SaveToStorage(t *testing.T) {
	s := openTemp(t)
	result := &converse.ImageResult{Images: []converse.GeneratedImage{
		{Data: []byte("a"), MIMEType: "image/png"},
		{Data: []byte("b"), MIMEType: "image/jpeg"},
	}}

	saved, err := converse.SaveToStorage(context.Background(), s, result, "run1")
	require.NoError(t, err)
	require.Len(t, saved, 2)

	paths, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"run1_0.png", "run1_1.jpg"}, paths)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.bolt")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.SaveFile(context.Background(), []byte("x"), "keep.png", "image/png")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	data, _, err := s.Load("keep.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestStore_Errors(t *testing.T) {
	s := openTemp(t)

	_, err := s.SaveFile(context.Background(), []byte("x"), "", "image/png")
	assert.True(t, errors.Is(err, converse.ErrInvalidInput))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SaveFile(ctx, []byte("x"), "a.png", "image/png")
	assert.ErrorIs(t, err, context.Canceled)
}
