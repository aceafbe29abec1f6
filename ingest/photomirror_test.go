package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhotoMirror_DisabledWhenNoURL(t *testing.T) {
	m, err := NewPhotoMirror("")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewPhotoMirror_InvalidURLErrors(t *testing.T) {
	_, err := NewPhotoMirror("not-a-cloudinary-url")
	assert.Error(t, err)
}

func TestPhotoMirror_Mirror_NilReceiverIsSafe(t *testing.T) {
	var m *PhotoMirror
	mirrors := m.Mirror(context.Background(), "101", []string{"https://example.test/a.jpg"})
	assert.Nil(t, mirrors)
}

func TestPhotoMirror_Mirror_EmptyInputReturnsNil(t *testing.T) {
	m, err := NewPhotoMirror("")
	require.NoError(t, err)
	assert.Nil(t, m.Mirror(context.Background(), "101", nil))
}
