package badge

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePNG(t *testing.T) {
	g := NewGenerator()

	data, err := g.GeneratePNG("3f5a8c2e-badge-token")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err, "Output must be a decodable PNG")
	assert.Equal(t, defaultSize, img.Bounds().Dx())
	assert.Equal(t, defaultSize, img.Bounds().Dy())
}

func TestGeneratePNGEmptyHash(t *testing.T) {
	g := NewGenerator()

	data, err := g.GeneratePNG("")
	assert.Error(t, err)
	assert.Nil(t, data)
}

func TestGeneratePNGDeterministic(t *testing.T) {
	g := NewGenerator()

	a, err := g.GeneratePNG("same-token")
	require.NoError(t, err)
	b, err := g.GeneratePNG("same-token")
	require.NoError(t, err)

	assert.Equal(t, a, b, "Reprinting a badge must produce the same image")
}
