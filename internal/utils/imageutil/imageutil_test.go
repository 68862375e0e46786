package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	return img
}

func TestThumbnail(t *testing.T) {
	assert.Equal(t, image.Pt(50, 25), Thumbnail(solid(200, 100), 50).Bounds().Size())
	assert.Equal(t, image.Pt(40, 20), Thumbnail(solid(40, 20), 50).Bounds().Size())
	assert.Equal(t, image.Pt(40, 20), Thumbnail(solid(40, 20), 0).Bounds().Size())
	assert.Equal(t, image.Pt(10, 1), Thumbnail(solid(100, 2), 10).Bounds().Size())
}

func TestEncodeImage(t *testing.T) {
	data, err := EncodeImage(solid(4, 4), "png")
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 4), decoded.Bounds().Size())

	_, err = EncodeImage(solid(4, 4), "jpg")
	assert.NoError(t, err)

	_, err = EncodeImage(solid(4, 4), "tiff")
	assert.Error(t, err)
}
