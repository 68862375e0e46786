package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/anthonynsimon/bild/transform"
)

// Thumbnail scales img down to maxWidth, keeping the aspect ratio. Images
// already narrower than maxWidth, or a non-positive maxWidth, are returned as is.
func Thumbnail(img image.Image, maxWidth int) image.Image {
	size := img.Bounds().Size()
	if maxWidth <= 0 || size.X <= maxWidth {
		return img
	}

	height := size.Y * maxWidth / size.X
	if height < 1 {
		height = 1
	}

	return transform.Resize(img, maxWidth, height, transform.Linear)
}

func EncodeImage(img image.Image, format string) ([]byte, error) {
	var output bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&output, img)
	case "jpg", "jpeg":
		options := &jpeg.Options{Quality: 90}
		err = jpeg.Encode(&output, img, options)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}

	if err != nil {
		return nil, err
	}

	return output.Bytes(), nil
}
