package imagecache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

type Format string

const (
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatUnknown Format = "unknown"
)

var ErrUndecodable = errors.New("image could not be decoded")

var mimeFormats = map[string]Format{
	"image/png":  FormatPNG,
	"image/jpeg": FormatJPEG,
	"image/gif":  FormatGIF,
	"image/webp": FormatWebP,
	"image/bmp":  FormatBMP,
}

var decoders = map[Format]func(io.Reader) (image.Image, error){
	FormatPNG:  png.Decode,
	FormatJPEG: jpeg.Decode,
	FormatGIF:  gif.Decode,
	FormatWebP: webp.Decode,
	FormatBMP:  bmp.Decode,
}

// Sniff detects the image format from magic bytes; file names are never consulted.
func Sniff(data []byte) (Format, string) {
	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		if f, ok := mimeFormats[m.String()]; ok {
			return f, mtype.String()
		}
	}

	return FormatUnknown, mtype.String()
}

// Decode tries the decoder matching the sniffed format, then falls back to
// the generic registry, which also covers data whose header sniffing missed.
func Decode(data []byte) (image.Image, Format, error) {
	format, mime := Sniff(data)

	var typedErr error
	if decode, ok := decoders[format]; ok {
		img, err := decode(bytes.NewReader(data))
		if err == nil {
			return img, format, nil
		}
		typedErr = err
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, Format(name), nil
	}

	if typedErr != nil {
		return nil, format, fmt.Errorf("%w: %s: %v", ErrUndecodable, format, typedErr)
	}

	return nil, format, fmt.Errorf("%w: unsupported content %s", ErrUndecodable, mime)
}
