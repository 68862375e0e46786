package imagecache

import (
	"image"
	"sync/atomic"
)

// Texture is an opaque handle produced by the rendering backend.
type Texture interface {
	Size() image.Point
	Release()
}

type Renderer interface {
	CreateTexture(img image.Image) (Texture, error)
}

type RendererFunc func(img image.Image) (Texture, error)

func (f RendererFunc) CreateTexture(img image.Image) (Texture, error) {
	return f(img)
}

// ImageTexture keeps the decoded image in memory. It backs headless use such
// as the CLI preview command and tests.
type ImageTexture struct {
	Image    image.Image
	released atomic.Bool
}

func (t *ImageTexture) Size() image.Point {
	return t.Image.Bounds().Size()
}

func (t *ImageTexture) Release() {
	t.released.Store(true)
}

func (t *ImageTexture) Released() bool {
	return t.released.Load()
}

type ImageRenderer struct{}

func (ImageRenderer) CreateTexture(img image.Image) (Texture, error) {
	return &ImageTexture{Image: img}, nil
}
