package imagecache

import (
	"fmt"
	"os"

	"github.com/cozy-creator/theme-manager/internal/services/transfer"
	"github.com/cozy-creator/theme-manager/internal/utils/imageutil"

	"go.uber.org/zap"
)

// Callback receives the locator it was requested for, so callers key their
// state by identity and never by a position that may have moved. texture is
// nil when the image could not be obtained.
type Callback func(locator string, texture Texture)

// Scheduler is the part of transfer.Scheduler the cache needs.
type Scheduler interface {
	Enqueue(d *transfer.Descriptor) error
	Cancel(d *transfer.Descriptor)
}

type Options struct {
	Dir            string
	Capacity       int
	Eviction       string
	ThumbnailWidth int
}

// Cache is a two tier image cache. Like the scheduler it feeds, it is driven
// from one goroutine and performs no locking of its own.
type Cache struct {
	opts     Options
	sched    Scheduler
	renderer Renderer
	logger   *zap.Logger

	mem      *memoryStore
	disk     *diskStore
	inflight map[string]*pendingRequest
}

type pendingRequest struct {
	descriptor *transfer.Descriptor
	callbacks  []Callback
}

func New(opts Options, sched Scheduler, renderer Renderer, logger *zap.Logger) (*Cache, error) {
	disk, err := newDiskStore(opts.Dir)
	if err != nil {
		return nil, err
	}

	if renderer == nil {
		renderer = ImageRenderer{}
	}

	return &Cache{
		opts:     opts,
		sched:    sched,
		renderer: renderer,
		logger:   logger.Named("imagecache"),
		mem:      newMemoryStore(opts.Capacity, opts.Eviction),
		disk:     disk,
		inflight: make(map[string]*pendingRequest),
	}, nil
}

// RequestAsync resolves locator through memory, disk, local storage and
// finally the network. Every path except the network one invokes cb before
// returning; network results arrive from inside Scheduler.Tick.
func (c *Cache) RequestAsync(locator string, highPriority bool, cb Callback) {
	if texture, ok := c.mem.get(locator); ok {
		cb(locator, texture)
		return
	}

	if texture, ok := c.fromDisk(locator); ok {
		cb(locator, texture)
		return
	}

	src, err := ParseLocator(locator)
	if err != nil {
		c.logger.Warn("invalid locator", zap.String("locator", locator), zap.Error(err))
		cb(locator, nil)
		return
	}

	if src.Type == SourceTypeFile {
		cb(locator, c.fromLocalFile(locator, src.Location))
		return
	}

	if pending, ok := c.inflight[locator]; ok {
		pending.callbacks = append(pending.callbacks, cb)
		return
	}

	d := transfer.NewDescriptor(src.Location, c.onTransferDone(locator))
	d.HighPriority = highPriority
	c.inflight[locator] = &pendingRequest{descriptor: d, callbacks: []Callback{cb}}

	if err := c.sched.Enqueue(d); err != nil {
		delete(c.inflight, locator)
		c.logger.Warn("failed to enqueue image transfer", zap.String("locator", locator), zap.Error(err))
		cb(locator, nil)
	}
}

// CancelRequest drops an in-flight network request. Its callbacks never fire.
func (c *Cache) CancelRequest(locator string) {
	pending, ok := c.inflight[locator]
	if !ok {
		return
	}

	delete(c.inflight, locator)
	c.sched.Cancel(pending.descriptor)
}

// Get returns a memory-resident texture without touching disk or network.
func (c *Cache) Get(locator string) (Texture, bool) {
	return c.mem.get(locator)
}

func (c *Cache) Len() int {
	return c.mem.len()
}

// InFlight reports how many locators are waiting on the network.
func (c *Cache) InFlight() int {
	return len(c.inflight)
}

// Evict drops locator from memory and releases its texture. The disk copy stays.
func (c *Cache) Evict(locator string) {
	if texture, ok := c.mem.remove(locator); ok {
		texture.Release()
	}
}

// Clear empties the memory tier.
func (c *Cache) Clear() {
	for _, texture := range c.mem.clear() {
		texture.Release()
	}
}

func (c *Cache) ClearDisk() error {
	return c.disk.clear()
}

// WriteDisk stores raw bytes in the disk tier for locator.
func (c *Cache) WriteDisk(locator string, data []byte) error {
	return c.disk.write(locator, data)
}

// ReadDisk returns the raw bytes stored for locator.
func (c *Cache) ReadDisk(locator string) ([]byte, error) {
	return c.disk.read(locator)
}

func (c *Cache) DiskEntries() ([]DiskEntry, error) {
	return c.disk.entries()
}

func (c *Cache) fromDisk(locator string) (Texture, bool) {
	if !c.disk.exists(locator) {
		return nil, false
	}

	data, err := c.disk.read(locator)
	if err != nil {
		c.logger.Warn("failed to read cached image", zap.String("locator", locator), zap.Error(err))
		return nil, false
	}

	texture, err := c.decodeTexture(data)
	if err != nil {
		c.logger.Warn("dropping undecodable cache entry", zap.String("locator", locator), zap.Error(err))
		_ = c.disk.remove(locator)
		return nil, false
	}

	c.store(locator, texture)
	return texture, true
}

func (c *Cache) fromLocalFile(locator, path string) Texture {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("failed to read local image", zap.String("path", path), zap.Error(err))
		return nil
	}

	texture, err := c.decodeTexture(data)
	if err != nil {
		c.logger.Warn("failed to decode local image", zap.String("path", path), zap.Error(err))
		return nil
	}

	c.store(locator, texture)
	return texture
}

func (c *Cache) onTransferDone(locator string) transfer.Callback {
	return func(d *transfer.Descriptor) {
		pending, ok := c.inflight[locator]
		if !ok || pending.descriptor != d {
			return
		}
		delete(c.inflight, locator)

		var texture Texture
		if d.Status() == transfer.StatusComplete {
			t, err := c.decodeTexture(d.Response)
			if err != nil {
				c.logger.Warn("failed to decode downloaded image", zap.String("locator", locator), zap.Error(err))
			} else {
				if err := c.disk.write(locator, d.Response); err != nil {
					c.logger.Warn("failed to persist image", zap.String("locator", locator), zap.Error(err))
				}
				c.store(locator, t)
				texture = t
			}
		} else {
			c.logger.Debug("image transfer failed", zap.String("locator", locator), zap.Error(d.Err))
		}

		for _, cb := range pending.callbacks {
			cb(locator, texture)
		}
	}
}

func (c *Cache) decodeTexture(data []byte) (Texture, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}

	img = imageutil.Thumbnail(img, c.opts.ThumbnailWidth)
	texture, err := c.renderer.CreateTexture(img)
	if err != nil {
		return nil, fmt.Errorf("failed to create texture: %w", err)
	}

	return texture, nil
}

func (c *Cache) store(locator string, texture Texture) {
	for _, dropped := range c.mem.put(locator, texture) {
		dropped.Release()
	}
}
