package imaging

import (
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // flatbed scanner exports
	_ "golang.org/x/image/tiff" // flatbed scanner exports
	_ "golang.org/x/image/webp" // phone and browser uploads
)

// ImageCache keeps decoded photos in memory, keyed by file path.
//
// A card photo is usually inspected several times in a row (detect, overlay,
// crop the chosen candidate), so decoding once and reusing the result avoids
// repeated disk reads and JPEG decodes.
//
// ImageCache is safe for concurrent use by multiple goroutines. Cached images
// are never mutated after insertion.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cached
}

type cached struct {
	img    image.Image
	format string
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cached),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// PNG, JPEG, GIF, WebP, BMP and TIFF are decoded. The image is cached using
// the exact path string provided.
func (c *ImageCache) Load(path string) (image.Image, error) {
	e, err := c.load(path)
	return e.img, err
}

func (c *ImageCache) load(path string) (cached, error) {
	c.mu.RLock()
	e, ok := c.images[path]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cached{}, errors.Wrap(err, "open image")
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return cached{}, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}

	e = cached{img: img, format: format}
	c.mu.Lock()
	c.images[path] = e
	c.mu.Unlock()
	return e, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]cached)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo describes a loaded image file.
type ImageInfo struct {
	// Filename is the base name of the file, without directories.
	Filename string `json:"filename"`

	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder that read the file ("png", "jpeg", "webp", ...),
	// whatever the file extension says.
	Format string `json:"format"`

	// HasAlpha indicates whether the decoded image carries an alpha channel.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and returns its metadata.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	e, err := cache.load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat image")
	}

	var hasAlpha bool
	switch e.img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.Paletted:
		hasAlpha = true
	}

	bounds := e.img.Bounds()
	return &ImageInfo{
		Filename:      filepath.Base(path),
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        e.format,
		HasAlpha:      hasAlpha,
		FileSizeBytes: stat.Size(),
	}, nil
}

// LoadRaster loads an image through the cache and converts it to a Raster.
//
// The returned ImageInfo carries the file name and size that callers pass on
// to detection as source metadata.
func LoadRaster(cache *ImageCache, path string) (*Raster, *ImageInfo, error) {
	info, err := LoadImageInfo(cache, path)
	if err != nil {
		return nil, nil, err
	}
	img, err := cache.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return RasterFromImage(img), info, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
