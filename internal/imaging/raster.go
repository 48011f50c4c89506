package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/clone"
	"github.com/pkg/errors"
)

// Raster is a decoded image held in memory as an interleaved byte buffer.
//
// Pixels are stored row-major with a stride of Width*Channels bytes. Supported
// channel layouts are:
//   - 1: 8-bit grayscale
//   - 3: 8-bit RGB
//   - 4: 8-bit RGBA (alpha is ignored by every analysis in this module)
//
// A Raster is owned by the caller. Detection code never receives a *Raster; it
// works on the read-only View returned by View().
type Raster struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Pix      []byte `json:"-"`
}

// Validate reports whether the raster is internally consistent.
//
// It checks that both dimensions are positive, that Channels is 1, 3 or 4, and
// that Pix holds exactly Width*Height*Channels bytes.
func (r *Raster) Validate() error {
	if r == nil {
		return errors.New("raster is nil")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return errors.Errorf("raster has non-positive dimensions %dx%d", r.Width, r.Height)
	}
	switch r.Channels {
	case 1, 3, 4:
	default:
		return errors.Errorf("unsupported channel count %d", r.Channels)
	}
	if want := r.Width * r.Height * r.Channels; len(r.Pix) != want {
		return errors.Errorf("pixel buffer holds %d bytes, want %d", len(r.Pix), want)
	}
	return nil
}

// View returns a read-only view over the raster's pixels.
//
// The view shares the underlying buffer, so the caller must not modify Pix while
// any detection using the view is in flight.
func (r *Raster) View() View {
	return View{
		width:    r.Width,
		height:   r.Height,
		channels: r.Channels,
		pix:      r.Pix,
	}
}

// RasterFromImage copies any image.Image into an RGBA Raster.
//
// The returned raster's origin is always (0,0), regardless of img.Bounds().Min.
func RasterFromImage(img image.Image) *Raster {
	rgba := clone.AsRGBA(img)
	b := rgba.Bounds()
	w, h := b.Dx(), b.Dy()

	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		off := rgba.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pix[y*w*4:(y+1)*w*4], rgba.Pix[off:off+w*4])
	}

	return &Raster{Width: w, Height: h, Channels: 4, Pix: pix}
}

// View is an immutable window onto a Raster's pixel buffer.
//
// View exposes accessors only. It is a small value type and is safe to share
// between goroutines as long as the owning Raster is not modified.
type View struct {
	width    int
	height   int
	channels int
	pix      []byte
}

// Width returns the image width in pixels.
func (v View) Width() int { return v.width }

// Height returns the image height in pixels.
func (v View) Height() int { return v.height }

// Channels returns the number of interleaved channels per pixel.
func (v View) Channels() int { return v.channels }

// Bounds returns the image rectangle with origin (0,0).
func (v View) Bounds() image.Rectangle { return image.Rect(0, 0, v.width, v.height) }

// RGB returns the 8-bit color components at (x, y).
// Grayscale rasters return the same value in all three components.
// No bounds checking is performed; caller must ensure coordinates are valid.
func (v View) RGB(x, y int) (r, g, b uint8) {
	i := (y*v.width + x) * v.channels
	if v.channels == 1 {
		g := v.pix[i]
		return g, g, g
	}
	return v.pix[i], v.pix[i+1], v.pix[i+2]
}

// Gray returns the ITU-R BT.601 luminance at (x, y) in the range [0, 1].
func (v View) Gray(x, y int) float64 {
	r, g, b := v.RGB(x, y)
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 255.0
}

// Image returns a fresh *image.NRGBA copy of the view.
//
// The copy is independent of the raster buffer, so it may be handed to image
// libraries that mutate or retain their input.
func (v View) Image() *image.NRGBA {
	img := image.NewNRGBA(v.Bounds())
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			r, g, b := v.RGB(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// AsImage returns an image.Image that reads straight from the view's buffer.
//
// Unlike Image, nothing is copied. The result is only valid while the owning
// Raster is unchanged.
func (v View) AsImage() image.Image {
	return viewImage{v}
}

// Downscaled shrinks the view so its longer side is at most maxSide pixels.
// See Downscale for the meaning of the returned Scale.
func (v View) Downscaled(maxSide int) (image.Image, Scale) {
	return Downscale(v.AsImage(), maxSide)
}

type viewImage struct {
	v View
}

func (im viewImage) ColorModel() color.Model { return color.NRGBAModel }

func (im viewImage) Bounds() image.Rectangle { return im.v.Bounds() }

func (im viewImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(im.v.Bounds()) {
		return color.NRGBA{}
	}
	r, g, b := im.v.RGB(x, y)
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
