package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/parallel"
	"github.com/pkg/errors"
)

// Plane is a single-channel float image stored row-major.
//
// Planes are used for luminance and gradient maps. Values are normally in the
// range [0, 1].
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPlane allocates a zeroed plane of the given size.
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the value at (x, y). No bounds checking is performed.
func (p *Plane) At(x, y int) float64 {
	return p.Pix[y*p.Width+x]
}

// Luminance converts img to a luminance plane using ITU-R BT.601 weights
// (0.299*R + 0.587*G + 0.114*B), scaled to [0, 1].
func Luminance(img image.Image) *Plane {
	bounds := img.Bounds()
	p := NewPlane(bounds.Dx(), bounds.Dy())

	parallel.Line(p.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < p.Width; x++ {
				r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
				rf := float64(r>>8) / 255.0
				gf := float64(g>>8) / 255.0
				bf := float64(b>>8) / 255.0
				p.Pix[y*p.Width+x] = 0.299*rf + 0.587*gf + 0.114*bf
			}
		}
	})
	return p
}

// Gradient holds the Sobel gradient of a plane.
type Gradient struct {
	// Magnitude is sqrt(Gx² + Gy²) divided by 4 and clamped to [0, 1], so that
	// an ideal black-to-white step scores 1.0.
	Magnitude *Plane

	// Direction is atan2(Gy, Gx) in radians.
	Direction *Plane
}

var (
	sobelX = [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// Sobel computes the gradient of p with 3x3 Sobel operators.
// Border pixels use clamped (replicated) edge values.
func Sobel(p *Plane) *Gradient {
	mag := NewPlane(p.Width, p.Height)
	dir := NewPlane(p.Width, p.Height)

	parallel.Line(p.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < p.Width; x++ {
				var gx, gy float64
				for ky := -1; ky <= 1; ky++ {
					py := clamp(y+ky, 0, p.Height-1)
					for kx := -1; kx <= 1; kx++ {
						px := clamp(x+kx, 0, p.Width-1)
						v := p.Pix[py*p.Width+px]
						gx += v * sobelX[ky+1][kx+1]
						gy += v * sobelY[ky+1][kx+1]
					}
				}
				i := y*p.Width + x
				mag.Pix[i] = math.Min(1, math.Sqrt(gx*gx+gy*gy)/4)
				dir.Pix[i] = math.Atan2(gy, gx)
			}
		}
	})

	return &Gradient{Magnitude: mag, Direction: dir}
}

// EdgeMap blurs img with a Gaussian of the given radius and returns its
// Sobel gradient. A radius of 0 skips the blur.
func EdgeMap(img image.Image, blurRadius float64) *Gradient {
	if blurRadius > 0 {
		img = blur.Gaussian(img, blurRadius)
	}
	return Sobel(Luminance(img))
}

// EdgeDetectResult contains an edge-detected image encoded as base64 PNG.
//
// The result is a grayscale image where white pixels (255) represent detected
// edges and black pixels (0) represent non-edges.
type EdgeDetectResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EdgeDetect renders a Canny-style edge preview of img.
//
// It is a diagnostic companion to the edge-geometry card detector: the same
// blur and Sobel stage feeds both, so the preview shows which outlines the
// detector can see. thresholdLow and thresholdHigh are on a 0-255 scale of the
// normalized gradient magnitude.
//
// # Algorithm
//
//  1. Gaussian blur (radius 1.4) and BT.601 luminance
//  2. Sobel gradient magnitude and direction
//  3. Non-maximum suppression along the gradient direction
//  4. Hysteresis: strong edges (>= high) are kept, weak edges (>= low) are
//     kept only when touching a strong edge
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int) (*EdgeDetectResult, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	grad := EdgeMap(img, 1.4)
	magnitude := grad.Magnitude
	direction := grad.Direction

	suppressed := NewPlane(width, height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			angle := direction.At(x, y)
			mag := magnitude.At(x, y)

			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude.At(x-1, y)
				n2 = magnitude.At(x+1, y)
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude.At(x+1, y-1)
				n2 = magnitude.At(x-1, y+1)
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude.At(x, y-1)
				n2 = magnitude.At(x, y+1)
			} else {
				n1 = magnitude.At(x-1, y-1)
				n2 = magnitude.At(x+1, y+1)
			}

			if mag >= n1 && mag >= n2 {
				suppressed.Pix[y*width+x] = mag
			}
		}
	}

	result := image.NewGray(image.Rect(0, 0, width, height))
	lowThresh := float64(thresholdLow) / 255.0
	highThresh := float64(thresholdHigh) / 255.0

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			val := suppressed.At(x, y)
			if val >= highThresh {
				result.SetGray(x, y, color.Gray{Y: 255})
			} else if val >= lowThresh && hasStrongNeighbor(suppressed, x, y, highThresh) {
				result.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, errors.Wrap(err, "failed to encode edge image")
	}

	return &EdgeDetectResult{
		Width:       width,
		Height:      height,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

func hasStrongNeighbor(p *Plane, x, y int, thresh float64) bool {
	for ky := -1; ky <= 1; ky++ {
		for kx := -1; kx <= 1; kx++ {
			py := clamp(y+ky, 0, p.Height-1)
			px := clamp(x+kx, 0, p.Width-1)
			if p.At(px, py) >= thresh {
				return true
			}
		}
	}
	return false
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
