package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
)

// laplacianBias shifts the signed Laplacian response into the unsigned range
// bild's convolution writes to.
const laplacianBias = 128

var laplacianKernel = &convolution.Kernel{
	Matrix: []float64{
		0, 1, 0,
		1, -4, 1,
		0, 1, 0,
	},
	Width:  3,
	Height: 3,
}

// LaplacianEnergy returns |∇²I| of the grayscale image as a plane in [0, 1].
//
// The response is a cheap texture measure: flat backgrounds score near 0,
// printed artwork and text score high. bild clamps convolution output to
// [0, 255], so the kernel runs with a bias of 128 and the sign is recovered
// afterwards; responses beyond ±127 saturate at 1.
func LaplacianEnergy(img image.Image) *Plane {
	gray := effect.Grayscale(img)
	resp := convolution.Convolve(gray, laplacianKernel, &convolution.Options{Bias: laplacianBias, Wrap: false, KeepAlpha: true})

	bounds := resp.Bounds()
	p := NewPlane(bounds.Dx(), bounds.Dy())
	for y := 0; y < p.Height; y++ {
		off := resp.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < p.Width; x++ {
			v := float64(resp.Pix[off+x*4])
			p.Pix[y*p.Width+x] = math.Min(1, math.Abs(v-laplacianBias)/127)
		}
	}
	return p
}
