package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// LabImage holds an image converted to CIE L*a*b* (D65), one plane per
// component.
//
// Values use go-colorful's scale: L in [0, 1] and a, b roughly in [-1, 1],
// i.e. the textbook values divided by 100. Euclidean distances in this space
// track perceived color differences far better than RGB distances, which is
// why color variance is measured here.
type LabImage struct {
	L *Plane
	A *Plane
	B *Plane
}

// ToLab converts img to CIE L*a*b*.
func ToLab(img image.Image) *LabImage {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	lab := &LabImage{L: NewPlane(w, h), A: NewPlane(w, h), B: NewPlane(w, h)}

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				c, ok := colorful.MakeColor(img.At(x+bounds.Min.X, y+bounds.Min.Y))
				if !ok {
					// Fully transparent pixel: treat as black.
					c = colorful.Color{}
				}
				l, a, b := c.Lab()
				i := y*w + x
				lab.L.Pix[i] = l
				lab.A.Pix[i] = a
				lab.B.Pix[i] = b
			}
		}
	})
	return lab
}

// RankColor returns a distinct, fully opaque color for the candidate at the
// given rank. Rank 0 is green; later ranks walk around the hue wheel by the
// golden angle so neighbours stay easy to tell apart.
func RankColor(rank int) color.RGBA {
	hue := math.Mod(120+float64(rank)*137.508, 360)
	r, g, b := colorful.Hsv(hue, 0.85, 0.95).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// HexColor formats c as "#RRGGBB".
func HexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02X%02X%02X", uint8(r>>8), uint8(g>>8), uint8(b>>8))
}
