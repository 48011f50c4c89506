package detection

import (
	"image"
	"image/color"
	"math"

	"github.com/ironsheep/card-detect-mcp/internal/imaging"
)

// solidImage creates an image filled with a single color.
func solidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// fillRect paints r on img.
func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// checkerRect paints r with a checkerboard of two colors and the given cell size.
func checkerRect(img *image.RGBA, r image.Rectangle, cellSize int, a, b color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if ((x-r.Min.X)/cellSize+(y-r.Min.Y)/cellSize)%2 == 0 {
				img.Set(x, y, a)
			} else {
				img.Set(x, y, b)
			}
		}
	}
}

// darkCardView is a white 600x800 image with a solid dark card at
// (100,100)-(400,520), i.e. 300x420 pixels.
func darkCardView() (imaging.View, Rect) {
	img := solidImage(600, 800, color.White)
	card := image.Rect(100, 100, 400, 520)
	fillRect(img, card, color.RGBA{20, 20, 20, 255})
	return imaging.RasterFromImage(img).View(), RectFromImage(card)
}

func blankView(width, height int) imaging.View {
	return imaging.RasterFromImage(solidImage(width, height, color.White)).View()
}

// within reports whether every edge of got is within tol pixels of want.
func within(got, want Rect, tol int) bool {
	return absInt(got.X-want.X) <= tol &&
		absInt(got.Y-want.Y) <= tol &&
		absInt(got.X+got.Width-want.X-want.Width) <= tol &&
		absInt(got.Y+got.Height-want.Y-want.Height) <= tol
}

// rotatedCardView is a white 600x800 image with a dark 250x350 card centred
// at (300,400) and turned by degrees. The returned rect is the card's
// axis-aligned bounding box.
func rotatedCardView(degrees float64) (imaging.View, Rect) {
	const cx, cy, halfW, halfH = 300.0, 400.0, 125.0, 175.0
	img := solidImage(600, 800, color.White)
	sin, cos := math.Sincos(degrees * math.Pi / 180)
	for y := 0; y < 800; y++ {
		for x := 0; x < 600; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			u := dx*cos + dy*sin
			v := -dx*sin + dy*cos
			if math.Abs(u) <= halfW && math.Abs(v) <= halfH {
				img.Set(x, y, color.RGBA{20, 20, 20, 255})
			}
		}
	}
	extentX := halfW*cos + halfH*sin
	extentY := halfW*sin + halfH*cos
	bbox := Rect{
		X:      int(math.Round(cx - extentX)),
		Y:      int(math.Round(cy - extentY)),
		Width:  int(math.Round(2 * extentX)),
		Height: int(math.Round(2 * extentY)),
	}
	return imaging.RasterFromImage(img).View(), bbox
}

// twoCardsView is a white 160x120 image with two dark 46x64 cards side by
// side and a 44px gap between them.
func twoCardsView() (imaging.View, Rect, Rect) {
	img := solidImage(160, 120, color.White)
	left := image.Rect(10, 30, 56, 94)
	right := image.Rect(100, 30, 146, 94)
	fillRect(img, left, color.RGBA{20, 20, 20, 255})
	fillRect(img, right, color.RGBA{20, 20, 20, 255})
	return imaging.RasterFromImage(img).View(), RectFromImage(left), RectFromImage(right)
}
