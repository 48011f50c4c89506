package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestOverlay(t *testing.T) {
	img := createInMemoryImage(200, 200, color.White)
	boxes := []Box{
		{Rect: image.Rect(10, 10, 110, 150), Label: "1"},
		{Rect: image.Rect(120, 20, 190, 118), Label: "2"},
	}

	result, err := Overlay(img, boxes, 2)
	require.NoError(t, err)
	assert.Equal(t, 200, result.Width)
	assert.Equal(t, 200, result.Height)
	assert.Equal(t, "image/png", result.MimeType)
	assert.Equal(t, 2, result.Boxes)

	out := decodeBase64PNG(t, result.ImageBase64)
	assert.Equal(t, RankColor(0), rgbaAt(out, 10, 80), "left edge of the best box")
	assert.Equal(t, RankColor(0), rgbaAt(out, 11, 80), "outline is two pixels wide")
	assert.Equal(t, RankColor(1), rgbaAt(out, 189, 60), "right edge of the second box")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(out, 60, 80), "interior untouched")

	// source not modified
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(10, 80))
}

func TestOverlay_ColorOverride(t *testing.T) {
	img := createInMemoryImage(50, 50, color.Black)
	red := color.RGBA{255, 0, 0, 255}

	result, err := Overlay(img, []Box{{Rect: image.Rect(5, 5, 40, 45), Color: red}}, 1)
	require.NoError(t, err)

	out := decodeBase64PNG(t, result.ImageBase64)
	assert.Equal(t, red, rgbaAt(out, 5, 20))
}

func TestOverlay_ClipsBoxes(t *testing.T) {
	img := createInMemoryImage(30, 30, color.White)
	boxes := []Box{
		{Rect: image.Rect(-10, -10, 20, 20)},
		{Rect: image.Rect(100, 100, 120, 120)},
	}

	result, err := Overlay(img, boxes, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Boxes)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		hex     string
		want    color.RGBA
		wantErr bool
	}{
		{"#FF0000", color.RGBA{255, 0, 0, 255}, false},
		{"#00FF00", color.RGBA{0, 255, 0, 255}, false},
		{"0000FF", color.RGBA{0, 0, 255, 255}, false},
		{"#FF000080", color.RGBA{255, 0, 0, 128}, false},
		{"", color.RGBA{}, true},
		{"#FFF", color.RGBA{}, true},
		{"#GGGGGG", color.RGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			c, err := ParseHexColor(tt.hex)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestDrawLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	fg := color.RGBA{255, 255, 255, 255}
	bg := color.RGBA{0, 0, 0, 255}

	drawLabel(img, 10, 10, "#1 0.95", fg, bg)

	var hasFg, hasBg bool
	for y := 9; y < 17; y++ {
		for x := 9; x < 40; x++ {
			switch img.RGBAAt(x, y) {
			case fg:
				hasFg = true
			case bg:
				hasBg = true
			}
		}
	}
	assert.True(t, hasFg, "label should have text pixels")
	assert.True(t, hasBg, "label should have background pixels")
}

func TestDrawLabel_BoundsCheck(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	fg := color.RGBA{255, 255, 255, 255}
	bg := color.RGBA{0, 0, 0, 180}

	assert.NotPanics(t, func() {
		drawLabel(img, 15, 15, "100", fg, bg)
		drawLabel(img, -5, -5, "abc", fg, bg)
		drawLabel(img, 0, 0, "", fg, bg)
	})
}
