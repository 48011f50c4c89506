package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaster_Validate(t *testing.T) {
	tests := []struct {
		name    string
		raster  *Raster
		wantErr bool
	}{
		{"valid rgba", &Raster{Width: 2, Height: 2, Channels: 4, Pix: make([]byte, 16)}, false},
		{"valid rgb", &Raster{Width: 2, Height: 3, Channels: 3, Pix: make([]byte, 18)}, false},
		{"valid gray", &Raster{Width: 5, Height: 1, Channels: 1, Pix: make([]byte, 5)}, false},
		{"nil", nil, true},
		{"zero width", &Raster{Width: 0, Height: 2, Channels: 1, Pix: nil}, true},
		{"negative height", &Raster{Width: 2, Height: -1, Channels: 1, Pix: nil}, true},
		{"two channels", &Raster{Width: 2, Height: 2, Channels: 2, Pix: make([]byte, 8)}, true},
		{"short buffer", &Raster{Width: 2, Height: 2, Channels: 4, Pix: make([]byte, 15)}, true},
		{"long buffer", &Raster{Width: 2, Height: 2, Channels: 1, Pix: make([]byte, 5)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.raster.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRasterFromImage(t *testing.T) {
	// Non-zero origin must be normalized away.
	src := image.NewRGBA(image.Rect(10, 20, 14, 23))
	src.Set(10, 20, color.RGBA{1, 2, 3, 255})
	src.Set(13, 22, color.RGBA{200, 100, 50, 255})

	r := RasterFromImage(src)
	require.NoError(t, r.Validate())
	assert.Equal(t, 4, r.Width)
	assert.Equal(t, 3, r.Height)
	assert.Equal(t, 4, r.Channels)

	v := r.View()
	red, green, blue := v.RGB(0, 0)
	assert.Equal(t, [3]uint8{1, 2, 3}, [3]uint8{red, green, blue})
	red, green, blue = v.RGB(3, 2)
	assert.Equal(t, [3]uint8{200, 100, 50}, [3]uint8{red, green, blue})
}

func TestView_Accessors(t *testing.T) {
	gray := &Raster{Width: 2, Height: 1, Channels: 1, Pix: []byte{0, 255}}
	v := gray.View()
	assert.Equal(t, 2, v.Width())
	assert.Equal(t, 1, v.Height())
	assert.Equal(t, 1, v.Channels())
	assert.Equal(t, image.Rect(0, 0, 2, 1), v.Bounds())

	r, g, b := v.RGB(1, 0)
	assert.Equal(t, [3]uint8{255, 255, 255}, [3]uint8{r, g, b})
	assert.InDelta(t, 0.0, v.Gray(0, 0), 1e-9)
	assert.InDelta(t, 1.0, v.Gray(1, 0), 1e-9)

	rgb := &Raster{Width: 1, Height: 1, Channels: 3, Pix: []byte{255, 0, 0}}
	assert.InDelta(t, 0.299, rgb.View().Gray(0, 0), 1e-9)
}

func TestView_ImageIsACopy(t *testing.T) {
	r := &Raster{Width: 2, Height: 2, Channels: 3, Pix: make([]byte, 12)}
	img := r.View().Image()
	img.Set(0, 0, color.White)

	assert.Equal(t, byte(0), r.Pix[0], "mutating the copy must not touch the raster")
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(1, 1))
}

func TestView_AsImage(t *testing.T) {
	r := RasterFromImage(createPatternImage(10, 10))
	img := r.View().AsImage()

	assert.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, img.At(1, 1))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.At(9, 9))
	assert.Equal(t, color.NRGBA{}, img.At(10, 10), "outside the bounds is transparent")
}

func TestView_Downscaled(t *testing.T) {
	r := RasterFromImage(createPatternImage(400, 200))

	small, scale := r.View().Downscaled(100)
	assert.Equal(t, 100, small.Bounds().Dx())
	assert.Equal(t, 50, small.Bounds().Dy())
	assert.Equal(t, Scale{X: 4, Y: 4}, scale)

	same, scale := r.View().Downscaled(1000)
	assert.Equal(t, 400, same.Bounds().Dx())
	assert.Equal(t, Identity, scale)
}
