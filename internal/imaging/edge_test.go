package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeDetect(t *testing.T) {
	img := createEdgeTestImage(100, 100)

	result, err := EdgeDetect(img, 50, 150)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Width)
	assert.Equal(t, 100, result.Height)
	assert.Equal(t, "image/png", result.MimeType)

	edgeImg := decodeBase64PNG(t, result.ImageBase64)
	assert.Equal(t, image.Rect(0, 0, 100, 100), edgeImg.Bounds())
}

func TestEdgeDetect_DifferentThresholds(t *testing.T) {
	img := createEdgeTestImage(50, 50)

	tests := []struct {
		name      string
		low, high int
	}{
		{"low thresholds", 10, 50},
		{"medium thresholds", 50, 150},
		{"high thresholds", 100, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EdgeDetect(img, tt.low, tt.high)
			require.NoError(t, err)
			assert.NotEmpty(t, result.ImageBase64)
		})
	}
}

func TestEdgeDetect_UniformImage(t *testing.T) {
	img := createInMemoryImage(50, 50, color.RGBA{128, 128, 128, 255})

	result, err := EdgeDetect(img, 50, 150)
	require.NoError(t, err)

	edgeImg := decodeBase64PNG(t, result.ImageBase64)
	r, _, _, _ := edgeImg.At(25, 25).RGBA()
	assert.Zero(t, r, "uniform image has no edges")
}

func TestEdgeDetect_StrongEdge(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}

	result, err := EdgeDetect(img, 50, 150)
	require.NoError(t, err)
	edgeImg := decodeBase64PNG(t, result.ImageBase64)

	edgeFound := false
	for x := 48; x <= 52; x++ {
		if r, _, _, _ := edgeImg.At(x, 50).RGBA(); r > 0 {
			edgeFound = true
			break
		}
	}
	assert.True(t, edgeFound, "strong vertical edge was not detected")
}

func TestEdgeDetect_SmallImage(t *testing.T) {
	img := createInMemoryImage(5, 5, color.RGBA{128, 128, 128, 255})

	result, err := EdgeDetect(img, 50, 150)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Width)
	assert.Equal(t, 5, result.Height)
}

func TestLuminance(t *testing.T) {
	img := createPatternImage(4, 4)
	p := Luminance(img)

	require.Equal(t, 4, p.Width)
	require.Equal(t, 4, p.Height)
	assert.InDelta(t, 0.299, p.At(0, 0), 1e-6)
	assert.InDelta(t, 0.587, p.At(3, 0), 1e-6)
	assert.InDelta(t, 0.114, p.At(0, 3), 1e-6)
	assert.InDelta(t, 1.0, p.At(3, 3), 1e-6)
}

func TestSobel_Uniform(t *testing.T) {
	p := NewPlane(8, 8)
	for i := range p.Pix {
		p.Pix[i] = 0.5
	}
	g := Sobel(p)
	for _, m := range g.Magnitude.Pix {
		assert.Zero(t, m)
	}
}

func TestSobel_Step(t *testing.T) {
	p := NewPlane(10, 5)
	for y := 0; y < 5; y++ {
		for x := 5; x < 10; x++ {
			p.Pix[y*10+x] = 1
		}
	}
	g := Sobel(p)

	assert.InDelta(t, 1.0, g.Magnitude.At(4, 2), 1e-9, "ideal step scores 1")
	assert.InDelta(t, 1.0, g.Magnitude.At(5, 2), 1e-9)
	assert.Zero(t, g.Magnitude.At(1, 2))
	assert.InDelta(t, 0.0, g.Direction.At(4, 2), 1e-9, "gradient points right")
}

func TestEdgeMap(t *testing.T) {
	img := createEdgeTestImage(40, 40)

	sharp := EdgeMap(img, 0)
	blurred := EdgeMap(img, 2)

	assert.InDelta(t, 1.0, sharp.Magnitude.At(9, 20), 1e-6)
	assert.Less(t, blurred.Magnitude.At(9, 20), sharp.Magnitude.At(9, 20), "blur softens the step")
	assert.Zero(t, sharp.Magnitude.At(20, 20), "no edge inside the rectangle")
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, min, max, want int
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{15, 0, 10, 10},
		{0, 0, 10, 0},
		{10, 0, 10, 10},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, clamp(tt.val, tt.min, tt.max), "clamp(%d, %d, %d)", tt.val, tt.min, tt.max)
	}
}
