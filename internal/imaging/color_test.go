package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLab_KnownColors(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	img.Set(0, 0, color.NRGBA{255, 255, 255, 255})
	img.Set(1, 0, color.NRGBA{0, 0, 0, 255})
	img.Set(2, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(3, 0, color.NRGBA{255, 0, 0, 0}) // fully transparent

	lab := ToLab(img)
	require.Equal(t, 4, lab.L.Width)
	require.Equal(t, 1, lab.L.Height)

	// white
	assert.InDelta(t, 1.0, lab.L.At(0, 0), 0.01)
	assert.InDelta(t, 0.0, lab.A.At(0, 0), 0.01)
	assert.InDelta(t, 0.0, lab.B.At(0, 0), 0.01)

	// black
	assert.InDelta(t, 0.0, lab.L.At(1, 0), 0.01)

	// red: strongly positive a*
	assert.Greater(t, lab.A.At(2, 0), 0.5)
	assert.Greater(t, lab.B.At(2, 0), 0.4)

	// transparent reads as black
	assert.InDelta(t, 0.0, lab.L.At(3, 0), 0.01)
}

func TestToLab_NonZeroOrigin(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 5, 7, 6))
	img.Set(6, 5, color.White)

	lab := ToLab(img)
	assert.InDelta(t, 0.0, lab.L.At(0, 0), 0.01)
	assert.InDelta(t, 1.0, lab.L.At(1, 0), 0.01)
}

func TestRankColor(t *testing.T) {
	first := RankColor(0)
	assert.Equal(t, uint8(255), first.A)
	assert.Greater(t, first.G, first.R, "rank 0 is green")
	assert.Greater(t, first.G, first.B, "rank 0 is green")

	seen := map[color.RGBA]bool{}
	for i := 0; i < 8; i++ {
		c := RankColor(i)
		assert.False(t, seen[c], "rank %d repeats an earlier color", i)
		seen[c] = true
	}
}

func TestHexColor(t *testing.T) {
	tests := []struct {
		c    color.Color
		want string
	}{
		{color.RGBA{255, 128, 0, 255}, "#FF8000"},
		{color.Black, "#000000"},
		{color.White, "#FFFFFF"},
		{color.RGBA{0x12, 0x34, 0x56, 255}, "#123456"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HexColor(tt.c))
	}
}
