package detection

import (
	"context"
	"math"

	"github.com/ironsheep/card-detect-mcp/internal/imaging"
)

// ColorTextureOptions tunes the color-variance/texture detector.
type ColorTextureOptions struct {
	// WorkingSize is the longest side of the analysis copy in pixels.
	WorkingSize int

	// Scales are window heights (portrait) or widths (landscape) relative to
	// the largest card that fits the image.
	Scales []float64

	// VarianceFloor and TextureFloor are the minimum normalized scores a
	// window needs regardless of the background.
	VarianceFloor float64
	TextureFloor  float64

	// BackgroundRatio is how much busier than the image border a window must be.
	BackgroundRatio float64

	// BorderBand is the share of each dimension sampled as background.
	BorderBand float64

	// MaxCandidates caps the detector's output.
	MaxCandidates int
}

// DefaultColorTextureOptions returns the options used by the ensemble.
func DefaultColorTextureOptions() ColorTextureOptions {
	return ColorTextureOptions{
		WorkingSize:     256,
		Scales:          []float64{0.85, 0.65, 0.5, 0.35},
		VarianceFloor:   0.15,
		TextureFloor:    0.08,
		BackgroundRatio: 1.5,
		BorderBand:      0.06,
		MaxCandidates:   24,
	}
}

// Normalization constants mapping raw statistics to [0, 1].
const (
	// labStdScale is the combined L*a*b* standard deviation (go-colorful
	// units) treated as fully varied.
	labStdScale = 0.40

	// laplacianScale is the mean Laplacian energy treated as fully textured.
	laplacianScale = 0.15

	// windowDedupIoU merges near-identical windows before capping output.
	windowDedupIoU = 0.5
)

// NewColorTextureDetector returns a detector that looks for card-shaped windows
// that are more colorful and more textured than the image background.
//
// Cards carry printed artwork and text, while the surfaces they lie on are
// usually plain. The detector slides card-shaped windows over the image at
// several scales in both orientations (stride: a quarter window) and scores
// each with:
//   - ColorVariance: standard deviation of L*a*b* inside the window
//   - TextureScore: mean Laplacian energy inside the window
//
// The background level is measured on a band around the image border. A window
// is kept when both scores exceed max(floor, BackgroundRatio × background).
// Window statistics come from summed-area tables, so each window costs O(1).
//
// Outputs set ColorVariance and TextureScore and leave the edge and geometry
// signals at zero.
func NewColorTextureDetector(opts ColorTextureOptions) DetectFunc {
	return func(ctx context.Context, v imaging.View) ([]Candidate, error) {
		work, scale := v.Downscaled(opts.WorkingSize)
		lab := imaging.ToLab(work)
		lap := imaging.LaplacianEnergy(work)
		width, height := lab.L.Width, lab.L.Height

		stats := newWindowStats(lab, lap)

		band := opts.BorderBand
		bx := maxInt(2, int(math.Round(band*float64(width))))
		by := maxInt(2, int(math.Round(band*float64(height))))
		bgColor, bgTexture := stats.border(bx, by)

		minColor := math.Max(opts.VarianceFloor, opts.BackgroundRatio*bgColor)
		minTexture := math.Max(opts.TextureFloor, opts.BackgroundRatio*bgTexture)
		minArea := minRegionArea(width, height)

		var windows []scoredRect
		for _, size := range cardWindows(width, height, opts.Scales) {
			if float64(size.w*size.h) < minArea {
				continue
			}
			stepX := maxInt(1, size.w/4)
			stepY := maxInt(1, size.h/4)

			for y := 0; y+size.h <= height; y += stepY {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				for x := 0; x+size.w <= width; x += stepX {
					cv, tex := stats.window(x, y, size.w, size.h)
					if cv < minColor || tex < minTexture {
						continue
					}
					windows = append(windows, scoredRect{
						rect:    Rect{X: x, Y: y, Width: size.w, Height: size.h},
						score:   (cv + tex) / 2,
						color:   cv,
						texture: tex,
					})
				}
			}
		}

		kept := suppressScored(windows, windowDedupIoU)
		if opts.MaxCandidates > 0 && len(kept) > opts.MaxCandidates {
			kept = kept[:opts.MaxCandidates]
		}

		cands := make([]Candidate, 0, len(kept))
		for _, w := range kept {
			r := w.rect
			c := NewCandidate(scaleRect(r.X, r.Y, r.X+r.Width, r.Y+r.Height, scale), MethodColorTexture)
			c.ColorVariance = w.color
			c.TextureScore = w.texture
			cands = append(cands, c)
		}
		return cands, nil
	}
}

type windowSize struct {
	w, h int
}

// cardWindows lists card-shaped window sizes for a width x height image, in
// portrait and landscape orientation, largest first.
func cardWindows(width, height int, scales []float64) []windowSize {
	// Largest portrait card: limited by height, or by width / T.
	portraitH := math.Min(float64(height), float64(width)/TargetAspect)
	// Largest landscape card: its long side runs horizontally.
	landscapeW := math.Min(float64(width), float64(height)/TargetAspect)

	sizes := make([]windowSize, 0, 2*len(scales))
	for _, s := range scales {
		ph := int(s * portraitH)
		pw := int(float64(ph) * TargetAspect)
		if pw >= 2 && ph >= 2 {
			sizes = append(sizes, windowSize{pw, ph})
		}
		lw := int(s * landscapeW)
		lh := int(float64(lw) * TargetAspect)
		if lw >= 2 && lh >= 2 {
			sizes = append(sizes, windowSize{lw, lh})
		}
	}
	return sizes
}

// windowStats answers mean/variance queries over rectangles in O(1) using
// summed-area tables of each L*a*b* channel, their squares, and the Laplacian.
type windowStats struct {
	width, height int
	sums          [3]*integral
	squares       [3]*integral
	texture       *integral
}

func newWindowStats(lab *imaging.LabImage, lap *imaging.Plane) *windowStats {
	ws := &windowStats{width: lab.L.Width, height: lab.L.Height}
	for i, p := range []*imaging.Plane{lab.L, lab.A, lab.B} {
		ws.sums[i] = newIntegral(p, false)
		ws.squares[i] = newIntegral(p, true)
	}
	ws.texture = newIntegral(lap, false)
	return ws
}

// raw returns the summed channel moments and Laplacian energy over a rectangle
// along with its pixel count.
func (ws *windowStats) raw(x, y, w, h int) (sum, sq [3]float64, tex, n float64) {
	for c := 0; c < 3; c++ {
		sum[c] = ws.sums[c].sum(x, y, w, h)
		sq[c] = ws.squares[c].sum(x, y, w, h)
	}
	return sum, sq, ws.texture.sum(x, y, w, h), float64(w * h)
}

// window returns the normalized color variance and texture score of a rectangle.
func (ws *windowStats) window(x, y, w, h int) (colorVariance, texture float64) {
	sum, sq, tex, n := ws.raw(x, y, w, h)
	return normalizeStats(sum, sq, tex, n)
}

// border returns the normalized scores of the band of width bx (left/right) and
// height by (top/bottom) around the image edge.
func (ws *windowStats) border(bx, by int) (colorVariance, texture float64) {
	w, h := ws.width, ws.height
	bx = minInt(bx, w)
	by = minInt(by, h)

	type region struct{ x, y, w, h int }
	regions := []region{
		{0, 0, w, by},
		{0, h - by, w, by},
		{0, by, bx, h - 2*by},
		{w - bx, by, bx, h - 2*by},
	}

	var sum, sq [3]float64
	var tex, n float64
	for _, r := range regions {
		if r.w <= 0 || r.h <= 0 {
			continue
		}
		s, q, t, c := ws.raw(r.x, r.y, r.w, r.h)
		for i := 0; i < 3; i++ {
			sum[i] += s[i]
			sq[i] += q[i]
		}
		tex += t
		n += c
	}
	return normalizeStats(sum, sq, tex, n)
}

func normalizeStats(sum, sq [3]float64, tex, n float64) (colorVariance, texture float64) {
	if n <= 0 {
		return 0, 0
	}
	var variance float64
	for c := 0; c < 3; c++ {
		mean := sum[c] / n
		variance += math.Max(0, sq[c]/n-mean*mean)
	}
	return clamp01(math.Sqrt(variance) / labStdScale), clamp01(tex / n / laplacianScale)
}

// integral is a summed-area table with one row and column of zero padding.
type integral struct {
	stride int
	data   []float64
}

func newIntegral(p *imaging.Plane, squared bool) *integral {
	stride := p.Width + 1
	it := &integral{stride: stride, data: make([]float64, stride*(p.Height+1))}
	for y := 0; y < p.Height; y++ {
		var row float64
		for x := 0; x < p.Width; x++ {
			v := p.Pix[y*p.Width+x]
			if squared {
				v *= v
			}
			row += v
			it.data[(y+1)*stride+x+1] = it.data[y*stride+x+1] + row
		}
	}
	return it
}

func (it *integral) sum(x, y, w, h int) float64 {
	s := it.stride
	x1, y1 := x+w, y+h
	return it.data[y1*s+x1] - it.data[y*s+x1] - it.data[y1*s+x] + it.data[y*s+x]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
