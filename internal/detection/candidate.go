package detection

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/card-detect-mcp/internal/imaging"
)

// Method identifies the tier or strategy that produced a Candidate.
type Method string

// The closed set of detection strategies.
const (
	MethodAIVision     Method = "ai-vision"
	MethodEdgeGeometry Method = "edge-geometry"
	MethodColorTexture Method = "color-texture"
	MethodAspectScan   Method = "aspect-scan"
	MethodFallbackGrid Method = "fallback-grid"
)

// Card geometry and filtering defaults.
const (
	// TargetAspect is the width/height ratio of a standard 2.5" x 3.5" card.
	TargetAspect = 2.5 / 3.5

	// AspectTolerance is the allowed deviation from TargetAspect, applied to
	// the portrait and landscape orientation alike.
	AspectTolerance = 0.15

	// MinAreaFraction rejects regions smaller than this share of the image.
	MinAreaFraction = 0.005

	// DefaultDedupIoU is the overlap above which two candidates are duplicates.
	DefaultDedupIoU = 0.3

	// DefaultMinConfidence drops weak candidates after fusion.
	DefaultMinConfidence = 0.4

	// DefaultMaxCandidates bounds the number of candidates per image.
	DefaultMaxCandidates = 8

	// MinCardWidth and MinCardHeight are the smallest image dimensions for
	// which the fallback tiler can still place a card.
	MinCardWidth  = 32
	MinCardHeight = 45
)

// Point is a 2D position in source-image pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in source-image pixels.
// (X, Y) is the inclusive top-left corner; X+Width and Y+Height are exclusive.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns Width*Height, or 0 for an empty rectangle.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// ImageRect converts r to an image.Rectangle.
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// RectFromImage converts an image.Rectangle to a Rect.
func RectFromImage(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Clip returns r intersected with [0,width] x [0,height].
// The result may be empty when r lies entirely outside the image.
func (r Rect) Clip(width, height int) Rect {
	return RectFromImage(r.ImageRect().Intersect(image.Rect(0, 0, width, height)))
}

// Within reports whether r lies fully inside [0,width] x [0,height].
func (r Rect) Within(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.Width <= width && r.Y+r.Height <= height
}

// IoU returns the intersection-over-union of two rectangles in [0, 1].
func (r Rect) IoU(o Rect) float64 {
	inter := RectFromImage(r.ImageRect().Intersect(o.ImageRect())).Area()
	if inter == 0 {
		return 0
	}
	union := r.Area() + o.Area() - inter
	return float64(inter) / float64(union)
}

// Corners returns the rectangle's corners ordered TL, TR, BR, BL.
func (r Rect) Corners() [4]Point {
	x0, y0 := float64(r.X), float64(r.Y)
	x1, y1 := float64(r.X+r.Width), float64(r.Y+r.Height)
	return [4]Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// scaleRect maps a rectangle from working-copy coordinates back to the source
// image. The far edges are rounded independently so adjacent rectangles stay
// adjacent after scaling.
func scaleRect(x0, y0, x1, y1 int, s imaging.Scale) Rect {
	sx0 := int(math.Round(float64(x0) * s.X))
	sy0 := int(math.Round(float64(y0) * s.Y))
	sx1 := int(math.Round(float64(x1) * s.X))
	sy1 := int(math.Round(float64(y1) * s.Y))
	return Rect{X: sx0, Y: sy0, Width: sx1 - sx0, Height: sy1 - sy0}
}

func dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// quadSides returns the mean length of the top and bottom sides and of the
// left and right sides of a TL, TR, BR, BL quadrilateral.
func quadSides(q [4]Point) (width, height float64) {
	width = (dist(q[0], q[1]) + dist(q[3], q[2])) / 2
	height = (dist(q[0], q[3]) + dist(q[1], q[2])) / 2
	return width, height
}

// Candidate is one detected card region and its per-signal scores.
//
// Candidates are plain values. Every stage of the pipeline builds new
// candidates instead of editing the ones it was given.
type Candidate struct {
	Bounds      Rect     `json:"bounds"`
	Corners     [4]Point `json:"corners"`
	AspectRatio float64  `json:"aspect_ratio"`

	// Independent signals in [0, 1], each owned by exactly one detector.
	EdgeStrength  float64 `json:"edge_strength"`
	GeometryScore float64 `json:"geometry_score"`
	ColorVariance float64 `json:"color_variance"`
	TextureScore  float64 `json:"texture_score"`

	Confidence float64 `json:"confidence"`
	Method     Method  `json:"method"`
}

// NewCandidate returns a candidate for bounds with rectangular corners and the
// aspect ratio derived from bounds.
func NewCandidate(bounds Rect, method Method) Candidate {
	return Candidate{
		Bounds:      bounds,
		Corners:     bounds.Corners(),
		AspectRatio: aspectOf(bounds),
		Method:      method,
	}
}

// CardAspect is the width/height ratio of the card itself, measured along the
// sides of Corners. It differs from AspectRatio for rotated cards, whose
// axis-aligned bounds are wider than the card. Candidates without usable
// corners fall back to AspectRatio of their bounds.
func (c Candidate) CardAspect() float64 {
	w, h := quadSides(c.Corners)
	if w <= 0 || h <= 0 {
		return aspectOf(c.Bounds)
	}
	return w / h
}

func aspectOf(r Rect) float64 {
	if r.Height <= 0 {
		return 0
	}
	return float64(r.Width) / float64(r.Height)
}

// AspectDeviation returns how far ratio is from a card in either orientation:
// min(|ratio - T|, |1/ratio - T|).
func AspectDeviation(ratio float64) float64 {
	if ratio <= 0 {
		return math.Inf(1)
	}
	return math.Min(math.Abs(ratio-TargetAspect), math.Abs(1/ratio-TargetAspect))
}

// AspectMatch scores ratio in [0, 1]: 1 for an exact card ratio, 0 at or
// beyond the tolerance.
func AspectMatch(ratio float64) float64 {
	return 1 - math.Min(1, AspectDeviation(ratio)/AspectTolerance)
}

// inAspectTolerance reports whether a width x height region is card-shaped.
func inAspectTolerance(width, height float64) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	return AspectDeviation(width/height) <= AspectTolerance
}

// Sanitize drops candidates with empty bounds, clips the rest to a width x
// height image and drops the ones left empty. Corners are clamped into the
// clipped bounds, or rebuilt from them when degenerate. All scores are
// clamped into [0, 1] and the aspect ratio is recomputed.
// The input slice is not modified.
func Sanitize(cands []Candidate, width, height int) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Bounds.Empty() {
			continue
		}
		b := c.Bounds.Clip(width, height)
		if b.Empty() {
			continue
		}
		c.Bounds = b
		c.Corners = fitCorners(c.Corners, b)
		c.AspectRatio = aspectOf(b)
		c.EdgeStrength = clamp01(c.EdgeStrength)
		c.GeometryScore = clamp01(c.GeometryScore)
		c.ColorVariance = clamp01(c.ColorVariance)
		c.TextureScore = clamp01(c.TextureScore)
		c.Confidence = clamp01(c.Confidence)
		out = append(out, c)
	}
	return out
}

// fitCorners clamps q into b. A quad that collapses to a line or a point is
// replaced by the corners of b.
func fitCorners(q [4]Point, b Rect) [4]Point {
	x0, y0 := float64(b.X), float64(b.Y)
	x1, y1 := float64(b.X+b.Width), float64(b.Y+b.Height)
	for i := range q {
		q[i].X = math.Max(x0, math.Min(x1, q[i].X))
		q[i].Y = math.Max(y0, math.Min(y1, q[i].Y))
	}
	if w, h := quadSides(q); w < 1 || h < 1 {
		return b.Corners()
	}
	return q
}

// SortByConfidence orders candidates best-first in place.
//
// Ties are broken by larger area, then by position, so the order is fully
// deterministic.
func SortByConfidence(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return rankLess(cands[i], cands[j])
	})
}

func rankLess(a, b Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if aa, ba := a.Bounds.Area(), b.Bounds.Area(); aa != ba {
		return aa > ba
	}
	if a.Bounds.Y != b.Bounds.Y {
		return a.Bounds.Y < b.Bounds.Y
	}
	return a.Bounds.X < b.Bounds.X
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
