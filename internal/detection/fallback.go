package detection

import (
	"math"
)

// Tiler places heuristic card-sized regions when no detector found anything.
//
// The regions are guesses, not detections: their confidences are fixed and
// deliberately below DefaultMinConfidence so callers can tell them apart.
type Tiler struct {
	// Scales are card widths relative to the image width, largest first.
	Scales []float64

	// MaxCandidates caps the output.
	MaxCandidates int

	// MaxOverlap is the largest IoU allowed between two emitted regions.
	MaxOverlap float64
}

// DefaultTiler returns the tiler used by the pipeline.
func DefaultTiler() Tiler {
	return Tiler{
		Scales:        []float64{0.45, 0.35, 0.25},
		MaxCandidates: 3,
		MaxOverlap:    0.3,
	}
}

// Tile returns the default tiler's regions for a width x height image.
func Tile(width, height int) []Candidate {
	return DefaultTiler().Tile(width, height)
}

// Fallback confidence: the first region gets fallbackBase, each later one
// fallbackStep less.
const (
	fallbackBase = 0.35
	fallbackStep = 0.05
)

// Quadrant centers as fractions of the image, in rotation order TL, TR, BL, BR.
var anchors = [4][2]float64{
	{0.25, 0.25},
	{0.75, 0.25},
	{0.25, 0.75},
	{0.75, 0.75},
}

// Tile returns between one and MaxCandidates card-proportioned regions fully
// inside a width x height image. It returns nil for a non-positive size.
//
// For each scale whose card fits the image, a region is centered on each
// quadrant anchor (clamped inside the image). Scale k starts its anchor
// rotation at anchor k, so the first pick of every scale lands in a different
// quadrant. Selection takes the first region of every fitting scale, then
// fills up from the remaining regions in order while the overlap with all
// picked regions stays within MaxOverlap. If no scale fits, a single centered
// card 90% of the image height is returned.
func (t Tiler) Tile(width, height int) []Candidate {
	if width <= 0 || height <= 0 {
		return nil
	}
	maxOut := t.MaxCandidates
	if maxOut <= 0 {
		maxOut = 1
	}

	// per-scale candidate lists in rotation order
	var perScale [][]Rect
	for k, s := range t.Scales {
		cw := int(math.Round(s * float64(width)))
		ch := int(math.Round(float64(cw) / TargetAspect))
		if cw < 1 || ch < 1 || cw > width || ch > height {
			continue
		}
		rects := make([]Rect, 0, len(anchors))
		for i := 0; i < len(anchors); i++ {
			a := anchors[(k+i)%len(anchors)]
			rects = append(rects, anchoredRect(a[0], a[1], cw, ch, width, height))
		}
		perScale = append(perScale, rects)
	}

	if len(perScale) == 0 {
		return []Candidate{fallbackCandidate(centeredCard(width, height), 0)}
	}

	picked := make([]Rect, 0, maxOut)
	fits := func(r Rect) bool {
		for _, p := range picked {
			if p.IoU(r) > t.MaxOverlap {
				return false
			}
		}
		return true
	}

	for _, rects := range perScale {
		if len(picked) == maxOut {
			break
		}
		if fits(rects[0]) {
			picked = append(picked, rects[0])
		}
	}
	for _, rects := range perScale {
		for _, r := range rects[1:] {
			if len(picked) == maxOut {
				break
			}
			if fits(r) {
				picked = append(picked, r)
			}
		}
	}

	cands := make([]Candidate, 0, len(picked))
	for rank, r := range picked {
		cands = append(cands, fallbackCandidate(r, rank))
	}
	return cands
}

// anchoredRect centers a cw x ch rectangle on (fx·width, fy·height) and
// shifts it inside the image.
func anchoredRect(fx, fy float64, cw, ch, width, height int) Rect {
	x := int(math.Round(fx*float64(width) - float64(cw)/2))
	y := int(math.Round(fy*float64(height) - float64(ch)/2))
	return Rect{
		X:      clampInt(x, 0, width-cw),
		Y:      clampInt(y, 0, height-ch),
		Width:  cw,
		Height: ch,
	}
}

// centeredCard is the last-resort region for images too narrow for any scale.
func centeredCard(width, height int) Rect {
	ch := maxInt(1, int(math.Round(0.9*float64(height))))
	cw := maxInt(1, int(math.Round(float64(ch)*TargetAspect)))
	if cw > width {
		cw = width
		ch = minInt(height, maxInt(1, int(math.Round(float64(cw)/TargetAspect))))
	}
	return Rect{X: (width - cw) / 2, Y: (height - ch) / 2, Width: cw, Height: ch}
}

func fallbackCandidate(r Rect, rank int) Candidate {
	c := NewCandidate(r, MethodFallbackGrid)
	c.Confidence = math.Max(0, fallbackBase-fallbackStep*float64(rank))
	return c
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
