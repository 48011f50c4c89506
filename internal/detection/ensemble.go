package detection

import (
	"sort"

	"github.com/samber/lo"
)

// Weights are the per-signal weights used to fuse candidate scores.
type Weights struct {
	Edge          float64 `json:"edge"`
	Geometry      float64 `json:"geometry"`
	ColorVariance float64 `json:"color_variance"`
	Texture       float64 `json:"texture"`
	Aspect        float64 `json:"aspect"`
}

// DefaultWeights favor outline evidence over appearance evidence, but each
// detector can clear DefaultMinConfidence on the signals it measures:
// edge-geometry up to 0.70, color-texture and aspect-scan up to 0.50.
func DefaultWeights() Weights {
	return Weights{
		Edge:          0.20,
		Geometry:      0.30,
		ColorVariance: 0.15,
		Texture:       0.15,
		Aspect:        0.20,
	}
}

func (w Weights) total() float64 {
	return w.Edge + w.Geometry + w.ColorVariance + w.Texture + w.Aspect
}

// Combiner fuses raw detector output into a ranked, de-duplicated candidate
// list.
type Combiner struct {
	Weights       Weights
	DedupIoU      float64
	MinConfidence float64
	MaxCandidates int
}

// NewCombiner returns a Combiner with the package defaults.
func NewCombiner() *Combiner {
	return &Combiner{
		Weights:       DefaultWeights(),
		DedupIoU:      DefaultDedupIoU,
		MinConfidence: DefaultMinConfidence,
		MaxCandidates: DefaultMaxCandidates,
	}
}

// Fuse returns the weighted mean of c's signals plus its aspect match, in
// [0, 1]. The aspect match is taken from the card's own sides (CardAspect),
// so a mildly rotated card is not penalized for its wider bounds.
//
// Each detector owns some signals and leaves the others at zero, so scores
// are only comparable within the ceiling of each detector. Duplicates across
// detectors are resolved by Suppress; their signals are never merged.
func (cb *Combiner) Fuse(c Candidate) float64 {
	w := cb.Weights
	total := w.total()
	if total <= 0 {
		return 0
	}
	score := w.Edge*clamp01(c.EdgeStrength) +
		w.Geometry*clamp01(c.GeometryScore) +
		w.ColorVariance*clamp01(c.ColorVariance) +
		w.Texture*clamp01(c.TextureScore) +
		w.Aspect*AspectMatch(c.CardAspect())
	return clamp01(score / total)
}

// Combine scores every candidate with Fuse, suppresses duplicates, and applies
// the confidence floor and output cap. The input is not modified.
//
// Combine is idempotent: feeding its output back in yields the same list.
func (cb *Combiner) Combine(raw []Candidate) []Candidate {
	scored := lo.Map(raw, func(c Candidate, _ int) Candidate {
		c.Confidence = cb.Fuse(c)
		return c
	})
	return Accept(Suppress(scored, cb.DedupIoU), cb.MinConfidence, cb.MaxCandidates)
}

// Suppress performs greedy non-maximum suppression.
//
// Candidates are visited best-first (see SortByConfidence). A candidate is
// kept only if its IoU with every already kept candidate is below threshold;
// kept candidates are returned unchanged. The result is sorted best-first.
func Suppress(cands []Candidate, threshold float64) []Candidate {
	ordered := make([]Candidate, len(cands))
	copy(ordered, cands)
	SortByConfidence(ordered)

	kept := make([]Candidate, 0, len(ordered))
	for _, c := range ordered {
		overlaps := lo.ContainsBy(kept, func(k Candidate) bool {
			return k.Bounds.IoU(c.Bounds) >= threshold
		})
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept
}

// Accept drops candidates below minConfidence, sorts the rest best-first and
// keeps at most maxCandidates (no cap when maxCandidates <= 0).
func Accept(cands []Candidate, minConfidence float64, maxCandidates int) []Candidate {
	kept := lo.Filter(cands, func(c Candidate, _ int) bool {
		return c.Confidence >= minConfidence
	})
	SortByConfidence(kept)
	if maxCandidates > 0 && len(kept) > maxCandidates {
		kept = kept[:maxCandidates]
	}
	return kept
}

// scoredRect is a detector-internal window with its raw scores, used before
// candidates are built.
type scoredRect struct {
	rect    Rect
	score   float64
	color   float64
	texture float64
}

// suppressScored is Suppress for raw windows, ordered by score.
func suppressScored(items []scoredRect, threshold float64) []scoredRect {
	ordered := make([]scoredRect, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].rect.Area() > ordered[j].rect.Area()
	})

	kept := make([]scoredRect, 0)
	for _, it := range ordered {
		overlaps := lo.ContainsBy(kept, func(k scoredRect) bool {
			return k.rect.IoU(it.rect) >= threshold
		})
		if !overlaps {
			kept = append(kept, it)
		}
	}
	return kept
}
