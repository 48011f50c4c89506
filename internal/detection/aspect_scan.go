package detection

import (
	"context"
	"math"
	"sort"

	"github.com/ironsheep/card-detect-mcp/internal/imaging"
	"gonum.org/v1/gonum/stat"
)

// AspectScanOptions tunes the aspect-ratio scanner.
type AspectScanOptions struct {
	// WorkingSize is the longest side of the analysis copy in pixels.
	WorkingSize int

	// PeakSigma is how many standard deviations above the mean a projection
	// value must be to count as a line.
	PeakSigma float64

	// MinPeak is an absolute floor on line strength, so flat images yield no
	// lines at all.
	MinPeak float64

	// MaxLines caps the lines kept per axis.
	MaxLines int

	// MinSeparation merges peaks closer than this many working pixels.
	MinSeparation int

	// StepThreshold is the luminance step (0-1) a pixel of a side needs to
	// count as lying on an edge.
	StepThreshold float64

	// MinSideSupport is the share of each side that must lie on an edge.
	// Lines found by projection run across the whole image, so without it two
	// cards side by side also yield the rectangle spanning the gap between
	// them.
	MinSideSupport float64

	// MaxCandidates caps the detector's output.
	MaxCandidates int
}

// DefaultAspectScanOptions returns the options used by the ensemble.
func DefaultAspectScanOptions() AspectScanOptions {
	return AspectScanOptions{
		WorkingSize:    160,
		PeakSigma:      1.5,
		MinPeak:        0.02,
		MaxLines:       8,
		MinSeparation:  3,
		StepThreshold:  0.05,
		MinSideSupport: 0.8,
		MaxCandidates:  16,
	}
}

// NewAspectScanDetector returns a detector that pairs strong straight lines into
// card-proportioned rectangles.
//
// # Algorithm
//
//  1. Downscale to WorkingSize and compute luminance
//  2. Project the horizontal gradient onto columns and the vertical gradient
//     onto rows; each profile value is the mean absolute step across that line
//  3. Keep local maxima above max(MinPeak, mean + PeakSigma·σ) as candidate
//     vertical and horizontal lines
//  4. Every pair of vertical lines combined with every pair of horizontal
//     lines forms a rectangle; rectangles within the aspect tolerance go on
//     to the side check
//  5. Support of a side is the share of its pixels with a luminance step of
//     at least StepThreshold across it. Rectangles whose weakest side is
//     below MinSideSupport are dropped; the rest become candidates with
//     GeometryScore = (1 - deviation/tolerance) × weakest support
//
// The scan is cheap and finds cards whose outline is broken up by glare or
// sleeves, where contour tracing fails. Only GeometryScore is set.
func NewAspectScanDetector(opts AspectScanOptions) DetectFunc {
	return func(ctx context.Context, v imaging.View) ([]Candidate, error) {
		work, scale := v.Downscaled(opts.WorkingSize)
		lum := imaging.Luminance(work)
		width, height := lum.Width, lum.Height
		if width < 3 || height < 3 {
			return []Candidate{}, nil
		}

		cols, rows := projectGradients(lum)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		xs := findPeaks(cols, opts)
		ys := findPeaks(rows, opts)
		sort.Ints(xs)
		sort.Ints(ys)

		minArea := minRegionArea(width, height)
		cands := make([]Candidate, 0)
		for i := 0; i < len(xs); i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for j := i + 1; j < len(xs); j++ {
				w := xs[j] - xs[i] + 1
				for k := 0; k < len(ys); k++ {
					for l := k + 1; l < len(ys); l++ {
						h := ys[l] - ys[k] + 1
						if float64(w*h) < minArea || !inAspectTolerance(float64(w), float64(h)) {
							continue
						}
						support := rectSupport(lum, xs[i], ys[k], xs[j], ys[l], opts.StepThreshold)
						if support < opts.MinSideSupport {
							continue
						}
						c := NewCandidate(scaleRect(xs[i], ys[k], xs[j]+1, ys[l]+1, scale), MethodAspectScan)
						c.GeometryScore = AspectMatch(float64(w)/float64(h)) * support
						cands = append(cands, c)
					}
				}
			}
		}

		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].GeometryScore != cands[j].GeometryScore {
				return cands[i].GeometryScore > cands[j].GeometryScore
			}
			return cands[i].Bounds.Area() > cands[j].Bounds.Area()
		})
		if opts.MaxCandidates > 0 && len(cands) > opts.MaxCandidates {
			cands = cands[:opts.MaxCandidates]
		}
		return cands, nil
	}
}

// projectGradients returns, per column, the mean absolute horizontal
// luminance step, and per row, the mean absolute vertical step. Central
// differences are used, so the outermost lines stay zero.
func projectGradients(p *imaging.Plane) (cols, rows []float64) {
	w, h := p.Width, p.Height
	cols = make([]float64, w)
	rows = make([]float64, h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x > 0 && x < w-1 {
				cols[x] += math.Abs(p.At(x+1, y)-p.At(x-1, y)) / 2
			}
			if y > 0 && y < h-1 {
				rows[y] += math.Abs(p.At(x, y+1)-p.At(x, y-1)) / 2
			}
		}
	}
	for x := range cols {
		cols[x] /= float64(h)
	}
	for y := range rows {
		rows[y] /= float64(w)
	}
	return cols, rows
}

// rectSupport returns the support of the weakest side of the rectangle with
// vertical lines x0, x1 and horizontal lines y0, y1.
func rectSupport(p *imaging.Plane, x0, y0, x1, y1 int, threshold float64) float64 {
	return math.Min(
		math.Min(columnSupport(p, x0, y0, y1, threshold), columnSupport(p, x1, y0, y1, threshold)),
		math.Min(rowSupport(p, y0, x0, x1, threshold), rowSupport(p, y1, x0, x1, threshold)),
	)
}

// columnSupport is the share of rows y0..y1 where column x, or a column next
// to it, has a horizontal step of at least threshold.
func columnSupport(p *imaging.Plane, x, y0, y1 int, threshold float64) float64 {
	var hits int
	for y := y0; y <= y1; y++ {
		for dx := -1; dx <= 1; dx++ {
			if cx := x + dx; cx > 0 && cx < p.Width-1 && math.Abs(p.At(cx+1, y)-p.At(cx-1, y))/2 >= threshold {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(y1-y0+1)
}

// rowSupport is columnSupport for row y over columns x0..x1.
func rowSupport(p *imaging.Plane, y, x0, x1 int, threshold float64) float64 {
	var hits int
	for x := x0; x <= x1; x++ {
		for dy := -1; dy <= 1; dy++ {
			if cy := y + dy; cy > 0 && cy < p.Height-1 && math.Abs(p.At(x, cy+1)-p.At(x, cy-1))/2 >= threshold {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(x1-x0+1)
}

// findPeaks returns the positions of the strongest local maxima of profile,
// at least MinSeparation apart, strongest first.
func findPeaks(profile []float64, opts AspectScanOptions) []int {
	if len(profile) < 3 {
		return nil
	}
	mean, std := stat.MeanStdDev(profile, nil)
	threshold := math.Max(opts.MinPeak, mean+opts.PeakSigma*std)

	var peaks []int
	for i := 1; i < len(profile)-1; i++ {
		v := profile[i]
		if v >= threshold && v >= profile[i-1] && v >= profile[i+1] {
			peaks = append(peaks, i)
		}
	}
	sort.SliceStable(peaks, func(a, b int) bool {
		return profile[peaks[a]] > profile[peaks[b]]
	})

	kept := make([]int, 0, opts.MaxLines)
	for _, p := range peaks {
		if len(kept) == opts.MaxLines {
			break
		}
		near := false
		for _, k := range kept {
			if absInt(p-k) < opts.MinSeparation {
				near = true
				break
			}
		}
		if !near {
			kept = append(kept, p)
		}
	}
	return kept
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
