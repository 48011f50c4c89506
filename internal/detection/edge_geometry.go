package detection

import (
	"context"
	"math"
	"sort"

	"github.com/ironsheep/card-detect-mcp/internal/imaging"
)

// EdgeGeometryOptions tunes the edge-geometry detector.
type EdgeGeometryOptions struct {
	// WorkingSize is the longest side of the analysis copy in pixels.
	WorkingSize int

	// BlurRadius is the Gaussian radius applied before the Sobel pass.
	BlurRadius float64

	// EdgeThreshold is the gradient magnitude (0-1) above which a pixel is an
	// edge pixel.
	EdgeThreshold float64

	// MinEdgeStrength and MinGeometryScore reject weak or non-quadrilateral
	// outlines.
	MinEdgeStrength  float64
	MinGeometryScore float64

	// MaxCandidates caps the detector's output.
	MaxCandidates int
}

// DefaultEdgeGeometryOptions returns the options used by the ensemble.
func DefaultEdgeGeometryOptions() EdgeGeometryOptions {
	return EdgeGeometryOptions{
		WorkingSize:      512,
		BlurRadius:       1.0,
		EdgeThreshold:    0.2,
		MinEdgeStrength:  0.1,
		MinGeometryScore: 0.3,
		MaxCandidates:    32,
	}
}

// Contours with fewer pixels than this are noise.
const minContourPixels = 10

// Samples taken along each side of a fitted quadrilateral.
const sideSamples = 48

// cell is an integer pixel position in the working copy.
type cell struct {
	X, Y int
}

// NewEdgeGeometryDetector returns a detector that looks for closed, card-shaped
// outlines.
//
// # Algorithm
//
//  1. Downscale to WorkingSize, Gaussian blur, Sobel gradient magnitude
//  2. Threshold the magnitude into an edge mask
//  3. Group edge pixels into 8-connected contours (iterative flood fill)
//  4. For each large enough contour, fit a quadrilateral from its extreme
//     points (min x+y, max x-y, max x+y, min x-y) and keep it when the mean
//     lengths of its opposite sides are card-proportioned
//  5. Score the fit:
//     - fill: quadrilateral area / (mean width × mean height), which stays
//       near 1 for a rotated rectangle and drops for skewed shapes
//     - support: share of points along the quad's sides that lie on edges
//     - GeometryScore = fill × support
//     - EdgeStrength = mean gradient magnitude at supported points
//
// Outputs set EdgeStrength and GeometryScore and leave the color and texture
// signals at zero.
func NewEdgeGeometryDetector(opts EdgeGeometryOptions) DetectFunc {
	return func(ctx context.Context, v imaging.View) ([]Candidate, error) {
		work, scale := v.Downscaled(opts.WorkingSize)
		grad := imaging.EdgeMap(work, opts.BlurRadius)
		mag := grad.Magnitude
		width, height := mag.Width, mag.Height

		mask := make([]bool, width*height)
		for i, m := range mag.Pix {
			mask[i] = m >= opts.EdgeThreshold
		}

		contours, err := findContours(ctx, mask, width, height)
		if err != nil {
			return nil, err
		}

		minArea := minRegionArea(width, height)
		cands := make([]Candidate, 0)
		for _, contour := range contours {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			minX, minY, maxX, maxY := contourBounds(contour)
			bw, bh := maxX-minX, maxY-minY
			if bw < 2 || bh < 2 || float64((bw+1)*(bh+1)) < minArea {
				continue
			}

			// Shape is judged on the quad's own sides, not on the bounding
			// box, so a mildly rotated card keeps its fill and aspect.
			quad := extremeQuad(contour)
			qw, qh := quadSides(quadPoints(quad))
			if qw < 2 || qh < 2 || !inAspectTolerance(qw+1, qh+1) {
				continue
			}
			fill := math.Min(1, quadArea(quad)/(qw*qh))
			support, strength := sideSupport(quad, mask, mag)
			geometry := fill * support

			if strength < opts.MinEdgeStrength || geometry < opts.MinGeometryScore {
				continue
			}

			c := NewCandidate(scaleRect(minX, minY, maxX+1, maxY+1, scale), MethodEdgeGeometry)
			for i, p := range quad {
				c.Corners[i] = Point{X: float64(p.X) * scale.X, Y: float64(p.Y) * scale.Y}
			}
			c.EdgeStrength = clamp01(strength)
			c.GeometryScore = clamp01(geometry)
			cands = append(cands, c)
		}

		sort.SliceStable(cands, func(i, j int) bool {
			si := cands[i].GeometryScore * cands[i].EdgeStrength
			sj := cands[j].GeometryScore * cands[j].EdgeStrength
			if si != sj {
				return si > sj
			}
			return cands[i].Bounds.Area() > cands[j].Bounds.Area()
		})
		if opts.MaxCandidates > 0 && len(cands) > opts.MaxCandidates {
			cands = cands[:opts.MaxCandidates]
		}
		return cands, nil
	}
}

// findContours groups edge pixels into 8-connected components.
// Components smaller than minContourPixels are discarded.
func findContours(ctx context.Context, mask []bool, width, height int) ([][]cell, error) {
	visited := make([]bool, len(mask))
	contours := make([][]cell, 0)

	for y := 0; y < height; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < width; x++ {
			i := y*width + x
			if mask[i] && !visited[i] {
				contour := floodFill(mask, visited, x, y, width, height)
				if len(contour) >= minContourPixels {
					contours = append(contours, contour)
				}
			}
		}
	}
	return contours, nil
}

// floodFill collects the component containing (startX, startY).
// It uses an explicit stack so large outlines cannot overflow the goroutine
// stack.
func floodFill(mask, visited []bool, startX, startY, width, height int) []cell {
	contour := make([]cell, 0)
	stack := []cell{{startX, startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		i := p.Y*width + p.X
		if visited[i] || !mask[i] {
			continue
		}

		visited[i] = true
		contour = append(contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, cell{p.X + dx, p.Y + dy})
			}
		}
	}
	return contour
}

func contourBounds(contour []cell) (minX, minY, maxX, maxY int) {
	minX, minY = contour[0].X, contour[0].Y
	maxX, maxY = minX, minY
	for _, p := range contour[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minX, minY, maxX, maxY
}

// extremeQuad picks the contour points closest to each bounding-box corner,
// ordered TL, TR, BR, BL.
func extremeQuad(contour []cell) [4]cell {
	quad := [4]cell{contour[0], contour[0], contour[0], contour[0]}
	for _, p := range contour[1:] {
		if p.X+p.Y < quad[0].X+quad[0].Y {
			quad[0] = p
		}
		if p.X-p.Y > quad[1].X-quad[1].Y {
			quad[1] = p
		}
		if p.X+p.Y > quad[2].X+quad[2].Y {
			quad[2] = p
		}
		if p.X-p.Y < quad[3].X-quad[3].Y {
			quad[3] = p
		}
	}
	return quad
}

func quadPoints(q [4]cell) [4]Point {
	var out [4]Point
	for i, p := range q {
		out[i] = Point{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}

// quadArea is the shoelace area of a quadrilateral.
func quadArea(q [4]cell) float64 {
	var sum int
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		sum += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return math.Abs(float64(sum)) / 2
}

// sideSupport walks the four sides of q and reports the share of sample points
// that have an edge pixel within two pixels, plus the mean of the strongest
// gradient magnitude found around those supported points.
func sideSupport(q [4]cell, mask []bool, mag *imaging.Plane) (support, strength float64) {
	width, height := mag.Width, mag.Height
	var total, hits int
	var sum float64

	for i := 0; i < 4; i++ {
		a, b := q[i], q[(i+1)%4]
		for s := 0; s < sideSamples; s++ {
			t := float64(s) / float64(sideSamples)
			x := int(math.Round(float64(a.X) + t*float64(b.X-a.X)))
			y := int(math.Round(float64(a.Y) + t*float64(b.Y-a.Y)))
			total++

			best := -1.0
			for dy := -2; dy <= 2; dy++ {
				for dx := -2; dx <= 2; dx++ {
					px, py := x+dx, y+dy
					if px < 0 || px >= width || py < 0 || py >= height {
						continue
					}
					j := py*width + px
					if mask[j] && mag.Pix[j] > best {
						best = mag.Pix[j]
					}
				}
			}
			if best >= 0 {
				hits++
				sum += best
			}
		}
	}

	if hits == 0 {
		return 0, 0
	}
	return float64(hits) / float64(total), sum / float64(hits)
}
