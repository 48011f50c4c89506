package detection

import (
	"context"

	"github.com/ironsheep/card-detect-mcp/internal/imaging"
)

// DetectFunc finds card candidates in an image.
//
// Implementations must not modify the view, must return candidates in source
// image coordinates, and should return ctx.Err() promptly once ctx is done.
// An empty slice with a nil error means "nothing found".
type DetectFunc func(ctx context.Context, v imaging.View) ([]Candidate, error)

// Strategy pairs a detection function with the method it reports.
type Strategy struct {
	Method Method
	Detect DetectFunc
}

// SignalStrategies returns the three signal detectors with default options,
// in the order the ensemble runs them.
func SignalStrategies() []Strategy {
	return []Strategy{
		{Method: MethodEdgeGeometry, Detect: NewEdgeGeometryDetector(DefaultEdgeGeometryOptions())},
		{Method: MethodColorTexture, Detect: NewColorTextureDetector(DefaultColorTextureOptions())},
		{Method: MethodAspectScan, Detect: NewAspectScanDetector(DefaultAspectScanOptions())},
	}
}

// minRegionArea returns the smallest acceptable region, in pixels, for an
// image of the given size.
func minRegionArea(width, height int) float64 {
	return MinAreaFraction * float64(width) * float64(height)
}
