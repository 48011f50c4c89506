// Package detection finds trading cards in images.
//
// The package contains the card-specific half of the pipeline: the Candidate
// model, three independent signal detectors, the ensemble combiner that fuses
// their output, and the fallback tiler used when nothing is found.
//
// # Detectors
//
// Each detector is a DetectFunc. It reads an imaging.View, works on a
// downscaled copy, and reports candidates in source coordinates with only the
// signals it measures filled in:
//
//   - Edge geometry: closed, card-shaped outlines from a Sobel edge mask
//     (EdgeStrength, GeometryScore)
//   - Color texture: card-shaped windows that are more colorful and more
//     textured than the image border (ColorVariance, TextureScore)
//   - Aspect scan: pairs of strong horizontal and vertical lines that form a
//     rectangle with card proportions (GeometryScore)
//
// # Ensemble
//
// Combiner.Fuse turns the signals into a single confidence:
//
//	confidence = Σ wᵢ·sᵢ / Σ wᵢ
//
// over edge strength, geometry, color variance, texture and aspect match.
// Combine then applies Suppress (greedy non-maximum suppression on IoU) and
// Accept (confidence floor and output cap).
//
// # Card Shape
//
// A standard card is 2.5" x 3.5", so TargetAspect is 5/7 (~0.714). Aspect
// checks accept either orientation: a ratio r matches when
// min(|r - T|, |1/r - T|) <= AspectTolerance.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Rect uses an inclusive top-left and exclusive bottom-right
package detection
