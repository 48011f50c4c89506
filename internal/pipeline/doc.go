// Package pipeline orchestrates card detection over a decoded raster.
//
// Detect walks three tiers and stops at the first that yields an accepted
// candidate:
//
//  1. vision: an optional remote model, bounded by its own timeout
//  2. ensemble: the signal detectors run in parallel and fused by a Combiner
//  3. fallback: card-sized regions placed by the tiler, which cannot fail
//
// Tier errors never reach the caller. They are recorded in Result.Debug,
// together with per-tier counts and timings. The only error Detect returns is
// *InvalidImageError.
//
// Use a Session per user or per view when a newer submission should cancel the
// one still running.
package pipeline
