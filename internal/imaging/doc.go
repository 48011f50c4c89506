// Package imaging provides the image plumbing shared by the card detectors and
// the MCP tools.
//
// It covers loading and caching photos, the Raster/View pixel model handed to
// detection, working-copy downscaling, per-pixel feature planes (luminance,
// Sobel gradient, Laplacian energy, CIE L*a*b*), and output helpers for
// cropping and drawing candidate overlays.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, Min is inclusive (top-left) and Max is exclusive (bottom-right)
//
// # Rasters and Views
//
// A Raster owns an interleaved 8-bit buffer with 1, 3 or 4 channels. Detection
// code only ever sees a View, which exposes read accessors and can be shared
// between goroutines. View.Image copies the pixels; View.AsImage wraps them
// without copying.
//
// # Feature Planes
//
// Plane is a float64 single-channel image with values in [0, 1]. Luminance,
// Sobel, EdgeMap and LaplacianEnergy return planes; ToLab returns three. The
// heavy lifting uses github.com/anthonynsimon/bild for blur, convolution and
// row-parallel loops, and github.com/lucasb-eyer/go-colorful for color spaces.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and never modify their input images.
//
// # Performance Considerations
//
// Detectors call Downscale first and run on copies a few hundred pixels wide,
// so their cost is independent of the photo's resolution. Large photos may
// consume significant memory when cached; use Evict() or Clear() in
// long-running processes.
package imaging
